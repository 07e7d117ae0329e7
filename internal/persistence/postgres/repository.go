// Package postgres provides the Postgres-backed record store. Visitors live
// in their own table and are attached after the parent record exists.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/officereport/internal/domain"
	platformevents "example.com/officereport/internal/platform/events"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository provides Postgres-backed persistence for records, visitors and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate applies the bundled DDL in file-name order. Every statement is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Insert persists the record and its record.submitted outbox event inside a
// single transaction. Visitors are not written here; see AttachVisitors.
func (r *Repository) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	rec.ID = uuid.NewString()
	rec.Visitors = nil

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Record{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertRecord = `INSERT INTO records (id, office, consultations, follow_ups, messages, calls, revenue, period_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8)
        RETURNING created_at`

	err = tx.QueryRow(ctx, insertRecord,
		rec.ID,
		rec.Office,
		rec.Counters.Consultations,
		rec.Counters.FollowUps,
		rec.Counters.Messages,
		rec.Counters.Calls,
		rec.Revenue.String(),
		rec.PeriodKey,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return domain.Record{}, err
	}

	if err = r.insertOutbox(ctx, tx, rec, "record.submitted", platformevents.RecordSubmitted{
		RecordID:      rec.ID,
		Office:        rec.Office,
		PeriodKey:     rec.PeriodKey,
		Consultations: rec.Counters.Consultations,
		FollowUps:     rec.Counters.FollowUps,
		Messages:      rec.Counters.Messages,
		Calls:         rec.Counters.Calls,
		Revenue:       rec.Revenue.String(),
		CreatedAt:     rec.CreatedAt,
	}); err != nil {
		return domain.Record{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec domain.Record, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (office, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.Office,
		"record",
		rec.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(rec),
		body,
		fmt.Sprintf("%s:%s", rec.ID, eventType),
	)
	return err
}

// AttachVisitors appends visitors to an already persisted record, keeping
// their order. It runs in its own transaction.
func (r *Repository) AttachVisitors(ctx context.Context, recordID string, visitors []domain.Visitor) error {
	if len(visitors) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var next int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM visitors WHERE record_id = $1`, recordID).Scan(&next); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, v := range visitors {
		batch.Queue(`INSERT INTO visitors (record_id, position, name, phone) VALUES ($1::uuid,$2,$3,$4)`, recordID, next+i, v.Name, v.Phone)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Query returns records newest first with their visitors loaded.
func (r *Repository) Query(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	query := `SELECT id::text, office, consultations, follow_ups, messages, calls, revenue::text, period_key, created_at
        FROM records`
	args := []any{}
	if q.Office != "" {
		query += ` WHERE office = $1`
		args = append(args, q.Office)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Record, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var (
			rec     domain.Record
			revenue string
		)
		if err := rows.Scan(&rec.ID, &rec.Office, &rec.Counters.Consultations, &rec.Counters.FollowUps, &rec.Counters.Messages, &rec.Counters.Calls, &revenue, &rec.PeriodKey, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("record %s: revenue %q: %w", rec.ID, revenue, err)
		}
		rec.Visitors = []domain.Visitor{}
		results = append(results, rec)
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return results, nil
	}

	visitors, err := r.visitorsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if vs, ok := visitors[results[i].ID]; ok {
			results[i].Visitors = vs
		}
	}
	return results, nil
}

func (r *Repository) visitorsFor(ctx context.Context, ids []string) (map[string][]domain.Visitor, error) {
	rows, err := r.pool.Query(ctx, `SELECT record_id::text, name, phone FROM visitors
        WHERE record_id = ANY($1::text[]::uuid[])
        ORDER BY record_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Visitor)
	for rows.Next() {
		var (
			recordID string
			name     string
			phone    string
		)
		if err := rows.Scan(&recordID, &name, &phone); err != nil {
			return nil, err
		}
		// stored rows pass through the same normalisation as form input
		if v := domain.StructuredVisitors([]domain.Visitor{{Name: name, Phone: phone}}).Normalize(); len(v) == 1 {
			out[recordID] = append(out[recordID], v[0])
		}
	}
	return out, rows.Err()
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Record) string
}

var eventCatalog = map[string]EventMetadata{
	"record.submitted": {
		Topic:         "office_records",
		SchemaSubject: "office_records-value",
		PartitionKeyFn: func(r domain.Record) string {
			return r.Office
		},
	},
}
