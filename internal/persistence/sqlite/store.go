// Package sqlite stores records in a local embedded database file. Visitors
// are embedded on the record row as a JSON column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"example.com/officereport/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `CREATE TABLE IF NOT EXISTS records (
    id            TEXT PRIMARY KEY,
    office        TEXT NOT NULL CHECK (office <> ''),
    consultations INTEGER NOT NULL DEFAULT 0 CHECK (consultations >= 0),
    follow_ups    INTEGER NOT NULL DEFAULT 0 CHECK (follow_ups >= 0),
    messages      INTEGER NOT NULL DEFAULT 0 CHECK (messages >= 0),
    calls         INTEGER NOT NULL DEFAULT 0 CHECK (calls >= 0),
    revenue       TEXT NOT NULL DEFAULT '0',
    period_key    TEXT NOT NULL,
    visitors      TEXT NOT NULL DEFAULT '[]',
    created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_office_created_idx ON records (office, created_at DESC);`

// Store is a RecordStore backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert implements domain.RecordStore.
func (s *Store) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	visitors := rec.Visitors
	if visitors == nil {
		visitors = []domain.Visitor{}
	}
	body, err := json.Marshal(visitors)
	if err != nil {
		return domain.Record{}, err
	}

	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now()
	rec.Visitors = visitors

	const stmt = `INSERT INTO records (id, office, consultations, follow_ups, messages, calls, revenue, period_key, visitors, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)`
	_, err = s.db.ExecContext(ctx, stmt,
		rec.ID,
		rec.Office,
		rec.Counters.Consultations,
		rec.Counters.FollowUps,
		rec.Counters.Messages,
		rec.Counters.Calls,
		rec.Revenue.String(),
		rec.PeriodKey,
		string(body),
		rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// Query implements domain.RecordStore.
func (s *Store) Query(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	query := `SELECT id, office, consultations, follow_ups, messages, calls, revenue, period_key, visitors, created_at FROM records`
	args := []any{}
	if q.Office != "" {
		query += ` WHERE office = ?`
		args = append(args, q.Office)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		var (
			rec       domain.Record
			visitors  string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Office, &rec.Counters.Consultations, &rec.Counters.FollowUps, &rec.Counters.Messages, &rec.Counters.Calls, &rec.Revenue, &rec.PeriodKey, &visitors, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("record %s: bad created_at %q: %w", rec.ID, createdAt, err)
		}
		rec.Visitors = decodeVisitors(visitors)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// decodeVisitors reads the embedded column. Rows written by older tools may
// hold free text instead of JSON; both resolve to a list.
func decodeVisitors(raw string) []domain.Visitor {
	var in domain.VisitorInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return domain.DelimitedVisitors(raw).Normalize()
	}
	return in.Normalize()
}
