// Package memory keeps records in process memory for local development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/officereport/internal/domain"
)

type entry struct {
	seq    int64
	record domain.Record
}

// Store is a mutex-guarded record store. Visitors are kept in their own map,
// keyed by record id, so it follows the separated-storage flow.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	records  map[string]entry
	visitors map[string][]domain.Visitor
	now      func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		records:  make(map[string]entry),
		visitors: make(map[string][]domain.Visitor),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Insert implements domain.RecordStore.
func (s *Store) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now()
	rec.Visitors = nil
	s.records[rec.ID] = entry{seq: s.seq, record: rec}
	return rec, nil
}

// AttachVisitors implements domain.VisitorStore.
func (s *Store) AttachVisitors(ctx context.Context, recordID string, visitors []domain.Visitor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[recordID]; !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	s.visitors[recordID] = append(s.visitors[recordID], visitors...)
	return nil
}

// Query implements domain.RecordStore.
func (s *Store) Query(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]entry, 0, len(s.records))
	for _, e := range s.records {
		if q.Office != "" && e.record.Office != q.Office {
			continue
		}
		matched = append(matched, e)
	}
	slices.SortFunc(matched, func(a, b entry) int {
		if c := b.record.CreatedAt.Compare(a.record.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})

	out := make([]domain.Record, 0, len(matched))
	for _, e := range matched {
		rec := e.record
		rec.Visitors = slices.Clone(s.visitors[rec.ID])
		if rec.Visitors == nil {
			rec.Visitors = []domain.Visitor{}
		}
		out = append(out, rec)
	}
	return out, nil
}
