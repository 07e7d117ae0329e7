// Package domain defines the business logic for office activity reports.
package domain

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"example.com/officereport/internal/observability"
	"example.com/officereport/internal/period"
)

// Service orchestrates report submission and retrieval.
type Service struct {
	store  RecordStore
	policy period.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the source of "now" used for period keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the logger used to report store failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Service.
func NewService(store RecordStore, policy period.Policy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the period policy records are keyed with.
func (s *Service) Policy() period.Policy { return s.policy }

// SubmitResult describes a persisted report. VisitorsErr is set when the
// record was stored but its visitors could not be attached.
type SubmitResult struct {
	Record      Record
	VisitorsErr error
}

// Submit validates the form, persists the record and, for stores that keep
// visitors separately, attaches them once the record id is known.
func (s *Service) Submit(ctx context.Context, id Identity, form Form) (*SubmitResult, error) {
	rec, err := Build(id, form, s.policy, s.now())
	if err != nil {
		observability.RecordValidationFailure()
		return nil, err
	}

	visitors := rec.Visitors
	_, separate := s.store.(VisitorStore)
	if separate {
		rec.Visitors = nil
	}

	stored, err := s.store.Insert(ctx, rec)
	if err != nil {
		observability.RecordStoreError("insert")
		s.logger.Error().Err(err).Str("office", rec.Office).Str("period_key", rec.PeriodKey).Msg("record insert failed")
		attempted := rec
		attempted.Visitors = visitors
		return nil, &StoreError{Op: "insert", Payload: attempted, Err: err}
	}
	observability.RecordSubmitted(stored.Office, stored.CreatedAt)

	result := &SubmitResult{Record: stored}
	if !separate {
		return result, nil
	}

	result.Record.Visitors = visitors
	if len(visitors) == 0 {
		return result, nil
	}
	if err := s.store.(VisitorStore).AttachVisitors(ctx, stored.ID, visitors); err != nil {
		observability.RecordVisitorAttachFailure()
		s.logger.Error().Err(err).Str("record_id", stored.ID).Int("visitors", len(visitors)).Msg("visitor insert failed; record kept")
		result.Record.Visitors = nil
		result.VisitorsErr = &StoreError{Op: "attach_visitors", Payload: visitors, Err: err}
	}
	return result, nil
}

// List returns the records visible to id. Offices only ever see their own
// records; administrators see all offices or just officeFilter.
func (s *Service) List(ctx context.Context, id Identity, officeFilter string) ([]Record, error) {
	q := Query{Office: id.Office}
	if id.Admin {
		q.Office = officeFilter
	}
	if !id.Admin && q.Office == "" {
		return nil, &ValidationError{Field: "office", Reason: "an authenticated office is required"}
	}

	records, err := s.store.Query(ctx, q)
	if err != nil {
		observability.RecordStoreError("query")
		s.logger.Error().Err(err).Str("office", q.Office).Msg("record query failed")
		return nil, &StoreError{Op: "query", Payload: q, Err: err}
	}
	if records == nil {
		records = []Record{}
	}
	if mismatched := s.countForeignKeys(records); mismatched > 0 {
		s.logger.Warn().Int("records", mismatched).Str("policy", s.policy.String()).Msg("records keyed under a different period policy")
	}
	return records, nil
}

func (s *Service) countForeignKeys(records []Record) int {
	n := 0
	for _, rec := range records {
		if !s.policy.Matches(rec.PeriodKey) {
			n++
		}
	}
	return n
}
