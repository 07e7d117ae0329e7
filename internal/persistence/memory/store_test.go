package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/period"
)

func TestStoreInsertQueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := store.Insert(ctx, domain.Record{Office: "norte", PeriodKey: "01-06-2025", Revenue: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, base.Add(time.Minute), first.CreatedAt)

	second, err := store.Insert(ctx, domain.Record{Office: "sur", PeriodKey: "01-06-2025"})
	require.NoError(t, err)
	third, err := store.Insert(ctx, domain.Record{Office: "norte", PeriodKey: "01-06-2025"})
	require.NoError(t, err)

	all, err := store.Query(ctx, domain.Query{})
	require.NoError(t, err)
	require.Equal(t, []string{third.ID, second.ID, first.ID}, ids(all))

	norte, err := store.Query(ctx, domain.Query{Office: "norte"})
	require.NoError(t, err)
	require.Equal(t, []string{third.ID, first.ID}, ids(norte))

	none, err := store.Query(ctx, domain.Query{Office: "oeste"})
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestStoreAttachVisitors(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	rec, err := store.Insert(ctx, domain.Record{Office: "norte", Visitors: []domain.Visitor{{Name: "ignored"}}})
	require.NoError(t, err)
	require.Empty(t, rec.Visitors)

	require.NoError(t, store.AttachVisitors(ctx, rec.ID, []domain.Visitor{{Name: "Ana", Phone: "300"}, {Name: "Luis"}}))
	require.Error(t, store.AttachVisitors(ctx, "missing", []domain.Visitor{{Name: "x"}}))

	got, err := store.Query(ctx, domain.Query{Office: "norte"})
	require.NoError(t, err)
	require.Equal(t, []domain.Visitor{{Name: "Ana", Phone: "300"}, {Name: "Luis"}}, got[0].Visitors)
}

func TestStoreWithServiceSeparatedFlow(t *testing.T) {
	svc := domain.NewService(NewStore(), period.PolicyDate)
	ctx := context.Background()

	res, err := svc.Submit(ctx, domain.Identity{Office: "centro"}, domain.Form{Visitors: domain.DelimitedVisitors("Juan - 3123123\nMaría - 987654")})
	require.NoError(t, err)
	require.NoError(t, res.VisitorsErr)

	records, err := svc.List(ctx, domain.Identity{Office: "centro"}, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Visitors, 2)
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore().Insert(ctx, domain.Record{Office: "norte"})
	require.ErrorIs(t, err, context.Canceled)
}

func ids(records []domain.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
