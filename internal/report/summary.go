// Package report derives summaries and display tables from stored records.
// Everything here is a pure function over a snapshot of records.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"example.com/officereport/internal/domain"
)

var two = decimal.NewFromInt(2)

// PeriodSummary holds the sums for one period key. Share is always half of
// Revenue.
type PeriodSummary struct {
	PeriodKey string          `json:"period_key"`
	Records   int             `json:"records"`
	Counters  domain.Counters `json:"counters"`
	Revenue   decimal.Decimal `json:"revenue"`
	Share     decimal.Decimal `json:"share"`
}

// Totals holds the grand totals across every period.
type Totals struct {
	Records  int             `json:"records"`
	Counters domain.Counters `json:"counters"`
	Revenue  decimal.Decimal `json:"revenue"`
	Share    decimal.Decimal `json:"share"`
}

// Summary is the aggregation result. Periods are in first-seen order.
type Summary struct {
	Periods []PeriodSummary `json:"periods"`
	Totals  Totals          `json:"totals"`
}

// Aggregate groups records by exact period key and sums every counter and
// the revenue. Keys of different shapes are never merged.
func Aggregate(records []domain.Record) Summary {
	summary := Summary{
		Periods: make([]PeriodSummary, 0),
		Totals:  Totals{Revenue: decimal.Zero, Share: decimal.Zero},
	}
	index := make(map[string]int)

	for _, rec := range records {
		i, ok := index[rec.PeriodKey]
		if !ok {
			i = len(summary.Periods)
			index[rec.PeriodKey] = i
			summary.Periods = append(summary.Periods, PeriodSummary{PeriodKey: rec.PeriodKey, Revenue: decimal.Zero})
		}
		group := &summary.Periods[i]
		group.Records++
		group.Counters = group.Counters.Add(rec.Counters)
		group.Revenue = group.Revenue.Add(rec.Revenue)
	}

	for i := range summary.Periods {
		group := &summary.Periods[i]
		group.Share = group.Revenue.Div(two)

		summary.Totals.Records += group.Records
		summary.Totals.Counters = summary.Totals.Counters.Add(group.Counters)
		summary.Totals.Revenue = summary.Totals.Revenue.Add(group.Revenue)
		summary.Totals.Share = summary.Totals.Share.Add(group.Share)
	}
	return summary
}

// Offices returns the distinct offices present in records, sorted.
func Offices(records []domain.Record) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.Office]; ok {
			continue
		}
		seen[rec.Office] = struct{}{}
		out = append(out, rec.Office)
	}
	sort.Strings(out)
	return out
}
