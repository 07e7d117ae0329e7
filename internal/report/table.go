package report

import (
	"fmt"
	"strconv"
	"time"

	"example.com/officereport/internal/domain"
)

// RecordColumns are the scalar columns Flatten emits before any visitor columns.
var RecordColumns = []string{
	"id",
	"office",
	"period_key",
	domain.CounterConsultations,
	domain.CounterFollowUps,
	domain.CounterMessages,
	domain.CounterCalls,
	"revenue",
	"created_at",
}

// Table is a rectangular, string-valued view of records.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Flatten renders records as a table: scalar fields first, then one
// VisitorK_Name / VisitorK_Phone pair per visitor slot.
func Flatten(records []domain.Record) Table {
	base := Table{
		Columns: append([]string(nil), RecordColumns...),
		Rows:    make([][]string, 0, len(records)),
	}
	visitors := make([][]domain.Visitor, 0, len(records))
	for _, rec := range records {
		base.Rows = append(base.Rows, []string{
			rec.ID,
			rec.Office,
			rec.PeriodKey,
			strconv.Itoa(rec.Counters.Consultations),
			strconv.Itoa(rec.Counters.FollowUps),
			strconv.Itoa(rec.Counters.Messages),
			strconv.Itoa(rec.Counters.Calls),
			rec.Revenue.String(),
			formatTime(rec.CreatedAt),
		})
		visitors = append(visitors, rec.Visitors)
	}
	return Widen(base, visitors)
}

// Widen appends visitor columns to base. visitors[i] belongs to base.Rows[i];
// missing entries count as no visitors. The width is the largest visitor
// count, and shorter rows are padded with empty strings. Widen(t, nil)
// returns a copy of t.
func Widen(base Table, visitors [][]domain.Visitor) Table {
	width := 0
	for _, vs := range visitors {
		width = max(width, len(vs))
	}

	out := Table{
		Columns: make([]string, 0, len(base.Columns)+2*width),
		Rows:    make([][]string, 0, len(base.Rows)),
	}
	out.Columns = append(out.Columns, base.Columns...)
	for k := 1; k <= width; k++ {
		out.Columns = append(out.Columns, VisitorNameColumn(k), VisitorPhoneColumn(k))
	}

	for i, row := range base.Rows {
		widened := make([]string, len(base.Columns), len(base.Columns)+2*width)
		copy(widened, row)
		var vs []domain.Visitor
		if i < len(visitors) {
			vs = visitors[i]
		}
		for k := 0; k < width; k++ {
			if k < len(vs) {
				widened = append(widened, vs[k].Name, vs[k].Phone)
			} else {
				widened = append(widened, "", "")
			}
		}
		out.Rows = append(out.Rows, widened)
	}
	return out
}

// VisitorNameColumn is the name column of the k-th visitor, 1-based.
func VisitorNameColumn(k int) string { return fmt.Sprintf("Visitor%d_Name", k) }

// VisitorPhoneColumn is the phone column of the k-th visitor, 1-based.
func VisitorPhoneColumn(k int) string { return fmt.Sprintf("Visitor%d_Phone", k) }

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
