// Package export writes report tables as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/report"
)

const (
	// ContentTypeXLSX is the media type of WriteXLSX output.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	RecordsSheet = "Records"
	SummarySheet = "Summary"
)

var numericColumns = map[string]bool{
	domain.CounterConsultations: true,
	domain.CounterFollowUps:     true,
	domain.CounterMessages:      true,
	domain.CounterCalls:         true,
	"revenue":                   true,
}

// WriteXLSX writes a workbook with the widened records table and the
// per-period summary to w. Counter and revenue cells are stored as numbers.
func WriteXLSX(w io.Writer, table report.Table, summary report.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return err
	}
	if err := writeTable(f, RecordsSheet, table); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeTable(f, SummarySheet, summaryTable(summary)); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func writeTable(f *excelize.File, sheet string, table report.Table) error {
	head := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}

	for i, r := range table.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = cellValue(table.Columns[j], v)
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(column, raw string) any {
	if !numericColumns[column] && column != "share" && column != "records" {
		return raw
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return d.InexactFloat64()
	}
	return raw
}

func summaryTable(summary report.Summary) report.Table {
	t := report.Table{
		Columns: []string{"period_key", "records", domain.CounterConsultations, domain.CounterFollowUps, domain.CounterMessages, domain.CounterCalls, "revenue", "share"},
		Rows:    make([][]string, 0, len(summary.Periods)+1),
	}
	row := func(label string, records int, c domain.Counters, revenue, share decimal.Decimal) []string {
		return []string{
			label,
			strconv.Itoa(records),
			strconv.Itoa(c.Consultations),
			strconv.Itoa(c.FollowUps),
			strconv.Itoa(c.Messages),
			strconv.Itoa(c.Calls),
			revenue.String(),
			share.String(),
		}
	}
	for _, p := range summary.Periods {
		t.Rows = append(t.Rows, row(p.PeriodKey, p.Records, p.Counters, p.Revenue, p.Share))
	}
	tot := summary.Totals
	t.Rows = append(t.Rows, row("total", tot.Records, tot.Counters, tot.Revenue, tot.Share))
	return t
}
