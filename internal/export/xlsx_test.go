package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/report"
)

func TestWriteXLSX(t *testing.T) {
	records := []domain.Record{
		{
			ID:        "r1",
			Office:    "norte",
			Counters:  domain.Counters{Consultations: 3, Calls: 1},
			Revenue:   decimal.RequireFromString("100.5"),
			PeriodKey: "2025-W10",
			Visitors:  []domain.Visitor{{Name: "Juan", Phone: "3123123"}},
			CreatedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        "r2",
			Office:    "norte",
			Revenue:   decimal.RequireFromString("20"),
			PeriodKey: "2025-W09",
			CreatedAt: time.Date(2025, 2, 25, 10, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, report.Flatten(records), report.Aggregate(records)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{RecordsSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, append(append([]string{}, report.RecordColumns...), "Visitor1_Name", "Visitor1_Phone"), rows[0])
	require.Equal(t, "Juan", rows[1][9])

	cellType, err := f.GetCellType(RecordsSheet, "D2")
	require.NoError(t, err)
	require.NotEqual(t, excelize.CellTypeSharedString, cellType, "counters are numeric")
	consultations, err := f.GetCellValue(RecordsSheet, "D2")
	require.NoError(t, err)
	require.Equal(t, "3", consultations)

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	require.Equal(t, "2025-W10", summary[1][0])
	require.Equal(t, "total", summary[3][0])
	require.Equal(t, "60.25", summary[3][7])
}

func TestCellValue(t *testing.T) {
	require.Equal(t, 7, cellValue(domain.CounterCalls, "7"))
	require.Equal(t, 12.5, cellValue("revenue", "12.5"))
	require.Equal(t, "3123123", cellValue("Visitor1_Phone", "3123123"))
	require.Equal(t, "n/a", cellValue("revenue", "n/a"))
}
