package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/report"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	totalStyle  = numberStyle.Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

var summaryHeaders = []string{"period", "records", "consultations", "follow-ups", "messages", "calls", "revenue", "share"}

func renderSummary(summary report.Summary) string {
	rows := make([][]string, 0, len(summary.Periods)+1)
	for _, p := range summary.Periods {
		rows = append(rows, summaryRow(p.PeriodKey, p.Records, p.Counters, p.Revenue.StringFixed(2), p.Share.StringFixed(2)))
	}
	tot := summary.Totals
	rows = append(rows, summaryRow("total", tot.Records, tot.Counters, tot.Revenue.StringFixed(2), tot.Share.StringFixed(2)))
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			case row == last:
				return totalStyle
			default:
				return numberStyle
			}
		})
	return t.String()
}

func summaryRow(label string, records int, c domain.Counters, revenue, share string) []string {
	return []string{
		label,
		strconv.Itoa(records),
		strconv.Itoa(c.Consultations),
		strconv.Itoa(c.FollowUps),
		strconv.Itoa(c.Messages),
		strconv.Itoa(c.Calls),
		revenue,
		share,
	}
}

func renderOffices(offices []string) string {
	if len(offices) == 0 {
		return titleStyle.Render("offices") + "\n(none)"
	}
	return titleStyle.Render("offices") + "\n" + strings.Join(offices, "\n")
}
