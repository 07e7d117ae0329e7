// Command report prints per-period office summaries from the configured store
// and optionally exports the widened record table as a spreadsheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/officereport/internal/config"
	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/export"
	"example.com/officereport/internal/logging"
	"example.com/officereport/internal/persistence"
	"example.com/officereport/internal/report"
)

func main() {
	office := flag.String("office", "", "office to report on (with -admin: optional filter)")
	admin := flag.Bool("admin", false, "report across every office")
	xlsxPath := flag.String("xlsx", "", "also write the record table to this .xlsx file")
	flag.Parse()

	if err := run(*office, *admin, *xlsxPath); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func run(office string, admin bool, xlsxPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.AppEnv).With().Str("service", "office-report-cli").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	id := domain.Identity{Office: office, Admin: admin}
	filter := ""
	if admin {
		id.Office, filter = "", office
	}

	service := domain.NewService(store, cfg.PeriodPolicy, domain.WithLogger(logger))
	records, err := service.List(ctx, id, filter)
	if err != nil {
		return err
	}

	summary := report.Aggregate(records)
	fmt.Println(renderSummary(summary))
	if admin && filter == "" {
		fmt.Println(renderOffices(report.Offices(records)))
	}

	if xlsxPath == "" {
		return nil
	}
	f, err := os.Create(xlsxPath)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(f, report.Flatten(records), summary); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info().Str("path", xlsxPath).Int("records", len(records)).Msg("spreadsheet written")
	return nil
}
