// Package persistence selects and opens the configured record store.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/officereport/internal/config"
	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/persistence/memory"
	"example.com/officereport/internal/persistence/postgres"
	"example.com/officereport/internal/persistence/sqlite"
)

// Open returns the store named by cfg.StoreDriver and a function releasing it.
// Postgres migrations are applied before the store is returned.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (domain.RecordStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		repo := postgres.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info().Str("driver", string(cfg.StoreDriver)).Msg("record store ready")
		return repo, pool.Close, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info().Str("driver", string(cfg.StoreDriver)).Str("path", cfg.SQLitePath).Msg("record store ready")
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory record store; records are lost on exit")
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
