package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/officereport/internal/config"
	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/persistence/memory"
	"example.com/officereport/internal/persistence/sqlite"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := Open(ctx, config.Config{StoreDriver: config.StoreMemory}, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, store)
	closeFn()

	path := filepath.Join(t.TempDir(), "reports.db")
	store, closeFn, err = Open(ctx, config.Config{StoreDriver: config.StoreSQLite, SQLitePath: path}, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &sqlite.Store{}, store)
	_, isVisitorStore := store.(domain.VisitorStore)
	require.False(t, isVisitorStore, "sqlite embeds visitors in the record row")

	_, _, err = Open(ctx, config.Config{StoreDriver: "cassandra"}, zerolog.Nop())
	require.Error(t, err)
}
