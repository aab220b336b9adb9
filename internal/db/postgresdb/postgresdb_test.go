package postgresdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/db/storage/storagetest"
)

// e.g. TEST_DATABASE_DSN="host=localhost user=journal password=journal dbname=journal sslmode=disable"
const migrationsDir = "../../../migrations"

var _ storage.Storage = (*PostgresDB)(nil)

func TestPostgresDB(t *testing.T) {
	databaseDSN := os.Getenv("TEST_DATABASE_DSN")
	if databaseDSN == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	theStorage, err := New(
		context.Background(),
		databaseDSN,
		10*time.Second,
		migrationsDir,
		WithDBPreReset(true),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theStorage.Close())
	}()

	storagetest.Run(t, theStorage)
}
