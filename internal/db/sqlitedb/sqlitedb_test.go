package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/db/storage/storagetest"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

var _ storage.Storage = (*SQLiteDB)(nil)

func TestSQLiteDB(t *testing.T) {
	theStorage, err := New(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theStorage.Close())
	}()

	storagetest.Run(t, theStorage)
}

func TestSQLiteDBKeepsCreatedAtOnUpdate(t *testing.T) {
	ctx := context.Background()
	theStorage, err := New(ctx, filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	defer theStorage.Close()

	usr := &user.User{Username: "alice", Password: "hash"}
	require.NoError(t, theStorage.SaveUser(ctx, usr))
	createdAt := usr.CreatedAt

	stored, err := theStorage.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Roles)

	stored.Password = "hash-2"
	require.NoError(t, theStorage.SaveUser(ctx, stored))

	again, err := theStorage.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(again.CreatedAt))
	assert.Equal(t, "hash-2", again.Password)
}
