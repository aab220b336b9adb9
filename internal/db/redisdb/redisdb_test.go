package redisdb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/db/storage/storagetest"
)

var _ storage.Storage = (*RedisDB)(nil)

// e.g. TEST_REDIS_ADDRESS="localhost:6379"
func TestRedisDB(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS is not set")
	}
	ctx := context.Background()
	prefix := "journal_test:" + uuid.New().String() + ":"

	theStorage, err := New(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"), WithKeyPrefix(prefix))
	require.NoError(t, err)
	defer func() {
		keys, err := theStorage.rdb.Keys(ctx, prefix+"*").Result()
		require.NoError(t, err)
		if len(keys) > 0 {
			require.NoError(t, theStorage.rdb.Del(ctx, keys...).Err())
		}
		require.NoError(t, theStorage.Close())
	}()

	storagetest.Run(t, theStorage)
}
