// Package storagetest holds the behaviour every storage.Storage backend must share.
// Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

// Run exercises theStorage, which must be empty on entry.
func Run(t *testing.T, theStorage storage.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, theStorage.Ping(ctx))
	})

	t.Run("missing user is nil without error", func(t *testing.T) {
		usr, err := theStorage.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, usr)
	})

	alice := &user.User{Username: "alice", Password: "hash-1", Roles: []string{user.RoleUser}}

	t.Run("insert assigns an ID", func(t *testing.T) {
		require.NoError(t, theStorage.SaveUser(ctx, alice))
		assert.NotEmpty(t, alice.ID)
		assert.False(t, alice.CreatedAt.IsZero())

		stored, err := theStorage.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, alice.ID, stored.ID)
		assert.Equal(t, "hash-1", stored.Password)
		assert.Equal(t, []string{user.RoleUser}, stored.Roles)
	})

	t.Run("duplicate username is rejected", func(t *testing.T) {
		err := theStorage.SaveUser(ctx, &user.User{Username: "alice", Password: "other"})
		require.ErrorIs(t, err, models.ErrUsernameTaken)

		count, err := theStorage.GetNumberOfUsers(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	bob := &user.User{Username: "bob", Password: "hash-b", Roles: []string{user.RoleUser}}

	t.Run("list returns every user", func(t *testing.T) {
		require.NoError(t, theStorage.SaveUser(ctx, bob))

		all, err := theStorage.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, usernames(all))
	})

	t.Run("update by ID renames the row", func(t *testing.T) {
		stored, err := theStorage.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored)

		stored.Username = "alice2"
		stored.Password = "hash-2"
		require.NoError(t, theStorage.SaveUser(ctx, stored))

		old, err := theStorage.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, old)

		renamed, err := theStorage.GetUserByUsername(ctx, "alice2")
		require.NoError(t, err)
		require.NotNil(t, renamed)
		assert.Equal(t, alice.ID, renamed.ID)
		assert.Equal(t, "hash-2", renamed.Password)

		count, err := theStorage.GetNumberOfUsers(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("rename onto another user's name is rejected", func(t *testing.T) {
		stored, err := theStorage.GetUserByUsername(ctx, "alice2")
		require.NoError(t, err)
		require.NotNil(t, stored)

		stored.Username = "bob"
		require.ErrorIs(t, theStorage.SaveUser(ctx, stored), models.ErrUsernameTaken)

		untouched, err := theStorage.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, untouched)
		assert.Equal(t, bob.ID, untouched.ID)
		assert.Equal(t, "hash-b", untouched.Password)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, theStorage.DeleteUserByUsername(ctx, "alice2"))
		require.NoError(t, theStorage.DeleteUserByUsername(ctx, "alice2"))
		require.NoError(t, theStorage.DeleteUserByUsername(ctx, "never-existed"))

		all, err := theStorage.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, usernames(all))
	})
}

func usernames(users []*user.User) []string {
	result := make([]string, 0, len(users))
	for _, usr := range users {
		result = append(result, usr.Username)
	}
	return result
}
