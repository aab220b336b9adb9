// Package storage declares the contract every user storage backend implements.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/journalapp/internal/user"
)

// Storage persists user records.
//
// GetUserByUsername returns (nil, nil) when no such user exists.
// SaveUser inserts the user when its ID is empty, assigning a fresh ID,
// and otherwise overwrites the stored record with the same ID.
// A save that would duplicate a username fails with models.ErrUsernameTaken.
// DeleteUserByUsername succeeds whether or not a matching user exists.
type Storage interface {
	GetAllUsers(ctx context.Context) ([]*user.User, error)

	GetUserByUsername(ctx context.Context, username string) (*user.User, error)

	SaveUser(ctx context.Context, usr *user.User) error

	DeleteUserByUsername(ctx context.Context, username string) error

	GetNumberOfUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
