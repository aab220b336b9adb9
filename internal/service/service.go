// Package service implements the user operations shared by the HTTP and gRPC
// transports. The caller of a request always arrives as an explicit
// auth.CallerIdentity.
package service

import (
	"context"
	"fmt"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/password"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

type userKeeper interface {
	GetAllUsers(ctx context.Context) ([]*user.User, error)

	GetUserByUsername(ctx context.Context, username string) (*user.User, error)

	SaveUser(ctx context.Context, usr *user.User) error

	DeleteUserByUsername(ctx context.Context, username string) error

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	pinger
}

type Service struct {
	db     storage
	hasher password.Hasher
}

func New(db storage, hasher password.Hasher) *Service {
	return &Service{
		db:     db,
		hasher: hasher,
	}
}

// GetAll returns every stored user.
func (s *Service) GetAll(ctx context.Context) ([]*user.User, error) {
	return s.db.GetAllUsers(ctx)
}

// FindByUsername returns (nil, nil) when no user has that name.
func (s *Service) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.db.GetUserByUsername(ctx, username)
}

// SaveNewUser hashes the plaintext password held in usr, grants the default
// role and persists the record: inserted when usr.ID is empty, replaced otherwise.
func (s *Service) SaveNewUser(ctx context.Context, usr *user.User) error {
	hash, err := s.hasher.Hash(usr.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	toSave := usr.Clone()
	toSave.Password = hash
	toSave.Roles = []string{user.RoleUser}

	if err := s.db.SaveUser(ctx, toSave); err != nil {
		return err
	}

	*usr = *toSave

	return nil
}

// UpdateCallerCredentials replaces the username and password of the caller's
// own record. It reports false, without error, when the caller has no record.
func (s *Service) UpdateCallerCredentials(
	ctx context.Context,
	caller auth.CallerIdentity,
	username string,
	plainPassword string,
) (bool, error) {
	usr, err := s.db.GetUserByUsername(ctx, caller.Username)
	if err != nil {
		return false, err
	}
	if usr == nil {
		return false, nil
	}

	usr.Username = username
	usr.Password = plainPassword

	if err := s.SaveNewUser(ctx, usr); err != nil {
		return false, err
	}

	return true, nil
}

// DeleteCaller removes the caller's record, succeeding when there is none.
func (s *Service) DeleteCaller(ctx context.Context, caller auth.CallerIdentity) error {
	return s.db.DeleteUserByUsername(ctx, caller.Username)
}

func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.db.GetNumberOfUsers(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
