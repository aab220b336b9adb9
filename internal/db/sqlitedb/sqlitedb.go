// Package sqlitedb stores users in a local SQLite database file.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	roles TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type SQLiteDB struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema exists.
func New(ctx context.Context, path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, createUsersTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, username, password, roles, created_at, updated_at
FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := []*user.User{}
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, usr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return result, nil
}

func (s *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, password, roles, created_at, updated_at
FROM users
WHERE username = ?`,
		username,
	)

	usr, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return usr, err
}

func (s *SQLiteDB) SaveUser(ctx context.Context, usr *user.User) error {
	roles, err := json.Marshal(usr.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	id := usr.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	createdAt := usr.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO users (id, username, password, roles, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	username = excluded.username,
	password = excluded.password,
	roles = excluded.roles,
	updated_at = excluded.updated_at`,
		id,
		usr.Username,
		usr.Password,
		string(roles),
		createdAt,
		now,
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("%w: %v", models.ErrUsernameTaken, err)
		}
		return fmt.Errorf("save user: %w", err)
	}

	usr.ID = id
	usr.CreatedAt = createdAt
	usr.UpdatedAt = now

	return nil
}

func (s *SQLiteDB) DeleteUserByUsername(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

func (s *SQLiteDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*user.User, error) {
	var (
		usr   user.User
		roles string
	)
	if err := row.Scan(
		&usr.ID,
		&usr.Username,
		&usr.Password,
		&roles,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &usr.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	return &usr, nil
}
