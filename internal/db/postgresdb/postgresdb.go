// Package postgresdb provides a PostgreSQL-based implementation of the user
// storage. The schema is managed by goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed user storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table in the public schema before migrating.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to PostgreSQL, applies the migrations from migrationsDir
// and returns a ready storage.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

// GetAllUsers returns every stored user in no particular order.
func (db *PostgresDB) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, username, password, roles, created_at, updated_at FROM users`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// pgtype.Map is not safe for concurrent use, so each query gets its own.
	types := pgtype.NewMap()
	result := []*user.User{}
	for rows.Next() {
		usr, err := scanUser(rows, types)
		if err != nil {
			return nil, err
		}
		result = append(result, usr)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetUserByUsername fetches a user by username, returning nil when absent.
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, username, password, roles, created_at, updated_at FROM users WHERE username = $1`,
		username,
	)

	usr, err := scanUser(row, pgtype.NewMap())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return usr, nil
}

// SaveUser inserts the user or, when a row with its ID exists, overwrites it.
func (db *PostgresDB) SaveUser(ctx context.Context, usr *user.User) error {
	generatedID := usr.ID == ""
	if generatedID {
		usr.ID = uuid.New().String()
	}
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}

	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (id, username, password, roles, created_at, updated_at)
				VALUES ($1, $2, $3, $4, NOW(), NOW())
				ON CONFLICT (id) DO UPDATE
				SET
					username = EXCLUDED.username,
					password = EXCLUDED.password,
					roles = EXCLUDED.roles,
					updated_at = NOW()
				RETURNING created_at, updated_at
		`,
		usr.ID,
		usr.Username,
		usr.Password,
		roles,
	)
	if err := row.Scan(&usr.CreatedAt, &usr.UpdatedAt); err != nil {
		if generatedID {
			usr.ID = ""
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %v", models.ErrUsernameTaken, err)
		}
		return err
	}

	return nil
}

// DeleteUserByUsername removes the user with the given username if there is one.
func (db *PostgresDB) DeleteUserByUsername(ctx context.Context, username string) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM users WHERE username = $1`,
		username,
	)

	return err
}

func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, types *pgtype.Map) (*user.User, error) {
	var usr user.User
	err := row.Scan(
		&usr.ID,
		&usr.Username,
		&usr.Password,
		types.SQLScanner(&usr.Roles),
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &usr, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
