// Package storage opens the client's local SQLite database and applies the
// embedded goose migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/smartyedu/internal/client/migrations"
	"github.com/dmitrijs2005/smartyedu/internal/filex"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// InMemory is the DSN of a throwaway database, used by tests.
const InMemory = ":memory:"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

type options struct {
	logger logging.Logger
}

// Option configures Open and RunMigrations.
type Option func(*options)

// WithLogger sends migration progress to l. Without it goose stays silent.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// RunMigrations applies all pending migrations. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	goose.SetLogger(logging.NewGooseLogger(o.logger))
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at path and migrates it.
// The pool holds a single connection so ":memory:" databases stay coherent.
func Open(ctx context.Context, path string, opts ...Option) (*sql.DB, error) {
	if path != InMemory {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, db, opts...); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
