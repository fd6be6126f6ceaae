// Package store opens the embedded SQLite database backing the offline sync
// engine and keeps its schema current with goose migrations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/offlinesync/internal/client/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// ErrUnavailable reports that the local store could not be opened or
// migrated. Callers degrade to an online-only mode when they see it.
var ErrUnavailable = errors.New("local store unavailable")

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// RunMigrations applies every pending embedded migration.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the SQLite database at dsn and migrates it.
// SQLite allows a single writer, so the pool is pinned to one connection;
// ":memory:" databases therefore live as long as the returned handle.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrations: %v", ErrUnavailable, err)
	}

	return db, nil
}
