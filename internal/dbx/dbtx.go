// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and a helper to run functions inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is a DBTX that can open transactions (*sql.DB, *sql.Conn).
type TxBeginner interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx runs fn inside a transaction and commits on success or rolls back
// on error/panic. Panics are rethrown.
//
// When db cannot begin a transaction (it already is a *sql.Tx handed out by
// an outer WithTx), fn runs directly on it and the outer call owns
// commit/rollback.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id)
//	    return err
//	})
func WithTx(ctx context.Context, db DBTX, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	beginner, ok := db.(TxBeginner)
	if !ok {
		return fn(ctx, db)
	}

	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
