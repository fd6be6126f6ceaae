// Package actions provides the client-side persistence layer for queued
// actions.
//
// # Overview
//
// The package defines a Repository interface for creating, querying and
// mutating QueuedAction rows (see internal/client/models). A SQLite-backed
// implementation (SQLiteRepository) persists data using a dbx.DBTX (either
// *sql.DB or *sql.Tx).
//
// # Status changes
//
// The repository performs status changes as plain data mutations and never
// does I/O beyond the database. Two of them are conditional updates so that
// concurrent readers and writers cannot clobber each other:
//
//   - Claim moves offline → processing only if the row is still offline.
//   - Heal moves processing → offline only if the attempt timestamp is the
//     one the caller observed.
//
// Typical Usage
//
//	repo := actions.NewSQLiteRepository(db)
//	_ = repo.Insert(ctx, action)
//	ok, _ := repo.Claim(ctx, id, time.Now())
//	pending, _ := repo.List(ctx, actions.Filter{Statuses: []models.Status{models.StatusOffline}})
package actions
