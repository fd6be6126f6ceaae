// Package services contains the application services of the offline sync
// engine: the action queue with its status state machine, the effects index,
// the device identity, the sync coordinator, cache reconciliation over
// preloads and the best-effort asset preloader.
//
// Services are constructed over a *sql.DB and build repositories per call so
// multi-step writes can run inside dbx.WithTx. All methods honor context
// cancellation.
package services
