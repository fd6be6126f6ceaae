// Package common defines shared constants and sentinel errors used across
// the offline sync components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrorInvalidTransition is returned when a queued action is asked to move
	// along a status edge the state machine does not define.
	ErrorInvalidTransition = errors.New("invalid status transition")
)
