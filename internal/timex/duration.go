// Package timex holds small time helpers shared by config loading and tests.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be read from JSON either as a
// string ("3s", "1m30s") or as integer nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON encodes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "3s"-style strings and integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// Clock returns the current time. Components take a Clock so tests can pin
// "now" when exercising time-based rules such as staleness.
type Clock func() time.Time

// Now returns c() or time.Now when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// UnixMilliPtr converts an optional time to optional unix milliseconds.
func UnixMilliPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// FromUnixMilliPtr converts optional unix milliseconds to an optional time.
func FromUnixMilliPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
