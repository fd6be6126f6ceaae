// Package models defines client-side data models persisted by the offline
// sync store: queued actions, cached preloads, cached requests and assets.
package models

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a queued action.
type Status string

const (
	// StatusOffline is the initial and retryable state: the action waits for
	// the next sync attempt.
	StatusOffline Status = "offline"
	// StatusProcessing marks an attempt in flight. It is written before the
	// network call and healed back to offline once it goes stale.
	StatusProcessing Status = "processing"
	// StatusSynced is terminal: the server accepted the action. The entry is
	// kept until reconciliation has refreshed the data it affects.
	StatusSynced Status = "synced"
	// StatusError is terminal: the server rejected the action.
	StatusError Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOffline, StatusProcessing, StatusSynced, StatusError:
		return true
	}
	return false
}

// Envelope is the serialized request captured at enqueue time.
type Envelope struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Data    json.RawMessage   `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewEnvelope builds an envelope whose data object carries the action name,
// the assignment timestamp and the domain payload:
//
//	{"action": "...", "assignedOn": "2024-01-02T03:04:05Z", <payload>}
func NewEnvelope(url, method, action string, payload map[string]any, assignedOn time.Time) (Envelope, error) {
	data := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		data[k] = v
	}
	data["action"] = action
	data["assignedOn"] = assignedOn.UTC().Format(time.RFC3339)

	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{URL: url, Method: method, Data: b}, nil
}

// Effect declares which cached data an action invalidates once synced.
type Effect struct {
	Name                string   `json:"name"`
	EffectedObjectAlias string   `json:"effected_object_alias"`
	EffectedObjectUID   string   `json:"effected_object_uid,omitempty"`
	KeyColumn           string   `json:"key_column,omitempty"`
	KeyValues           []string `json:"key_values,omitempty"`

	// ActionID points back at the owning queued action. It is filled only
	// when effects are listed for diagnostics and is never persisted.
	ActionID string `json:"-"`
}

// Response is the server answer (or transport diagnostic) stored verbatim.
type Response struct {
	StatusCode int    `json:"status"`
	Body       []byte `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// QueuedAction is one pending or historical state-changing operation.
type QueuedAction struct {
	ID                string
	ObjectAlias       string
	ActionName        string
	Request           Envelope
	Status            Status
	Tries             int
	TriggeredAt       time.Time
	LastSyncAttemptAt *time.Time
	SyncedAt          *time.Time
	Response          *Response
	Effects           []Effect
}

// IsStale reports whether a processing attempt has been silent for longer
// than staleAfter.
func (a *QueuedAction) IsStale(now time.Time, staleAfter time.Duration) bool {
	if a.Status != StatusProcessing || a.LastSyncAttemptAt == nil {
		return false
	}
	return now.Sub(*a.LastSyncAttemptAt) > staleAfter
}

// Heal moves a stale processing action back to offline. It returns true
// when the action was changed.
func (a *QueuedAction) Heal(now time.Time, staleAfter time.Duration) bool {
	if !a.IsStale(now, staleAfter) {
		return false
	}
	a.Status = StatusOffline
	return true
}

// ActionQueueView is the redacted projection used for display and export.
// The request envelope and effects are intentionally left out.
type ActionQueueView struct {
	ID          string    `json:"id"`
	ActionAlias string    `json:"action_alias"`
	ObjectAlias string    `json:"object_alias"`
	TriggeredAt time.Time `json:"triggered_at"`
	Status      Status    `json:"status"`
	Tries       int       `json:"tries"`
	Response    *Response `json:"response,omitempty"`
}

// View returns the redacted projection of a.
func (a *QueuedAction) View() ActionQueueView {
	return ActionQueueView{
		ID:          a.ID,
		ActionAlias: a.ActionName,
		ObjectAlias: a.ObjectAlias,
		TriggeredAt: a.TriggeredAt,
		Status:      a.Status,
		Tries:       a.Tries,
		Response:    a.Response,
	}
}
