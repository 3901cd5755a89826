// Package autosave coalesces a stream of edit events for one draft into at
// most one remote save per quiet period, with bounded linear-backoff retry
// and a standing local backup at every edit.
package autosave

import (
	"context"
	"errors"
	"time"
)

// State is the runtime save state of one scheduler.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateError   State = "error"
)

// ErrClosed is returned by operations on a scheduler whose editing session
// has ended.
var ErrClosed = errors.New("autosave: scheduler closed")

// SaveFunc performs the remote save. It must resolve (nil) on success and
// return any error on failure; the scheduler does not interpret the error
// beyond retrying. Timeouts are the save operation's own responsibility.
type SaveFunc func(ctx context.Context, payload []byte) error

// Options tune one scheduler. Zero values fall back to defaults.
type Options struct {
	// Key identifies the backup slot for this draft.
	Key string
	// Delay is the debounce window (default 2s).
	Delay time.Duration
	// Disabled turns off automatic scheduling; manual SaveNow/ForceSave and
	// backup stashing keep working.
	Disabled bool
	// MaxRetries bounds save attempts per cycle (default 3).
	MaxRetries int
	// RetryDelay is the base backoff unit; the Nth retry waits N*RetryDelay
	// (default 1s).
	RetryDelay time.Duration

	// OnSaveSuccess is called with the payload after a confirmed save.
	OnSaveSuccess func(payload []byte)
	// OnSaveError is called with the failed payload once retries exhaust,
	// so callers can offer a manual retry.
	OnSaveError func(err error, payload []byte)
}

func (o Options) normalize() Options {
	out := o
	if out.Delay <= 0 {
		out.Delay = 2 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = time.Second
	}
	return out
}

// Status is a point-in-time snapshot of scheduler state for UI collaborators.
type Status struct {
	State             State      `json:"state"`
	LastSavedAt       *time.Time `json:"last_saved_at,omitempty"`
	HasUnsavedChanges bool       `json:"has_unsaved_changes"`
	RetryCount        int        `json:"retry_count"`
}
