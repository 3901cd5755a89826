package autosave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/willvault/core/internal/pkg/backup"
	"go.uber.org/zap"
)

// Scheduler debounces edit events for one draft and drives the retrying save
// executor. All transitions serialize on one mutex; the remote call itself
// runs outside the lock and its outcome is re-validated on re-acquire.
//
// Saves per key are strictly serialized. While one save is in flight, an
// elapsed debounce only marks a follow-up save as queued; only the latest
// payload is kept (queue of depth 1), older pending payloads are superseded.
type Scheduler struct {
	opts    Options
	save    SaveFunc
	channel *backup.Channel
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	lastSavedAt   *time.Time
	retryCount    int
	unsaved       bool
	lastScheduled []byte // newest accepted payload; equality reference
	debounce      *time.Timer
	retry         *time.Timer
	inflight      bool
	queued        bool
	closed        bool
}

// New creates a scheduler bound to one draft key.
func New(opts Options, save SaveFunc, channel *backup.Channel, log *zap.Logger) (*Scheduler, error) {
	if save == nil {
		return nil, errors.New("autosave: save function is required")
	}
	if channel == nil {
		return nil, errors.New("autosave: backup channel is required")
	}
	if strings.TrimSpace(opts.Key) == "" {
		return nil, errors.New("autosave: key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:    opts.normalize(),
		save:    save,
		channel: channel,
		log:     log.With(zap.String("key", opts.Key)),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
	}, nil
}

// Notify records an edit event. Unchanged content (deep equality on the
// serialized payload, O(payload size)) is a no-op. Changed content is
// stashed into the backup channel immediately and (re)starts the debounce
// timer: only the last edit of a quiet window triggers a save.
func (s *Scheduler) Notify(content interface{}) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("autosave: encode payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if bytes.Equal(payload, s.lastScheduled) {
		return nil
	}

	s.lastScheduled = payload
	s.unsaved = true
	s.channel.Stash(s.ctx, s.opts.Key, payload)

	if s.opts.Disabled {
		return nil
	}
	if !s.inflight {
		s.state = StatePending
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.opts.Delay, s.onDebounce)
	return nil
}

// SaveNow cancels any pending debounce and saves the current payload
// immediately. After a terminal failure this is the manual retry: it resumes
// at attempt 1.
func (s *Scheduler) SaveNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.stopDebounce()
	if s.lastScheduled == nil {
		return nil
	}
	s.startNow(s.lastScheduled)
	return nil
}

// ForceSave behaves like SaveNow but accepts an explicit payload override,
// for save-before-navigate flows. A nil content falls back to SaveNow.
func (s *Scheduler) ForceSave(content interface{}) error {
	if content == nil {
		return s.SaveNow()
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("autosave: encode payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastScheduled = payload
	s.unsaved = true
	s.channel.Stash(s.ctx, s.opts.Key, payload)
	s.stopDebounce()
	s.startNow(payload)
	return nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var at *time.Time
	if s.lastSavedAt != nil {
		t := *s.lastSavedAt
		at = &t
	}
	return Status{
		State:             s.state,
		LastSavedAt:       at,
		HasUnsavedChanges: s.unsaved,
		RetryCount:        s.retryCount,
	}
}

// GetBackup returns the current backup snapshot, if any.
func (s *Scheduler) GetBackup() (*backup.Snapshot, error) {
	return s.channel.Peek(s.ctx, s.opts.Key)
}

// HasBackup reports whether an unsaved payload snapshot exists.
func (s *Scheduler) HasBackup() bool {
	return s.channel.Has(s.ctx, s.opts.Key)
}

// RestoreFromBackup loads the stashed payload and adopts it as the current
// unsaved content. Returns (nil, nil) when there is nothing to restore.
func (s *Scheduler) RestoreFromBackup() (json.RawMessage, error) {
	snap, err := s.channel.Peek(s.ctx, s.opts.Key)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.lastScheduled = []byte(snap.Data)
	s.unsaved = true
	return snap.Data, nil
}

// ClearBackup drops the backup snapshot without saving.
func (s *Scheduler) ClearBackup() error {
	return s.channel.Clear(s.ctx, s.opts.Key)
}

// Close ends the editing session: timers stop, the in-flight context is
// cancelled and further operations return ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopDebounce()
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.cancel()
}

// stopDebounce cancels the pending debounce timer. Caller holds mu.
func (s *Scheduler) stopDebounce() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

func (s *Scheduler) onDebounce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.debounce = nil
	if s.inflight {
		s.queued = true
		return
	}
	s.begin(s.lastScheduled, 1)
}

// startNow starts an immediate save cycle at attempt 1. A pending retry wait
// is not a remote call: its timer is cancelled and the manual save takes
// over. Only a save that is truly mid-call defers to the queued slot. Caller
// holds mu.
func (s *Scheduler) startNow(payload []byte) {
	if s.retry != nil && s.retry.Stop() {
		s.retry = nil
		s.begin(payload, 1)
		return
	}
	if s.inflight {
		s.queued = true
		return
	}
	s.begin(payload, 1)
}

// begin starts a save cycle. Caller holds mu.
func (s *Scheduler) begin(payload []byte, attempt int) {
	s.state = StateSaving
	s.retryCount = attempt - 1
	s.inflight = true
	go s.attempt(payload, attempt)
}

// attempt runs one save attempt and applies its outcome. The payload may
// have been superseded by an edit that arrived mid-flight; that is checked
// after the remote call settles.
func (s *Scheduler) attempt(payload []byte, attempt int) {
	err := s.save(s.ctx, payload)

	s.mu.Lock()
	if s.closed {
		s.inflight = false
		s.mu.Unlock()
		return
	}

	if err == nil {
		now := time.Now()
		s.lastSavedAt = &now
		s.state = StateSaved
		s.retryCount = 0
		s.inflight = false

		superseded := !bytes.Equal(s.lastScheduled, payload)
		if !superseded {
			s.unsaved = false
		}
		startQueued := s.queued && superseded
		s.queued = false
		if startQueued {
			s.begin(s.lastScheduled, 1)
		}
		onSuccess := s.opts.OnSaveSuccess
		s.mu.Unlock()

		if !superseded {
			if cerr := s.channel.Clear(s.ctx, s.opts.Key); cerr != nil {
				s.log.Warn("autosave: backup clear after save failed", zap.Error(cerr))
			}
			// An edit may have stashed a fresh snapshot while the clear was in
			// flight; unsaved content must never be left without its backup.
			s.mu.Lock()
			if !s.closed && s.unsaved && !bytes.Equal(s.lastScheduled, payload) {
				s.channel.Stash(s.ctx, s.opts.Key, s.lastScheduled)
			}
			s.mu.Unlock()
		}
		if onSuccess != nil {
			onSuccess(payload)
		}
		return
	}

	if attempt < s.opts.MaxRetries {
		s.retryCount = attempt
		wait := time.Duration(attempt) * s.opts.RetryDelay
		next := attempt + 1
		s.retry = time.AfterFunc(wait, func() { s.runRetry(payload, next) })
		s.mu.Unlock()

		s.log.Warn("autosave: save failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		return
	}

	// Retries exhausted: backup snapshot is retained so the payload stays
	// recoverable; retry count resets for a future manual retry.
	s.state = StateError
	s.retryCount = 0
	s.inflight = false
	startQueued := s.queued
	s.queued = false
	if startQueued {
		s.begin(s.lastScheduled, 1)
	}
	onError := s.opts.OnSaveError
	s.mu.Unlock()

	s.log.Error("autosave: save failed, retries exhausted",
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	if onError != nil {
		onError(err, payload)
	}
}

func (s *Scheduler) runRetry(payload []byte, attempt int) {
	s.mu.Lock()
	if s.closed {
		s.inflight = false
		s.mu.Unlock()
		return
	}
	s.retry = nil
	s.mu.Unlock()
	s.attempt(payload, attempt)
}
