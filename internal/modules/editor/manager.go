package editor

import (
	"context"
	"sync"
	"time"

	"github.com/willvault/core/internal/modules/draft"
	"github.com/willvault/core/internal/pkg/autosave"
	"github.com/willvault/core/internal/pkg/backup"
	"go.uber.org/zap"
)

// Saver is the opaque remote save operation the schedulers drive.
// Implemented by the generator API client.
type Saver interface {
	SaveDraft(ctx context.Context, key string, payload []byte) error
}

// Defaults seed every new session's scheduler from app config.
type Defaults struct {
	Delay      time.Duration
	Disabled   bool
	MaxRetries int
	RetryDelay time.Duration
}

// Manager owns one autosave scheduler per open editing session. A session is
// identified by the backup-slot key the wizard chose for the draft.
type Manager struct {
	defaults Defaults
	saver    Saver
	channel  *backup.Channel
	drafts   *draft.Service
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	key     string
	draftID string
	sched   *autosave.Scheduler
}

func NewManager(defaults Defaults, saver Saver, channel *backup.Channel, drafts *draft.Service, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		defaults: defaults,
		saver:    saver,
		channel:  channel,
		drafts:   drafts,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// acquire returns the session for key, creating it on first use. draftID
// links the session to a local draft record; it sticks on first non-empty
// value.
func (m *Manager) acquire(key, draftID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		if sess.draftID == "" && draftID != "" {
			sess.draftID = draftID
		}
		return sess, nil
	}

	sess := &session{key: key, draftID: draftID}
	opts := autosave.Options{
		Key:        key,
		Delay:      m.defaults.Delay,
		Disabled:   m.defaults.Disabled,
		MaxRetries: m.defaults.MaxRetries,
		RetryDelay: m.defaults.RetryDelay,
		OnSaveSuccess: func([]byte) {
			m.onSaved(sess)
		},
		OnSaveError: func(err error, _ []byte) {
			m.log.Error("editor: autosave failed terminally",
				zap.String("key", key), zap.Error(err))
		},
	}

	sched, err := autosave.New(opts, func(ctx context.Context, payload []byte) error {
		return m.saver.SaveDraft(ctx, key, payload)
	}, m.channel, m.log)
	if err != nil {
		return nil, err
	}
	sess.sched = sched
	m.sessions[key] = sess
	return sess, nil
}

// onSaved refreshes the linked draft's UpdatedAt after a confirmed remote
// save, closing the loop of the autosave control flow.
func (m *Manager) onSaved(sess *session) {
	if sess.draftID == "" {
		return
	}
	if err := m.drafts.Touch(sess.draftID, time.Now()); err != nil {
		m.log.Warn("editor: touch after save failed",
			zap.String("draft_id", sess.draftID), zap.Error(err))
	}
}

// lookup returns an existing session or nil.
func (m *Manager) lookup(key string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

// CloseSession ends one editing session; its runtime save state is
// destroyed, the backup slot is left alone.
func (m *Manager) CloseSession(key string) {
	m.mu.Lock()
	sess, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if ok {
		sess.sched.Close()
	}
}

// CloseAll shuts every session down; called on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.sched.Close()
	}
}
