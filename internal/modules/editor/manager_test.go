package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"github.com/willvault/core/internal/modules/draft"
	"github.com/willvault/core/internal/pkg/autosave"
	"github.com/willvault/core/internal/pkg/backup"
	"gorm.io/gorm/logger"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV { return &memoryKV{data: make(map[string]string)} }

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeSaver struct {
	mu    sync.Mutex
	keys  []string
	fail  bool
	calls int
}

func (f *fakeSaver) SaveDraft(_ context.Context, key string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	if f.fail {
		return errors.New("upstream down")
	}
	return nil
}

func (f *fakeSaver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestManager(t *testing.T, saver Saver) (*Manager, *draft.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	drafts := draft.NewService(db)
	ch := backup.NewChannel(newMemoryKV(), nil)
	mgr := NewManager(Defaults{
		Delay:      15 * time.Millisecond,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	}, saver, ch, drafts, nil)
	t.Cleanup(mgr.CloseAll)
	return mgr, drafts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAcquireReturnsSameSessionPerKey(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeSaver{})

	a, err := mgr.acquire("draft-key", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.acquire("draft-key", "some-draft-id")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected one session per key")
	}
	if b.draftID != "some-draft-id" {
		t.Fatal("draft link should stick on first non-empty value")
	}
}

func TestEditFlowTouchesDraftAfterConfirmedSave(t *testing.T) {
	saver := &fakeSaver{}
	mgr, drafts := newTestManager(t, saver)

	d := &models.DraftModel{Type: models.DraftTypeWill, Title: "w"}
	id, err := drafts.SaveDraft(d)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := drafts.GetDraft(id)

	time.Sleep(10 * time.Millisecond)
	sess, err := mgr.acquire("session-1", id)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.sched.Notify(map[string]int{"step": 2}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "remote save", func() bool { return saver.callCount() == 1 })
	waitFor(t, "draft touched", func() bool {
		after, _ := drafts.GetDraft(id)
		return after != nil && after.UpdatedAt.After(before.UpdatedAt)
	})
}

func TestTerminalFailureKeepsBackupForRecovery(t *testing.T) {
	saver := &fakeSaver{fail: true}
	mgr, _ := newTestManager(t, saver)

	sess, err := mgr.acquire("session-err", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.sched.Notify(map[string]string{"clause": "residue"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "terminal error", func() bool {
		return sess.sched.Status().State == autosave.StateError
	})
	if saver.callCount() != 2 {
		t.Fatalf("expected MaxRetries=2 attempts, got %d", saver.callCount())
	}
	if !sess.sched.HasBackup() {
		t.Fatal("backup must survive terminal failure")
	}
}

func TestCloseSessionDestroysRuntimeState(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeSaver{})

	sess, err := mgr.acquire("session-close", "")
	if err != nil {
		t.Fatal(err)
	}
	mgr.CloseSession("session-close")

	if err := sess.sched.Notify(map[string]int{"v": 1}); !errors.Is(err, autosave.ErrClosed) {
		t.Fatalf("expected ErrClosed after session end, got %v", err)
	}
	if mgr.lookup("session-close") != nil {
		t.Fatal("session should be removed from the manager")
	}
}
