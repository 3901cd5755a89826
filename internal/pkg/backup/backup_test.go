package backup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string

	failSet bool
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("quota exceeded")
	}
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

func TestStashThenPeek(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(newMemoryKV(), nil)

	payload := []byte(`{"step":3,"beneficiaries":["a","b"]}`)
	ch.Stash(ctx, "draft-1", payload)

	snap, err := ch.Peek(ctx, "draft-1")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if string(snap.Data) != string(payload) {
		t.Fatalf("payload mismatch: %s", snap.Data)
	}
	if snap.Version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, snap.Version)
	}
	if snap.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestStashReplacesPriorSnapshot(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(newMemoryKV(), nil)

	ch.Stash(ctx, "draft-1", []byte(`{"v":1}`))
	ch.Stash(ctx, "draft-1", []byte(`{"v":2}`))

	snap, err := ch.Peek(ctx, "draft-1")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if string(snap.Data) != `{"v":2}` {
		t.Fatalf("expected latest payload, got %s", snap.Data)
	}
}

func TestHasAndClear(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(newMemoryKV(), nil)

	if ch.Has(ctx, "draft-1") {
		t.Fatal("empty channel reports a backup")
	}
	ch.Stash(ctx, "draft-1", []byte(`{}`))
	if !ch.Has(ctx, "draft-1") {
		t.Fatal("expected backup after stash")
	}
	if err := ch.Clear(ctx, "draft-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ch.Has(ctx, "draft-1") {
		t.Fatal("backup survived clear")
	}
	snap, err := ch.Peek(ctx, "draft-1")
	if err != nil || snap != nil {
		t.Fatalf("expected no snapshot after clear, got %v/%v", snap, err)
	}
}

func TestStashFailureDoesNotPropagate(t *testing.T) {
	ctx := context.Background()
	kv := newMemoryKV()
	kv.failSet = true
	ch := NewChannel(kv, nil)

	// Must not panic or surface the error; the edit flow continues degraded.
	ch.Stash(ctx, "draft-1", []byte(`{}`))
	if ch.Has(ctx, "draft-1") {
		t.Fatal("failed stash should leave no snapshot")
	}
}

func TestPeekRefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	kv := newMemoryKV()
	ch := NewChannel(kv, nil)

	raw, _ := json.Marshal(Snapshot{Data: []byte(`{}`), Version: SchemaVersion + 1})
	if err := kv.Set(ctx, "draft-1"+slotSuffix, string(raw)); err != nil {
		t.Fatal(err)
	}

	_, err := ch.Peek(ctx, "draft-1")
	if !errors.Is(err, ErrIncompatibleSnapshot) {
		t.Fatalf("expected ErrIncompatibleSnapshot, got %v", err)
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(newMemoryKV(), nil)

	ch.Stash(ctx, "draft-1", []byte(`{"a":1}`))
	ch.Stash(ctx, "draft-2", []byte(`{"b":2}`))

	if err := ch.Clear(ctx, "draft-1"); err != nil {
		t.Fatal(err)
	}
	if ch.Has(ctx, "draft-1") {
		t.Fatal("draft-1 backup survived clear")
	}
	if !ch.Has(ctx, "draft-2") {
		t.Fatal("draft-2 backup lost by clearing draft-1")
	}
}
