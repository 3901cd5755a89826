package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion is written into every snapshot. Snapshots carrying a newer
// version than the running binary understands are refused on read.
const SchemaVersion = 1

const slotSuffix = "_backup"

// ErrIncompatibleSnapshot is returned when a stored snapshot was written by a
// newer schema than this binary knows how to restore.
var ErrIncompatibleSnapshot = errors.New("backup snapshot schema too new")

// Snapshot is the single-slot safety copy of the latest unsaved payload.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
}

// KV is the minimal key/value surface the channel needs. The production
// implementation is redis; tests use an in-memory map.
type KV interface {
	Set(ctx context.Context, key, value string) error
	// Get returns ("", nil) when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// Channel holds exactly one "most recent unsaved payload" per logical key.
// It is a safety net, not the primary store: Stash never propagates failure
// into the edit flow.
type Channel struct {
	kv  KV
	log *zap.Logger
}

// NewChannel creates a backup channel over kv.
func NewChannel(kv KV, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{kv: kv, log: log}
}

func slotKey(key string) string { return key + slotSuffix }

// Stash overwrites the snapshot under key with payload. Best-effort: write
// failures are logged, never returned, so a broken backup store cannot block
// editing.
func (c *Channel) Stash(ctx context.Context, key string, payload []byte) {
	snap := Snapshot{
		Data:      json.RawMessage(payload),
		Timestamp: time.Now(),
		Version:   SchemaVersion,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		c.log.Warn("backup stash: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, slotKey(key), string(raw)); err != nil {
		c.log.Warn("backup stash: write failed", zap.String("key", key), zap.Error(err))
	}
}

// Peek returns the snapshot under key, or (nil, nil) when there is none.
func (c *Channel) Peek(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := c.kv.Get(ctx, slotKey(key))
	if err != nil {
		return nil, fmt.Errorf("backup peek: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("backup peek: decode: %w", err)
	}
	if snap.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, understand %d", ErrIncompatibleSnapshot, snap.Version, SchemaVersion)
	}
	return &snap, nil
}

// Has reports whether a snapshot exists under key.
func (c *Channel) Has(ctx context.Context, key string) bool {
	raw, err := c.kv.Get(ctx, slotKey(key))
	return err == nil && raw != ""
}

// Clear removes the snapshot under key. Called only after a confirmed
// successful remote save.
func (c *Channel) Clear(ctx context.Context, key string) error {
	if err := c.kv.Del(ctx, slotKey(key)); err != nil {
		return fmt.Errorf("backup clear: %w", err)
	}
	return nil
}
