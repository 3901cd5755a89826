package setting

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/willvault/core/internal/database"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return NewService(db)
}

func TestSetOverwritesSingleRecordPerKey(t *testing.T) {
	s := newTestService(t)

	if err := s.Set("theme", json.RawMessage(`"light"`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("theme", json.RawMessage(`"dark"`)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("theme")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"dark"` {
		t.Fatalf("expected latest value, got %s", got)
	}

	items, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single record for the key, got %d", len(items))
	}
}

func TestGetUnsetKeyReturnsNil(t *testing.T) {
	s := newTestService(t)
	got, err := s.Get("missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for unset key, got %s", got)
	}
}

func TestDeleteRemovesSetting(t *testing.T) {
	s := newTestService(t)

	if err := s.Set("autosave.hint_dismissed", json.RawMessage(`true`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("autosave.hint_dismissed"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("autosave.hint_dismissed")
	if err != nil || got != nil {
		t.Fatalf("setting survived delete: %s/%v", got, err)
	}

	// Deleting again is a no-op.
	if err := s.Delete("autosave.hint_dismissed"); err != nil {
		t.Fatal(err)
	}
}
