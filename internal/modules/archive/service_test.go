package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/willvault/core/internal/config"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T, keep int) (*Service, *gorm.DB, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	dir := t.TempDir()
	svc, err := NewService(db, config.ArchiveConfig{Keep: keep}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc, db, dir
}

func TestCreateSnapshotsAllCollections(t *testing.T) {
	svc, db, dir := newTestService(t, 5)

	d := &models.DraftModel{
		Type:    models.DraftTypeWill,
		Title:   "estate of jane",
		Content: map[string]interface{}{"step": float64(3)},
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.SettingModel{Key: "theme", Value: `"dark"`}).Error; err != nil {
		t.Fatal(err)
	}

	item, err := svc.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, item.Filename))
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]int{"drafts.json": 1, "documents.json": 0, "settings.json": 1}
	for _, f := range zr.File {
		expected, ok := want[f.Name]
		if !ok {
			t.Fatalf("unexpected entry %s", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var rows []map[string]interface{}
		if err := json.NewDecoder(rc).Decode(&rows); err != nil {
			t.Fatalf("decode %s: %v", f.Name, err)
		}
		rc.Close()
		if len(rows) != expected {
			t.Fatalf("%s: expected %d rows, got %d", f.Name, expected, len(rows))
		}
		delete(want, f.Name)
	}
	if len(want) != 0 {
		t.Fatalf("missing entries: %v", want)
	}
}

func TestPruneDropsOldestBeyondKeepLimit(t *testing.T) {
	svc, _, dir := newTestService(t, 2)

	// Pre-existing archives; names sort chronologically.
	for _, name := range []string{
		"archive-2026-01-01T00-00-00.zip",
		"archive-2026-01-02T00-00-00.zip",
		"archive-2026-01-03T00-00-00.zip",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.Create(context.Background()); err != nil {
		t.Fatal(err)
	}

	items := svc.List()
	if len(items) != 2 {
		t.Fatalf("expected keep=2 archives, got %d", len(items))
	}
	for _, it := range items {
		if it.Filename == "archive-2026-01-01T00-00-00.zip" || it.Filename == "archive-2026-01-02T00-00-00.zip" {
			t.Fatalf("old archive %s should have been pruned", it.Filename)
		}
	}
}

func TestReadRejectsPathTraversal(t *testing.T) {
	svc, _, _ := newTestService(t, 5)

	for _, name := range []string{"../secret.zip", "sub/evil.zip", "notes.txt"} {
		if _, err := svc.Read(name); err == nil {
			t.Fatalf("expected rejection for %q", name)
		}
	}
}
