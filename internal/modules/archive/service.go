package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/willvault/core/internal/config"
	"github.com/willvault/core/internal/pkg/cron"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// archiveTables are the store collections included in every snapshot.
var archiveTables = []string{"drafts", "documents", "settings"}

const filenameLayout = "2006-01-02T15-04-05"

// Item describes one archive on disk.
type Item struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created"`
}

// Service produces zip snapshots of the local durable store, prunes old
// ones and optionally ships them off-site.
type Service struct {
	db       *gorm.DB
	dir      string
	keep     int
	uploader *s3Uploader
	log      *zap.Logger
}

func NewService(db *gorm.DB, cfg config.ArchiveConfig, dir string, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{db: db, dir: dir, keep: cfg.Keep, log: log}
	if cfg.S3.Enabled {
		up, err := newS3Uploader(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("archive s3: %w", err)
		}
		s.uploader = up
	}
	return s, nil
}

// Job returns the periodic archival job for the cron scheduler.
func (s *Service) Job(interval time.Duration) cron.Job {
	return cron.Job{
		Name:        "store-archive",
		Description: "zip snapshot of drafts, documents and settings",
		Interval:    interval,
		Fn: func(ctx context.Context) error {
			_, err := s.Create(ctx)
			return err
		},
	}
}

// Create writes a new archive, prunes beyond the keep limit and uploads
// off-site when configured. Upload failure does not fail the archive.
func (s *Service) Create(ctx context.Context) (*Item, error) {
	buf, err := s.buildZip()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("archive-%s.zip", now.Format(filenameLayout))
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	s.prune()

	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, filename, buf.Bytes()); err != nil {
			s.log.Warn("archive: off-site upload failed",
				zap.String("filename", filename), zap.Error(err))
		}
	}

	s.log.Info("archive created", zap.String("filename", filename), zap.Int("bytes", buf.Len()))
	return &Item{Filename: filename, Size: int64(buf.Len()), CreatedAt: now}, nil
}

// buildZip exports every collection as a JSON row dump into one zip.
func (s *Service) buildZip() (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, table := range archiveTables {
		var rows []map[string]interface{}
		if err := s.db.Table(table).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		payload, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", table, err)
		}

		f, err := w.Create(table + ".json")
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(payload); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// List returns archives on disk, newest first.
func (s *Service) List() []Item {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []Item{}
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{
			Filename:  e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Filename > items[j].Filename })
	return items
}

// Read returns the raw bytes of one archive.
func (s *Service) Read(filename string) ([]byte, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Delete removes one archive from disk.
func (s *Service) Delete(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// resolve guards against path traversal out of the archive dir.
func (s *Service) resolve(filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".zip") {
		return "", fmt.Errorf("invalid archive filename: %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// prune deletes the oldest archives beyond the keep limit.
func (s *Service) prune() {
	if s.keep <= 0 {
		return
	}
	items := s.List()
	for i := s.keep; i < len(items); i++ {
		if err := s.Delete(items[i].Filename); err != nil {
			s.log.Warn("archive: prune failed",
				zap.String("filename", items[i].Filename), zap.Error(err))
		}
	}
}
