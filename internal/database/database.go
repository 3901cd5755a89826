package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/willvault/core/internal/config"
	"github.com/willvault/core/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStorageUnavailable is returned when the local durable store cannot
// accept the operation (disabled storage, locked database, full disk).
// Callers must surface it distinctly: it means the draft is not persisting.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// Connect opens the sqlite store backing all three collections and runs
// auto-migration. WAL mode keeps writes durable without blocking readers.
func Connect(cfg *config.AppConfig) (*gorm.DB, error) {
	path := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %v", ErrStorageUnavailable, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	return Open(dsn, resolveLogLevel(cfg))
}

// Open opens a sqlite database at dsn and migrates the schema. Tests pass an
// in-memory DSN.
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %v", ErrStorageUnavailable, err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Warn
	}
	return logger.Silent
}

// migrate runs GORM auto-migration for the three record collections.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DraftModel{},
		&models.DocumentModel{},
		&models.SettingModel{},
	)
}

// WrapWriteErr classifies a write failure: sqlite environment errors become
// ErrStorageUnavailable, everything else passes through unchanged.
func WrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"database is locked",
		"disk i/o error",
		"database or disk is full",
		"attempt to write a readonly database",
		"unable to open database",
		"out of memory",
	} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return err
}
