package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentFormat is the export format of a generated artifact.
type DocumentFormat string

const (
	DocumentFormatPDF  DocumentFormat = "pdf"
	DocumentFormatWord DocumentFormat = "docx"
)

// Valid reports whether f is a known export format.
func (f DocumentFormat) Valid() bool {
	return f == DocumentFormatPDF || f == DocumentFormatWord
}

// DocumentModel is an exported rendering of a draft at a point in time.
// Documents are immutable once created; a new export creates a new record.
// They are destroyed only by cascade when the owning draft is deleted.
type DocumentModel struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	DraftID   string         `json:"draft_id" gorm:"index;not null"`
	Type      DraftType      `json:"type"`
	Format    DocumentFormat `json:"format"`
	Payload   []byte         `json:"-"        gorm:"type:blob"`
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"created"`
}

func (DocumentModel) TableName() string { return "documents" }

func (d *DocumentModel) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
