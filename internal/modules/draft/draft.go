package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"gorm.io/gorm"
)

// ErrDraftNotFound is returned when an operation targets a missing draft.
var ErrDraftNotFound = errors.New("draft not found")

// Service is the typed repository over the local durable store for draft and
// document records. Storage failures surface as
// database.ErrStorageUnavailable, never masked.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// SaveDraft persists d. A draft without an identifier is created (identifier
// assigned, CreatedAt == UpdatedAt); an existing draft has its title and
// content replaced wholesale with UpdatedAt refreshed and CreatedAt
// untouched. Returns the identifier.
func (s *Service) SaveDraft(d *models.DraftModel) (string, error) {
	if !d.Type.Valid() {
		return "", fmt.Errorf("invalid draft type: %q", d.Type)
	}

	if d.ID == "" {
		now := time.Now()
		d.CreatedAt = now
		d.UpdatedAt = now
		if err := database.WrapWriteErr(s.db.Create(d).Error); err != nil {
			return "", err
		}
		return d.ID, nil
	}

	existing, err := s.GetDraft(d.ID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, d.ID)
	}

	existing.Title = d.Title
	existing.Content = d.Content
	existing.UpdatedAt = time.Now()
	if err := database.WrapWriteErr(s.db.Save(existing).Error); err != nil {
		return "", err
	}
	return d.ID, nil
}

// Touch refreshes a draft's UpdatedAt after a confirmed remote save.
func (s *Service) Touch(id string, at time.Time) error {
	err := s.db.Model(&models.DraftModel{Base: models.Base{ID: id}}).
		Update("updated_at", at).Error
	return database.WrapWriteErr(err)
}

// ListDrafts returns drafts newest-updated first, optionally filtered by type.
// The returned slice is a snapshot: re-query after mutations.
func (s *Service) ListDrafts(t *models.DraftType) ([]models.DraftModel, error) {
	tx := s.db.Model(&models.DraftModel{}).Order("updated_at DESC")
	if t != nil {
		tx = tx.Where("type = ?", *t)
	}
	var items []models.DraftModel
	return items, tx.Find(&items).Error
}

// query builds the list query for the paginated HTTP surface.
func (s *Service) query(t *models.DraftType) *gorm.DB {
	tx := s.db.Model(&models.DraftModel{}).Order("updated_at DESC")
	if t != nil {
		tx = tx.Where("type = ?", *t)
	}
	return tx
}

// GetDraft returns the draft or nil when it does not exist.
func (s *Service) GetDraft(id string) (*models.DraftModel, error) {
	var d models.DraftModel
	if err := s.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// DeleteDraft removes the draft and cascades to all documents referencing it
// inside one transaction: either both are gone or neither is.
func (s *Service) DeleteDraft(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("draft_id = ?", id).Delete(&models.DocumentModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DraftModel{}, "id = ?", id).Error
	})
	return database.WrapWriteErr(err)
}

// SaveDocument stores a generated artifact. The owning draft must exist at
// creation time; documents are immutable afterwards.
func (s *Service) SaveDocument(doc *models.DocumentModel) (string, error) {
	if !doc.Format.Valid() {
		return "", fmt.Errorf("invalid document format: %q", doc.Format)
	}
	owner, err := s.GetDraft(doc.DraftID)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, doc.DraftID)
	}

	doc.Type = owner.Type
	doc.Size = int64(len(doc.Payload))
	if err := database.WrapWriteErr(s.db.Create(doc).Error); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// ListDocuments returns the artifacts of a draft, newest first, without
// their binary payloads.
func (s *Service) ListDocuments(draftID string) ([]models.DocumentModel, error) {
	var items []models.DocumentModel
	err := s.db.Omit("payload").
		Where("draft_id = ?", draftID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// GetDocument loads a full artifact including its payload, for download.
func (s *Service) GetDocument(id string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// Renderer produces the export artifact for a draft; implemented by the
// remote generator client.
type Renderer interface {
	Render(ctx context.Context, draft *models.DraftModel, format models.DocumentFormat) ([]byte, error)
}

// Export renders the draft in the given format and stores the result as a
// new immutable document record.
func (s *Service) Export(ctx context.Context, r Renderer, draftID string, format models.DocumentFormat) (*models.DocumentModel, error) {
	d, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}

	payload, err := r.Render(ctx, d, format)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	doc := &models.DocumentModel{
		DraftID: d.ID,
		Format:  format,
		Payload: payload,
	}
	if _, err := s.SaveDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
