package draft

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewService(db)
}

func mustSave(t *testing.T, s *Service, d *models.DraftModel) string {
	t.Helper()
	id, err := s.SaveDraft(d)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	return id
}

func TestSaveDraftAssignsIdentifierAndTimestamps(t *testing.T) {
	s := newTestService(t)

	d := &models.DraftModel{
		Type:    models.DraftTypeWill,
		Title:   "Last Will",
		Content: map[string]interface{}{"step": float64(1)},
	}
	id := mustSave(t, s, d)
	if id == "" {
		t.Fatal("expected identifier to be assigned")
	}

	got, err := s.GetDraft(id)
	if err != nil || got == nil {
		t.Fatalf("get draft: %v/%v", got, err)
	}
	if !got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("new draft must have CreatedAt == UpdatedAt, got %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	time.Sleep(10 * time.Millisecond)
	got.Title = "Last Will v2"
	got.Content = map[string]interface{}{"step": float64(2)}
	if sameID := mustSave(t, s, got); sameID != id {
		t.Fatalf("identifier changed on update: %s -> %s", id, sameID)
	}

	updated, err := s.GetDraft(id)
	if err != nil || updated == nil {
		t.Fatalf("get updated draft: %v", err)
	}
	if !updated.CreatedAt.Equal(got.CreatedAt) {
		t.Fatal("update must not touch CreatedAt")
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatal("update must advance UpdatedAt")
	}
	if updated.Title != "Last Will v2" || updated.Content["step"] != float64(2) {
		t.Fatalf("content not replaced wholesale: %+v", updated)
	}
}

func TestSaveDraftRejectsUnknownType(t *testing.T) {
	s := newTestService(t)
	_, err := s.SaveDraft(&models.DraftModel{Type: "testament"})
	if err == nil {
		t.Fatal("expected an error for unknown draft type")
	}
}

func TestSaveDraftUpdateOfMissingDraftFails(t *testing.T) {
	s := newTestService(t)
	d := &models.DraftModel{Base: models.Base{ID: uuid.New().String()}, Type: models.DraftTypeWill}
	if _, err := s.SaveDraft(d); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

func TestListDraftsNewestFirstWithTypeFilter(t *testing.T) {
	s := newTestService(t)

	first := mustSave(t, s, &models.DraftModel{Type: models.DraftTypeWill, Title: "a"})
	time.Sleep(5 * time.Millisecond)
	mustSave(t, s, &models.DraftModel{Type: models.DraftTypePOACare, Title: "b"})
	time.Sleep(5 * time.Millisecond)
	third := mustSave(t, s, &models.DraftModel{Type: models.DraftTypeWill, Title: "c"})

	all, err := s.ListDrafts(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(all))
	}
	if all[0].ID != third {
		t.Fatalf("expected newest first, got %s", all[0].Title)
	}

	wills := models.DraftTypeWill
	filtered, err := s.ListDrafts(&wills)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 wills, got %d", len(filtered))
	}
	for _, d := range filtered {
		if d.Type != models.DraftTypeWill {
			t.Fatalf("filter leaked type %s", d.Type)
		}
	}

	// Touching the oldest draft reorders the list.
	if err := s.Touch(first, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	all, err = s.ListDrafts(nil)
	if err != nil {
		t.Fatal(err)
	}
	if all[0].ID != first {
		t.Fatal("touched draft should list first")
	}
}

func TestDeleteDraftCascadesToDocuments(t *testing.T) {
	s := newTestService(t)

	id := mustSave(t, s, &models.DraftModel{Type: models.DraftTypeWill, Title: "w"})
	other := mustSave(t, s, &models.DraftModel{Type: models.DraftTypePOAProperty, Title: "p"})

	for i := 0; i < 2; i++ {
		if _, err := s.SaveDocument(&models.DocumentModel{
			DraftID: id,
			Format:  models.DocumentFormatPDF,
			Payload: []byte("pdf-bytes"),
		}); err != nil {
			t.Fatalf("save document: %v", err)
		}
	}
	if _, err := s.SaveDocument(&models.DocumentModel{
		DraftID: other,
		Format:  models.DocumentFormatWord,
		Payload: []byte("docx-bytes"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDraft(id); err != nil {
		t.Fatalf("delete draft: %v", err)
	}

	if d, _ := s.GetDraft(id); d != nil {
		t.Fatal("draft survived deletion")
	}
	docs, err := s.ListDocuments(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("cascade left %d documents behind", len(docs))
	}

	otherDocs, err := s.ListDocuments(other)
	if err != nil {
		t.Fatal(err)
	}
	if len(otherDocs) != 1 {
		t.Fatal("cascade deleted an unrelated draft's documents")
	}
}

func TestSaveDocumentRequiresExistingDraft(t *testing.T) {
	s := newTestService(t)
	_, err := s.SaveDocument(&models.DocumentModel{
		DraftID: uuid.New().String(),
		Format:  models.DocumentFormatPDF,
	})
	if !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

type fakeRenderer struct {
	out []byte
	err error
}

func (f *fakeRenderer) Render(context.Context, *models.DraftModel, models.DocumentFormat) ([]byte, error) {
	return f.out, f.err
}

func TestExportCreatesImmutableDocuments(t *testing.T) {
	s := newTestService(t)
	id := mustSave(t, s, &models.DraftModel{Type: models.DraftTypePOACare, Title: "care"})

	r := &fakeRenderer{out: []byte("%PDF-1.7")}
	first, err := s.Export(context.Background(), r, id, models.DocumentFormatPDF)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	second, err := s.Export(context.Background(), r, id, models.DocumentFormatPDF)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("a new export must create a new document, never mutate an old one")
	}
	if first.Type != models.DraftTypePOACare {
		t.Fatalf("document type not inherited from draft: %s", first.Type)
	}
	if first.Size != int64(len(r.out)) {
		t.Fatalf("size mismatch: %d", first.Size)
	}

	docs, err := s.ListDocuments(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestExportFailsWhenRendererFails(t *testing.T) {
	s := newTestService(t)
	id := mustSave(t, s, &models.DraftModel{Type: models.DraftTypeWill})

	r := &fakeRenderer{err: errors.New("upstream down")}
	if _, err := s.Export(context.Background(), r, id, models.DocumentFormatPDF); err == nil {
		t.Fatal("expected export to fail")
	}
	docs, _ := s.ListDocuments(id)
	if len(docs) != 0 {
		t.Fatal("failed export must not leave a document record")
	}
}
