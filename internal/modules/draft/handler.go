package draft

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"github.com/willvault/core/internal/pkg/genapi"
	"github.com/willvault/core/internal/pkg/pagination"
	"github.com/willvault/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
	gen *genapi.Client
}

func NewHandler(svc *Service, gen *genapi.Client) *Handler {
	return &Handler{svc: svc, gen: gen}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/drafts")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/export", h.export)
	g.GET("/:id/documents", h.documents)

	rg.GET("/documents/:id", h.download)
}

type draftDTO struct {
	Type    models.DraftType       `json:"type"`
	Title   string                 `json:"title"`
	Content map[string]interface{} `json:"content"`
}

type draftResponse struct {
	ID       string                 `json:"id"`
	Type     models.DraftType       `json:"type"`
	Title    string                 `json:"title"`
	Content  map[string]interface{} `json:"content"`
	Created  time.Time              `json:"created"`
	Modified time.Time              `json:"modified"`
}

func toResponse(d *models.DraftModel) draftResponse {
	content := d.Content
	if content == nil {
		content = map[string]interface{}{}
	}
	return draftResponse{
		ID: d.ID, Type: d.Type, Title: d.Title, Content: content,
		Created: d.CreatedAt, Modified: d.UpdatedAt,
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrStorageUnavailable):
		response.StorageUnavailable(c, err)
	case errors.Is(err, ErrDraftNotFound):
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var typePtr *models.DraftType
	if raw := c.Query("type"); raw != "" {
		t := models.DraftType(raw)
		if !t.Valid() {
			response.BadRequest(c, "unknown draft type: "+raw)
			return
		}
		typePtr = &t
	}

	var items []models.DraftModel
	pag, err := pagination.Paginate(h.svc.query(typePtr), q, &items)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]draftResponse, len(items))
	for i := range items {
		out[i] = toResponse(&items[i])
	}
	response.Paged(c, out, pag)
}

func (h *Handler) create(c *gin.Context) {
	var dto draftDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	d := models.DraftModel{Type: dto.Type, Title: dto.Title, Content: dto.Content}
	if _, err := h.svc.SaveDraft(&d); err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, toResponse(&d))
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.svc.GetDraft(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if d == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(d))
}

func (h *Handler) update(c *gin.Context) {
	var dto draftDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	d, err := h.svc.GetDraft(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if d == nil {
		response.NotFound(c)
		return
	}
	d.Title = dto.Title
	d.Content = dto.Content
	if _, err := h.svc.SaveDraft(d); err != nil {
		h.fail(c, err)
		return
	}
	updated, err := h.svc.GetDraft(d.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, toResponse(updated))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.DeleteDraft(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

type exportDTO struct {
	Format models.DocumentFormat `json:"format"`
}

func (h *Handler) export(c *gin.Context) {
	var dto exportDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !dto.Format.Valid() {
		response.BadRequest(c, "unknown export format: "+string(dto.Format))
		return
	}

	doc, err := h.svc.Export(c.Request.Context(), h.gen, c.Param("id"), dto.Format)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, doc)
}

func (h *Handler) documents(c *gin.Context) {
	items, err := h.svc.ListDocuments(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, items)
}

func (h *Handler) download(c *gin.Context) {
	doc, err := h.svc.GetDocument(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if doc == nil {
		response.NotFound(c)
		return
	}

	contentType := "application/pdf"
	ext := "pdf"
	if doc.Format == models.DocumentFormatWord {
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		ext = "docx"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.ID+`.`+ext+`"`)
	c.Data(http.StatusOK, contentType, doc.Payload)
}
