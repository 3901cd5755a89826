package archive

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/archives")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:filename", h.download)
	g.DELETE("/:filename", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.svc.List())
}

func (h *Handler) create(c *gin.Context) {
	item, err := h.svc.Create(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *Handler) download(c *gin.Context) {
	data, err := h.svc.Read(c.Param("filename"))
	if err != nil {
		response.NotFoundMsg(c, "archive not found")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+c.Param("filename")+`"`)
	c.Data(http.StatusOK, "application/zip", data)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Param("filename")); err != nil {
		response.NotFoundMsg(c, "archive not found")
		return
	}
	response.NoContent(c)
}
