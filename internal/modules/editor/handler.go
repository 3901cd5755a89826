package editor

import (
	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/pkg/response"
)

type Handler struct{ mgr *Manager }

func NewHandler(mgr *Manager) *Handler { return &Handler{mgr: mgr} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/editor/:key")
	g.POST("/events", h.event)
	g.POST("/save", h.saveNow)
	g.POST("/force-save", h.forceSave)
	g.GET("/status", h.status)
	g.GET("/backup", h.getBackup)
	g.POST("/restore", h.restore)
	g.DELETE("/backup", h.clearBackup)
	g.DELETE("", h.closeSession)
}

type eventDTO struct {
	DraftID string                 `json:"draft_id"`
	Content map[string]interface{} `json:"content" binding:"required"`
}

func (h *Handler) event(c *gin.Context) {
	var dto eventDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sess, err := h.mgr.acquire(c.Param("key"), dto.DraftID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if err := sess.sched.Notify(dto.Content); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sess.sched.Status())
}

func (h *Handler) session(c *gin.Context) *session {
	sess := h.mgr.lookup(c.Param("key"))
	if sess == nil {
		response.NotFoundMsg(c, "no editing session for key")
	}
	return sess
}

func (h *Handler) saveNow(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	if err := sess.sched.SaveNow(); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sess.sched.Status())
}

type forceSaveDTO struct {
	Content map[string]interface{} `json:"content"`
}

func (h *Handler) forceSave(c *gin.Context) {
	var dto forceSaveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sess := h.session(c)
	if sess == nil {
		return
	}

	var err error
	if dto.Content == nil {
		err = sess.sched.ForceSave(nil)
	} else {
		err = sess.sched.ForceSave(dto.Content)
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sess.sched.Status())
}

func (h *Handler) status(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	st := sess.sched.Status()
	response.OK(c, gin.H{
		"state":               st.State,
		"last_saved_at":       st.LastSavedAt,
		"has_unsaved_changes": st.HasUnsavedChanges,
		"retry_count":         st.RetryCount,
		"has_backup":          sess.sched.HasBackup(),
	})
}

func (h *Handler) getBackup(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	snap, err := sess.sched.GetBackup()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if snap == nil {
		response.NotFoundMsg(c, "no backup snapshot")
		return
	}
	response.OK(c, snap)
}

func (h *Handler) restore(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	data, err := sess.sched.RestoreFromBackup()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if data == nil {
		response.NotFoundMsg(c, "no backup snapshot")
		return
	}
	response.OK(c, gin.H{"content": data})
}

func (h *Handler) clearBackup(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	if err := sess.sched.ClearBackup(); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) closeSession(c *gin.Context) {
	h.mgr.CloseSession(c.Param("key"))
	response.NoContent(c)
}
