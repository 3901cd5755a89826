package setting

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/willvault/core/internal/database"
	"github.com/willvault/core/internal/models"
	"github.com/willvault/core/internal/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service stores singleton-per-key user preferences in the local durable
// store. Writes upsert: at most one record per key ever exists.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Set creates or overwrites the setting under key. value must be JSON.
func (s *Service) Set(key string, value json.RawMessage) error {
	rec := models.SettingModel{Key: key, Value: string(value)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	return database.WrapWriteErr(err)
}

// Get returns the setting value or nil when unset.
func (s *Service) Get(key string) (json.RawMessage, error) {
	var rec models.SettingModel
	if err := s.db.Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return json.RawMessage(rec.Value), nil
}

// List returns all settings.
func (s *Service) List() ([]models.SettingModel, error) {
	var items []models.SettingModel
	return items, s.db.Order("key").Find(&items).Error
}

// Delete removes the setting under key. Deleting an unset key is a no-op.
func (s *Service) Delete(key string) error {
	err := s.db.Where("key = ?", key).Delete(&models.SettingModel{}).Error
	return database.WrapWriteErr(err)
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/settings")
	g.GET("", h.list)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
	g.DELETE("/:key", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		out[item.Key] = json.RawMessage(item.Value)
	}
	response.OK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	value, err := h.svc.Get(c.Param("key"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if value == nil {
		response.NotFoundMsg(c, "setting not found")
		return
	}
	response.OK(c, gin.H{"key": c.Param("key"), "value": value})
}

type putDTO struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

func (h *Handler) put(c *gin.Context) {
	var dto putDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Set(c.Param("key"), dto.Value); err != nil {
		if errors.Is(err, database.ErrStorageUnavailable) {
			response.StorageUnavailable(c, err)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"key": c.Param("key"), "value": dto.Value})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("key")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
