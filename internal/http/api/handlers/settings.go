package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiker-app/tiker/internal/models"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
)

// SettingsHandler serves the operator policy settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns all settings rows.
func (h *SettingsHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"key":        row.Key,
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Update upserts one setting and refreshes the in-process snapshot so the
// change takes effect without a restart.
func (h *SettingsHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || len(key) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid setting key"})
		return
	}
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || len(req.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value required"})
		return
	}
	if !json.Valid(req.Value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be valid JSON"})
		return
	}

	errSave := h.db.WithContext(c.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.Setting{Key: key, Value: req.Value}).Error
	if errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
		return
	}
	if errRefresh := internalsettings.Refresh(h.db.WithContext(c.Request.Context())); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}
