package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// SettingsManager reads and updates settings and the blocking policy
type SettingsManager interface {
	Current(ctx context.Context) (models.SettingsDocument, error)
	UpdateSettings(ctx context.Context, settings models.Settings) (models.SettingsDocument, error)
	UpdatePolicy(ctx context.Context, p models.AdvancedBlockingPolicy) (models.SettingsDocument, error)
	ApplyPreset(ctx context.Context, name models.PolicyPreset) (models.SettingsDocument, error)
}

// SettingsHandler exposes settings and policy management
type SettingsHandler struct {
	settings SettingsManager
	logger   *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings SettingsManager, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// GetSettings returns the screening toggles
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	doc, err := h.settings.Current(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": doc.Settings, "updated_at": doc.UpdatedAt})
}

// UpdateSettings replaces the screening toggles
// PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	doc, err := h.settings.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("failed to update settings", zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": doc.Settings, "updated_at": doc.UpdatedAt})
}

// GetPolicy returns the advanced blocking policy
// GET /api/v1/policy
func (h *SettingsHandler) GetPolicy(c *gin.Context) {
	doc, err := h.settings.Current(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load policy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": doc.Policy})
}

// UpdatePolicy replaces the advanced blocking policy; the preset is derived
// PUT /api/v1/policy
func (h *SettingsHandler) UpdatePolicy(c *gin.Context) {
	var req models.AdvancedBlockingPolicy
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	doc, err := h.settings.UpdatePolicy(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("failed to update policy", zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to update policy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": doc.Policy})
}

// ApplyPreset switches the policy to a named preset
// POST /api/v1/policy/preset/:name
func (h *SettingsHandler) ApplyPreset(c *gin.Context) {
	doc, err := h.settings.ApplyPreset(c.Request.Context(), models.PolicyPreset(c.Param("name")))
	if err != nil {
		h.logger.Warn("failed to apply preset", zap.String("preset", c.Param("name")), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to apply preset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": doc.Policy})
}
