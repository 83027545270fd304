package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// ProfileSource summarizes a caller's behavioral events
type ProfileSource interface {
	Profile(ctx context.Context, hash string) (*behavior.Profile, error)
}

// HistoryReader lists recent screening decisions
type HistoryReader interface {
	Recent(ctx context.Context, limit, offset int) ([]*models.HistoryRecord, error)
}

// DataResetter wipes all user data
type DataResetter interface {
	ResetAll(ctx context.Context) error
}

// DiagnosticsHandler serves behavior profiles, call history and data reset
type DiagnosticsHandler struct {
	profiles ProfileSource
	history  HistoryReader
	resetter DataResetter
	logger   *zap.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(profiles ProfileSource, history HistoryReader, resetter DataResetter, logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		profiles: profiles,
		history:  history,
		resetter: resetter,
		logger:   logger,
	}
}

// GetProfile returns the behavioral profile of a caller
// GET /api/v1/behavior/:hash
func (h *DiagnosticsHandler) GetProfile(c *gin.Context) {
	hash := c.Param("hash")
	if !phone.ValidHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid number hash"})
		return
	}

	profile, err := h.profiles.Profile(c.Request.Context(), hash)
	if err != nil {
		h.logger.Error("failed to build behavior profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetHistory lists recent screening decisions, newest first
// GET /api/v1/history
func (h *DiagnosticsHandler) GetHistory(c *gin.Context) {
	limit, offset := pagination(c)
	records, err := h.history.Recent(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"meta": gin.H{
			"limit":    limit,
			"offset":   offset,
			"returned": len(records),
		},
	})
}

// ResetAll wipes lists, rules, history, settings and behavioral events
// DELETE /api/v1/data
func (h *DiagnosticsHandler) ResetAll(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reset requires confirm=true"})
		return
	}

	if err := h.resetter.ResetAll(c.Request.Context()); err != nil {
		h.logger.Error("failed to reset data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
