package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/phone"
	"call-screener/internal/reputation"
)

// ReputationService looks up and reports caller reputation
type ReputationService interface {
	Lookup(ctx context.Context, hash string) models.ReputationResult
	Report(ctx context.Context, hash, category string) error
	Correct(ctx context.Context, hash string) error
	BreakerState() string
}

// SeedManager reloads the seed snapshot
type SeedManager interface {
	Reload(ctx context.Context) error
	Size() int
}

// ReputationHandler exposes reputation lookups, reports and seed reloads
type ReputationHandler struct {
	reputation ReputationService
	seed       SeedManager
	hasher     Hasher
	logger     *zap.Logger
}

// NewReputationHandler creates a new reputation handler
func NewReputationHandler(rep ReputationService, seed SeedManager, hasher Hasher, logger *zap.Logger) *ReputationHandler {
	return &ReputationHandler{
		reputation: rep,
		seed:       seed,
		hasher:     hasher,
		logger:     logger,
	}
}

// Lookup returns the reputation of a hash
// GET /api/v1/reputation/:hash
func (h *ReputationHandler) Lookup(c *gin.Context) {
	hash := c.Param("hash")
	if !phone.ValidHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid number hash"})
		return
	}

	result := h.reputation.Lookup(c.Request.Context(), hash)
	c.JSON(http.StatusOK, gin.H{
		"reputation": result,
		"breaker":    h.reputation.BreakerState(),
	})
}

type reportRequest struct {
	numberRequest
	Category string `json:"category" binding:"required"`
}

// Report submits a spam report
// POST /api/v1/reputation/report
func (h *ReputationHandler) Report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	hash, err := resolveHash(h.hasher, req.numberRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.reputation.Report(c.Request.Context(), hash, req.Category); err != nil {
		h.respondRemoteError(c, "report", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reported"})
}

// Correct withdraws an earlier report
// POST /api/v1/reputation/correct
func (h *ReputationHandler) Correct(c *gin.Context) {
	var req numberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	hash, err := resolveHash(h.hasher, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.reputation.Correct(c.Request.Context(), hash); err != nil {
		h.respondRemoteError(c, "correct", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "corrected"})
}

func (h *ReputationHandler) respondRemoteError(c *gin.Context, op string, err error) {
	h.logger.Warn("reputation submission failed", zap.String("operation", op), zap.Error(err))
	if errors.Is(err, reputation.ErrCircuitOpen) || errors.Is(err, reputation.ErrRemoteDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reputation service temporarily unavailable"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "Reputation service request failed"})
}

// ReloadSeed reloads the seed snapshot from storage
// POST /api/v1/seed/reload
func (h *ReputationHandler) ReloadSeed(c *gin.Context) {
	if err := h.seed.Reload(c.Request.Context()); err != nil {
		h.logger.Error("failed to reload seed snapshot", zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to reload seed snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.seed.Size()})
}
