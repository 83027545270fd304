package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/metrics"
	"call-screener/internal/models"
)

// Screener decides how to handle an incoming call
type Screener interface {
	Screen(ctx context.Context, raw *string) models.Decision
}

// CallTracker drives the ring timer
type CallTracker interface {
	RingStarted(hash string)
	Answered()
	Ended(ctx context.Context) (behavior.RingOutcome, bool, error)
}

// ScreeningHandler is the telephony boundary
type ScreeningHandler struct {
	screener Screener
	tracker  CallTracker
	hasher   Hasher
	metrics  *metrics.MetricsCollector
	logger   *zap.Logger
}

// NewScreeningHandler creates a new screening handler
func NewScreeningHandler(screener Screener, tracker CallTracker, hasher Hasher, m *metrics.MetricsCollector, logger *zap.Logger) *ScreeningHandler {
	return &ScreeningHandler{
		screener: screener,
		tracker:  tracker,
		hasher:   hasher,
		metrics:  m,
		logger:   logger,
	}
}

type screenRequest struct {
	// Nil when the caller ID was withheld
	Number *string `json:"number"`
}

// Screen decides on an incoming call. It always answers 200 with a decision.
// POST /api/v1/screen
func (h *ScreeningHandler) Screen(c *gin.Context) {
	var req screenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid screen request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}

	start := time.Now()
	decision := h.screener.Screen(c.Request.Context(), req.Number)

	c.JSON(http.StatusOK, gin.H{
		"decision": decision,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
		},
	})
}

// RingStart starts timing the current ring
// POST /api/v1/calls/ring-start
func (h *ScreeningHandler) RingStart(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// Hidden or unnormalizable callers are timed without an identifier
	hash := ""
	if req.Number != nil && strings.TrimSpace(*req.Number) != "" {
		hash, _ = h.hasher.Hash(*req.Number)
	}
	h.tracker.RingStarted(hash)

	c.JSON(http.StatusAccepted, gin.H{"status": "ringing"})
}

// Answered marks the current call as answered
// POST /api/v1/calls/answered
func (h *ScreeningHandler) Answered(c *gin.Context) {
	h.tracker.Answered()
	c.JSON(http.StatusOK, gin.H{"status": "answered"})
}

// Ended classifies the ring that just ended
// POST /api/v1/calls/ended
func (h *ScreeningHandler) Ended(c *gin.Context) {
	out, ok, err := h.tracker.Ended(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to record short ring", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record call end"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"tracked": false})
		return
	}
	if out.IsShort && out.NumberHash != "" {
		h.metrics.RecordBehaviorEvent(string(models.EventShortRing))
	}

	c.JSON(http.StatusOK, gin.H{
		"tracked":     true,
		"short_ring":  out.IsShort,
		"duration_ms": out.Duration.Milliseconds(),
	})
}
