package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "call-screener"

// Version is set at build time
var Version = "dev"

// BackendChecker pings external storage
type BackendChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// BreakerStater reports the reputation breaker state
type BreakerStater interface {
	BreakerState() string
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	backends BackendChecker
	breaker  BreakerStater
	seed     SeedManager
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(backends BackendChecker, breaker BreakerStater, seed SeedManager, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		backends: backends,
		breaker:  breaker,
		seed:     seed,
		logger:   logger,
	}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Ready checks if the service is ready to handle requests. An open breaker
// degrades screening but does not make the service unready.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	for name, err := range h.backends.HealthCheck(ctx) {
		if err != nil {
			checks[name] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	checks["reputation"] = map[string]interface{}{
		"status":       "healthy",
		"breaker":      h.breaker.BreakerState(),
		"seed_entries": h.seed.Size(),
	}

	status := http.StatusOK
	overallStatus := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		overallStatus = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":         overallStatus,
		"service":        serviceName,
		"checks":         checks,
		"total_duration": time.Since(start).Milliseconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Live checks if the service is alive
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
