package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"call-screener/internal/metrics"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Screening   *ScreeningHandler
	Lists       *ListsHandler
	Rules       *RulesHandler
	Settings    *SettingsHandler
	Reputation  *ReputationHandler
	Diagnostics *DiagnosticsHandler
	Health      *HealthHandler
	// Audit is nil when the audit trail is disabled
	Audit *AuditHandler
}

// RequestID tags each request with an X-Request-ID header
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestMetrics records request counts and latencies by route
func RequestMetrics(m *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// RegisterRoutes mounts the API on engine. metricsHandler may be nil.
func RegisterRoutes(engine *gin.Engine, h Handlers, metricsPath string, metricsHandler http.Handler) {
	// Health endpoints
	engine.GET("/health", h.Health.Health)
	engine.GET("/health/ready", h.Health.Ready)
	engine.GET("/health/live", h.Health.Live)

	if metricsHandler != nil {
		engine.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	v1 := engine.Group("/api/v1")
	{
		// Telephony boundary
		v1.POST("/screen", h.Screening.Screen)
		v1.POST("/calls/ring-start", h.Screening.RingStart)
		v1.POST("/calls/answered", h.Screening.Answered)
		v1.POST("/calls/ended", h.Screening.Ended)

		// Lists
		v1.GET("/lists/:kind", h.Lists.GetEntries)
		v1.POST("/lists/:kind", h.Lists.AddEntry)
		v1.DELETE("/lists/:kind", h.Lists.ClearList)
		v1.DELETE("/lists/:kind/:hash", h.Lists.RemoveEntry)

		// Prefix rules
		v1.GET("/rules", h.Rules.GetRules)
		v1.POST("/rules", h.Rules.CreateRule)
		v1.DELETE("/rules/:id", h.Rules.DeleteRule)

		// Settings and policy
		v1.GET("/settings", h.Settings.GetSettings)
		v1.PUT("/settings", h.Settings.UpdateSettings)
		v1.GET("/policy", h.Settings.GetPolicy)
		v1.PUT("/policy", h.Settings.UpdatePolicy)
		v1.POST("/policy/preset/:name", h.Settings.ApplyPreset)

		// Reputation
		v1.GET("/reputation/:hash", h.Reputation.Lookup)
		v1.POST("/reputation/report", h.Reputation.Report)
		v1.POST("/reputation/correct", h.Reputation.Correct)
		v1.POST("/seed/reload", h.Reputation.ReloadSeed)

		// Diagnostics
		v1.GET("/behavior/:hash", h.Diagnostics.GetProfile)
		v1.GET("/history", h.Diagnostics.GetHistory)
		v1.DELETE("/data", h.Diagnostics.ResetAll)

		if h.Audit != nil {
			v1.GET("/audit", h.Audit.GetEvents)
		}
	}
}
