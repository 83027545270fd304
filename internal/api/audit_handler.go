package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/monitoring"
)

// AuditRecorder stores and lists management changes
type AuditRecorder interface {
	Record(event *monitoring.AuditEvent) bool
	Recent(limit int, types ...monitoring.AuditEventType) []*monitoring.AuditEvent
}

var auditedRoutes = map[string]monitoring.AuditEventType{
	"POST /api/v1/lists/:kind":         monitoring.EventListAdd,
	"DELETE /api/v1/lists/:kind/:hash": monitoring.EventListRemove,
	"DELETE /api/v1/lists/:kind":       monitoring.EventListClear,
	"POST /api/v1/rules":               monitoring.EventRuleCreate,
	"DELETE /api/v1/rules/:id":         monitoring.EventRuleDelete,
	"PUT /api/v1/settings":             monitoring.EventSettingsUpdate,
	"PUT /api/v1/policy":               monitoring.EventPolicyUpdate,
	"POST /api/v1/policy/preset/:name": monitoring.EventPolicyUpdate,
	"POST /api/v1/reputation/report":   monitoring.EventReputationReport,
	"POST /api/v1/reputation/correct":  monitoring.EventReputationReport,
	"POST /api/v1/seed/reload":         monitoring.EventSeedReload,
	"DELETE /api/v1/data":              monitoring.EventDataReset,
}

// Audit records every management change after it is handled. Screening
// and call-lifecycle calls are not audited.
func Audit(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		eventType, ok := auditedRoutes[c.Request.Method+" "+route]
		if !ok {
			return
		}

		status := "success"
		if c.Writer.Status() >= http.StatusBadRequest {
			status = "failure"
		}

		recorder.Record(&monitoring.AuditEvent{
			Type:         eventType,
			Action:       c.Request.Method,
			ResourcePath: c.Request.URL.Path,
			Status:       status,
			StatusCode:   c.Writer.Status(),
			ActorIP:      c.ClientIP(),
			Correlation:  c.GetString("request_id"),
		})
	}
}

// AuditHandler lists the audit trail
type AuditHandler struct {
	recorder AuditRecorder
	logger   *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(recorder AuditRecorder, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// GetEvents lists recent audit events, newest first
// GET /api/v1/audit?limit=&type=list_add,rule_create
func (h *AuditHandler) GetEvents(c *gin.Context) {
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}

	var types []monitoring.AuditEventType
	if s := c.Query("type"); s != "" {
		for _, t := range strings.Split(s, ",") {
			types = append(types, monitoring.AuditEventType(strings.TrimSpace(t)))
		}
	}

	events := h.recorder.Recent(limit, types...)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
