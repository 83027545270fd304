package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// RuleManager stores prefix rules
type RuleManager interface {
	List(ctx context.Context) ([]models.PrefixRule, error)
	Add(ctx context.Context, rule *models.PrefixRule) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// RulesHandler manages prefix rules
type RulesHandler struct {
	rules  RuleManager
	logger *zap.Logger
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(rules RuleManager, logger *zap.Logger) *RulesHandler {
	return &RulesHandler{rules: rules, logger: logger}
}

// GetRules lists prefix rules
// GET /api/v1/rules
func (h *RulesHandler) GetRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list prefix rules", zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to retrieve rules"})
		return
	}
	if rules == nil {
		rules = []models.PrefixRule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

type createRuleRequest struct {
	Pattern   string            `json:"pattern" binding:"required"`
	MatchType models.MatchType  `json:"match_type" binding:"required"`
	Action    models.RuleAction `json:"action" binding:"required"`
	Label     string            `json:"label"`
}

// CreateRule adds a prefix rule
// POST /api/v1/rules
func (h *RulesHandler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	rule := &models.PrefixRule{
		Pattern:   req.Pattern,
		MatchType: req.MatchType,
		Action:    req.Action,
		Label:     req.Label,
	}
	if err := h.rules.Add(c.Request.Context(), rule); err != nil {
		h.logger.Warn("failed to create prefix rule", zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// DeleteRule removes a prefix rule
// DELETE /api/v1/rules/:id
func (h *RulesHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return
	}

	if err := h.rules.Remove(c.Request.Context(), id); err != nil {
		h.logger.Warn("failed to delete prefix rule", zap.String("id", id.String()), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": id})
}
