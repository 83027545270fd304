package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/phone"
	"call-screener/internal/repository"
)

// ListResolver returns the store behind a list kind
type ListResolver interface {
	List(kind models.ListKind) (repository.ListStore, bool)
}

// ListsHandler manages the whitelist, blocklist and contacts
type ListsHandler struct {
	lists  ListResolver
	hasher Hasher
	logger *zap.Logger
}

// NewListsHandler creates a new lists handler
func NewListsHandler(lists ListResolver, hasher Hasher, logger *zap.Logger) *ListsHandler {
	return &ListsHandler{lists: lists, hasher: hasher, logger: logger}
}

func (h *ListsHandler) store(c *gin.Context) (models.ListKind, repository.ListStore, bool) {
	kind := models.ListKind(c.Param("kind"))
	store, ok := h.lists.List(kind)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown list"})
		return kind, nil, false
	}
	return kind, store, true
}

// GetEntries lists entries of one list
// GET /api/v1/lists/:kind
func (h *ListsHandler) GetEntries(c *gin.Context) {
	kind, store, ok := h.store(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	entries, total, err := store.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list entries", zap.String("list", string(kind)), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to retrieve entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"meta": gin.H{
			"limit":    limit,
			"offset":   offset,
			"total":    total,
			"returned": len(entries),
		},
	})
}

type addEntryRequest struct {
	numberRequest
	Label string `json:"label"`
}

// AddEntry adds a caller to a list. Adding an existing caller updates its label.
// POST /api/v1/lists/:kind
func (h *ListsHandler) AddEntry(c *gin.Context) {
	kind, store, ok := h.store(c)
	if !ok {
		return
	}

	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	hash, err := resolveHash(h.hasher, req.numberRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := store.Add(c.Request.Context(), hash, req.Label)
	if err != nil {
		h.logger.Error("failed to add entry", zap.String("list", string(kind)), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to add entry"})
		return
	}

	h.logger.Info("list entry added",
		zap.String("list", string(kind)),
		zap.String("hash", phone.ShortHash(hash)))

	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// RemoveEntry removes a caller from a list
// DELETE /api/v1/lists/:kind/:hash
func (h *ListsHandler) RemoveEntry(c *gin.Context) {
	kind, store, ok := h.store(c)
	if !ok {
		return
	}

	hash := c.Param("hash")
	if !phone.ValidHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid number hash"})
		return
	}

	if err := store.Remove(c.Request.Context(), hash); err != nil {
		h.logger.Error("failed to remove entry", zap.String("list", string(kind)), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to remove entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": hash})
}

// ClearList removes every entry of a list
// DELETE /api/v1/lists/:kind
func (h *ListsHandler) ClearList(c *gin.Context) {
	kind, store, ok := h.store(c)
	if !ok {
		return
	}

	if err := store.Clear(c.Request.Context()); err != nil {
		h.logger.Error("failed to clear list", zap.String("list", string(kind)), zap.Error(err))
		c.JSON(storeErrorStatus(err), gin.H{"error": "Failed to clear list"})
		return
	}

	h.logger.Info("list cleared", zap.String("list", string(kind)))
	c.JSON(http.StatusOK, gin.H{"cleared": kind})
}
