package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"call-screener/internal/phone"
	"call-screener/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Hasher hashes raw numbers received at the boundary
type Hasher interface {
	Hash(raw string) (string, bool)
}

// numberRequest identifies a caller by raw number or by hash
type numberRequest struct {
	Number     string `json:"number"`
	NumberHash string `json:"number_hash"`
}

var errNoIdentifier = errors.New("a valid number or number_hash is required")

// resolveHash prefers an explicit hash; raw numbers are hashed and discarded
func resolveHash(h Hasher, req numberRequest) (string, error) {
	if req.NumberHash != "" {
		if !phone.ValidHash(req.NumberHash) {
			return "", errNoIdentifier
		}
		return req.NumberHash, nil
	}
	if req.Number == "" {
		return "", errNoIdentifier
	}
	hash, ok := h.Hash(req.Number)
	if !ok {
		return "", errNoIdentifier
	}
	return hash, nil
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// storeErrorStatus maps repository errors onto HTTP status codes
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidInput), errors.Is(err, repository.ErrSnapshotRejected):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
