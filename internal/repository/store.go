package repository

import (
	"context"

	"github.com/google/uuid"

	"call-screener/internal/models"
)

// ListStore is a hash membership set (whitelist, blocklist or contacts)
type ListStore interface {
	Contains(ctx context.Context, hash string) (bool, error)
	// Add is idempotent; an existing entry keeps its ID and gets the new label
	Add(ctx context.Context, hash, label string) (*models.ListEntry, error)
	// Remove is idempotent
	Remove(ctx context.Context, hash string) error
	List(ctx context.Context, limit, offset int) ([]*models.ListEntry, int, error)
	Clear(ctx context.Context) error
}

// PrefixRuleStore persists user prefix rules
type PrefixRuleStore interface {
	ListRules(ctx context.Context) ([]models.PrefixRule, error)
	CreateRule(ctx context.Context, rule *models.PrefixRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ClearRules(ctx context.Context) error
}

// SeedStore holds the curated seed snapshot
type SeedStore interface {
	LoadSnapshot(ctx context.Context) ([]models.SeedEntry, error)
	// ReplaceSnapshot swaps the whole snapshot; the old one stays readable until it succeeds
	ReplaceSnapshot(ctx context.Context, entries []models.SeedEntry) error
}

// HistoryStore is the screened-call history sink
type HistoryStore interface {
	Record(ctx context.Context, record *models.HistoryRecord) error
	CountByAction(ctx context.Context, hash string, action models.DecisionAction) (int, error)
	Recent(ctx context.Context, limit, offset int) ([]*models.HistoryRecord, error)
	Clear(ctx context.Context) error
}

// SettingsStore persists the single settings document
type SettingsStore interface {
	// Load returns nil when nothing was saved yet
	Load(ctx context.Context) (*models.SettingsDocument, error)
	Save(ctx context.Context, doc *models.SettingsDocument) error
	Clear(ctx context.Context) error
}
