// Package memstore provides in-process implementations of the repository
// interfaces for embedded deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// ListStore is an in-memory hash list
type ListStore struct {
	mu      sync.RWMutex
	entries map[string]*models.ListEntry
}

// NewListStore creates an empty list
func NewListStore() *ListStore {
	return &ListStore{entries: make(map[string]*models.ListEntry)}
}

// Contains implements repository.ListStore
func (s *ListStore) Contains(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[hash]
	return ok, nil
}

// Add implements repository.ListStore
func (s *ListStore) Add(ctx context.Context, hash, label string) (*models.ListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[hash]; ok {
		existing.DisplayLabel = label
		e := *existing
		return &e, nil
	}
	entry := &models.ListEntry{
		ID:           uuid.New(),
		NumberHash:   hash,
		DisplayLabel: label,
		AddedAt:      time.Now().UTC(),
	}
	s.entries[hash] = entry
	e := *entry
	return &e, nil
}

// Remove implements repository.ListStore
func (s *ListStore) Remove(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, hash)
	return nil
}

// List implements repository.ListStore
func (s *ListStore) List(ctx context.Context, limit, offset int) ([]*models.ListEntry, int, error) {
	s.mu.RLock()
	all := make([]*models.ListEntry, 0, len(s.entries))
	for _, e := range s.entries {
		c := *e
		all = append(all, &c)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].AddedAt.Equal(all[j].AddedAt) {
			return all[i].AddedAt.After(all[j].AddedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, limit, offset), len(all), nil
}

// Clear implements repository.ListStore
func (s *ListStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*models.ListEntry)
	return nil
}

// PrefixRuleStore is an in-memory rule store
type PrefixRuleStore struct {
	mu    sync.RWMutex
	rules []models.PrefixRule
}

// NewPrefixRuleStore creates an empty rule store
func NewPrefixRuleStore() *PrefixRuleStore {
	return &PrefixRuleStore{}
}

// ListRules implements repository.PrefixRuleStore
func (s *PrefixRuleStore) ListRules(ctx context.Context) ([]models.PrefixRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PrefixRule(nil), s.rules...), nil
}

// CreateRule implements repository.PrefixRuleStore
func (s *PrefixRuleStore) CreateRule(ctx context.Context, rule *models.PrefixRule) error {
	if !rule.Valid() {
		return repository.ErrInvalidInput
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.AddedAt.IsZero() {
		rule.AddedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, *rule)
	return nil
}

// DeleteRule implements repository.PrefixRuleStore
func (s *PrefixRuleStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// ClearRules implements repository.PrefixRuleStore
func (s *PrefixRuleStore) ClearRules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	return nil
}

// SeedStore is an in-memory seed snapshot
type SeedStore struct {
	mu      sync.RWMutex
	entries []models.SeedEntry
}

// NewSeedStore creates a seed store holding entries
func NewSeedStore(entries ...models.SeedEntry) *SeedStore {
	return &SeedStore{entries: entries}
}

// LoadSnapshot implements repository.SeedStore
func (s *SeedStore) LoadSnapshot(ctx context.Context) ([]models.SeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SeedEntry(nil), s.entries...), nil
}

// ReplaceSnapshot implements repository.SeedStore
func (s *SeedStore) ReplaceSnapshot(ctx context.Context, entries []models.SeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]models.SeedEntry(nil), entries...)
	return nil
}

// HistoryStore is an in-memory history sink
type HistoryStore struct {
	mu      sync.RWMutex
	records []*models.HistoryRecord
}

// NewHistoryStore creates an empty history
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Record implements repository.HistoryStore
func (s *HistoryStore) Record(ctx context.Context, record *models.HistoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	c := *record

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &c)
	return nil
}

// CountByAction implements repository.HistoryStore
func (s *HistoryStore) CountByAction(ctx context.Context, hash string, action models.DecisionAction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.NumberHash == hash && r.Action == action {
			count++
		}
	}
	return count, nil
}

// Recent implements repository.HistoryStore
func (s *HistoryStore) Recent(ctx context.Context, limit, offset int) ([]*models.HistoryRecord, error) {
	s.mu.RLock()
	out := make([]*models.HistoryRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		c := *s.records[i]
		out = append(out, &c)
	}
	s.mu.RUnlock()
	return page(out, limit, offset), nil
}

// Clear implements repository.HistoryStore
func (s *HistoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// SettingsStore keeps the settings document in memory
type SettingsStore struct {
	mu  sync.RWMutex
	doc *models.SettingsDocument
}

// NewSettingsStore creates an empty settings store
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{}
}

// Load implements repository.SettingsStore
func (s *SettingsStore) Load(ctx context.Context) (*models.SettingsDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, nil
	}
	c := *s.doc
	return &c, nil
}

// Save implements repository.SettingsStore
func (s *SettingsStore) Save(ctx context.Context, doc *models.SettingsDocument) error {
	c := *doc
	c.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = &c
	return nil
}

// Clear implements repository.SettingsStore
func (s *SettingsStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	_ repository.ListStore       = (*ListStore)(nil)
	_ repository.PrefixRuleStore = (*PrefixRuleStore)(nil)
	_ repository.SeedStore       = (*SeedStore)(nil)
	_ repository.HistoryStore    = (*HistoryStore)(nil)
	_ repository.SettingsStore   = (*SettingsStore)(nil)
)
