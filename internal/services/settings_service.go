package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/policy"
	"call-screener/internal/repository"
)

// SettingsService caches the single settings document in memory
type SettingsService struct {
	store  repository.SettingsStore
	logger *zap.Logger

	mu     sync.RWMutex
	cached *models.SettingsDocument
}

// NewSettingsService creates a settings service
func NewSettingsService(store repository.SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

func defaultDocument() models.SettingsDocument {
	return models.SettingsDocument{
		Settings: models.DefaultSettings(),
		Policy:   models.DefaultPolicy(),
	}
}

// Current returns the active settings and policy. On a load failure the
// defaults are returned together with the error.
func (s *SettingsService) Current(ctx context.Context) (models.SettingsDocument, error) {
	s.mu.RLock()
	if s.cached != nil {
		doc := *s.cached
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *SettingsService) loadLocked(ctx context.Context) (models.SettingsDocument, error) {
	if s.cached != nil {
		return *s.cached, nil
	}

	doc, err := s.store.Load(ctx)
	if err != nil {
		return defaultDocument(), fmt.Errorf("failed to load settings: %w", err)
	}
	if doc == nil {
		d := defaultDocument()
		doc = &d
	}
	doc.Policy = doc.Policy.Normalized()
	s.cached = doc
	return *doc, nil
}

// UpdateSettings replaces the user-facing toggles
func (s *SettingsService) UpdateSettings(ctx context.Context, settings models.Settings) (models.SettingsDocument, error) {
	return s.update(ctx, func(doc *models.SettingsDocument) error {
		doc.Settings = settings
		return nil
	})
}

// UpdatePolicy replaces the advanced policy. The preset is re-derived so any
// toggle that deviates from a named preset yields custom.
func (s *SettingsService) UpdatePolicy(ctx context.Context, p models.AdvancedBlockingPolicy) (models.SettingsDocument, error) {
	if !p.Validate() {
		return models.SettingsDocument{}, fmt.Errorf("%w: invalid policy", repository.ErrInvalidInput)
	}
	return s.update(ctx, func(doc *models.SettingsDocument) error {
		doc.Policy = p.Normalized()
		return nil
	})
}

// ApplyPreset replaces the policy with the defaults of a named preset
func (s *SettingsService) ApplyPreset(ctx context.Context, name models.PolicyPreset) (models.SettingsDocument, error) {
	p, err := policy.ApplyPreset(name)
	if err != nil {
		if errors.Is(err, policy.ErrUnknownPreset) {
			return models.SettingsDocument{}, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
		}
		return models.SettingsDocument{}, err
	}
	doc, err := s.update(ctx, func(doc *models.SettingsDocument) error {
		doc.Policy = p
		return nil
	})
	if err != nil {
		return doc, err
	}
	s.logger.Info("policy preset applied", zap.String("preset", string(name)))
	return doc, nil
}

func (s *SettingsService) update(ctx context.Context, mutate func(*models.SettingsDocument) error) (models.SettingsDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return models.SettingsDocument{}, err
	}
	if err := mutate(&doc); err != nil {
		return models.SettingsDocument{}, err
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, &doc); err != nil {
		return models.SettingsDocument{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.cached = &doc
	return doc, nil
}

// Clear drops the stored document and returns to defaults
func (s *SettingsService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	s.cached = nil
	return nil
}
