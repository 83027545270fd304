package rules

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// Service keeps a compiled matcher in sync with the rule store
type Service struct {
	store   repository.PrefixRuleStore
	matcher atomic.Pointer[Matcher]
	logger  *zap.Logger
}

// NewService creates a prefix rule service
func NewService(store repository.PrefixRuleStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// FindMatch resolves e164 against the current rule set, loading it on first use
func (s *Service) FindMatch(ctx context.Context, e164 string) (*models.PrefixRule, error) {
	m := s.matcher.Load()
	if m == nil {
		if err := s.Reload(ctx); err != nil {
			return nil, err
		}
		m = s.matcher.Load()
	}
	return m.FindMatch(e164), nil
}

// Reload rebuilds the matcher from the store
func (s *Service) Reload(ctx context.Context) error {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prefix rules: %w", err)
	}
	s.matcher.Store(NewMatcher(rules))
	s.logger.Debug("prefix rules reloaded", zap.Int("rules", len(rules)))
	return nil
}

// List returns the stored rules
func (s *Service) List(ctx context.Context) ([]models.PrefixRule, error) {
	return s.store.ListRules(ctx)
}

// Add validates and stores a rule
func (s *Service) Add(ctx context.Context, rule *models.PrefixRule) error {
	if !rule.Valid() {
		return repository.ErrInvalidInput
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return err
	}
	s.logger.Info("prefix rule added",
		zap.String("id", rule.ID.String()),
		zap.String("match_type", string(rule.MatchType)),
		zap.String("action", string(rule.Action)))
	return s.Reload(ctx)
}

// Remove deletes a rule
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// Clear deletes every rule
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearRules(ctx); err != nil {
		return err
	}
	s.matcher.Store(NewMatcher(nil))
	return nil
}
