package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"call-screener/internal/rules"
)

// ResetService wipes all user data of the installation
type ResetService struct {
	backends *Backends
	rules    *rules.Service
	settings *SettingsService
	logger   *zap.Logger
}

// NewResetService creates a reset service
func NewResetService(backends *Backends, ruleService *rules.Service, settings *SettingsService, logger *zap.Logger) *ResetService {
	return &ResetService{
		backends: backends,
		rules:    ruleService,
		settings: settings,
		logger:   logger,
	}
}

// ResetAll clears lists, prefix rules, history, settings and behavioral events.
// The seed snapshot is curated data and is kept.
func (r *ResetService) ResetAll(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"whitelist", r.backends.Whitelist.Clear},
		{"blocklist", r.backends.Blocklist.Clear},
		{"contacts", r.backends.Contacts.Clear},
		{"prefix_rules", r.rules.Clear},
		{"history", r.backends.History.Clear},
		{"settings", r.settings.Clear},
		{"events", r.backends.Events.Reset},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			r.logger.Error("data reset failed", zap.String("step", step.name), zap.Error(err))
			return fmt.Errorf("failed to reset %s: %w", step.name, err)
		}
	}

	r.logger.Info("all user data reset")
	return nil
}
