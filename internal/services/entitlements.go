package services

import (
	"context"

	"call-screener/internal/config"
)

// ConfigEntitlements reads the premium tier flag from configuration
type ConfigEntitlements struct {
	premium bool
}

// NewConfigEntitlements creates a config-backed entitlement provider
func NewConfigEntitlements(cfg *config.EntitlementConfig) *ConfigEntitlements {
	return &ConfigEntitlements{premium: cfg.Premium}
}

// IsPremium reports whether premium features are unlocked
func (e *ConfigEntitlements) IsPremium(ctx context.Context) bool {
	return e.premium
}
