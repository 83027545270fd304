package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/memstore"
	"call-screener/internal/models"
	"call-screener/internal/repository"
	"call-screener/internal/rules"
)

// MockSettingsStore is a mock implementation of the settings store
type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) Load(ctx context.Context) (*models.SettingsDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettingsDocument), args.Error(1)
}

func (m *MockSettingsStore) Save(ctx context.Context, doc *models.SettingsDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockSettingsStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Storage:  config.StorageConfig{Driver: "memory"},
		Behavior: config.BehaviorConfig{Retention: 24 * time.Hour, CapPerHash: 100},
	}
}

func TestSettingsServiceDefaults(t *testing.T) {
	svc := NewSettingsService(memstore.NewSettingsStore(), zap.NewNop())

	doc, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), doc.Settings)
	assert.True(t, doc.Policy.IsUnmodifiedDefault())
}

func TestSettingsServiceLoadFailureReturnsDefaults(t *testing.T) {
	store := &MockSettingsStore{}
	store.On("Load", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	svc := NewSettingsService(store, zap.NewNop())

	doc, err := svc.Current(context.Background())
	assert.Error(t, err)
	assert.Equal(t, models.DefaultSettings(), doc.Settings)
	store.AssertExpectations(t)
}

func TestSettingsServiceCachesDocument(t *testing.T) {
	store := &MockSettingsStore{}
	store.On("Load", mock.Anything).Return(&models.SettingsDocument{
		Settings: models.Settings{BlockHiddenNumbers: true},
		Policy:   models.DefaultPolicy(),
	}, nil).Once()
	svc := NewSettingsService(store, zap.NewNop())

	for i := 0; i < 3; i++ {
		doc, err := svc.Current(context.Background())
		require.NoError(t, err)
		assert.True(t, doc.Settings.BlockHiddenNumbers)
	}
	store.AssertNumberOfCalls(t, "Load", 1)
}

func TestSettingsServicePolicyDerivesPreset(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(memstore.NewSettingsStore(), zap.NewNop())

	doc, err := svc.ApplyPreset(ctx, models.PresetBalanced)
	require.NoError(t, err)
	assert.Equal(t, models.PresetBalanced, doc.Policy.Preset)

	p := doc.Policy
	p.BlockInternational = true
	doc, err = svc.UpdatePolicy(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.PresetCustom, doc.Policy.Preset)

	p.BlockInternational = false
	doc, err = svc.UpdatePolicy(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.PresetBalanced, doc.Policy.Preset)

	_, err = svc.ApplyPreset(ctx, models.PresetCustom)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	p.NightGuardStartHour = 24
	_, err = svc.UpdatePolicy(ctx, p)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestSettingsServiceClear(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSettingsStore()
	svc := NewSettingsService(store, zap.NewNop())

	_, err := svc.UpdateSettings(ctx, models.Settings{AutoBlockHighConfidence: true})
	require.NoError(t, err)
	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Settings.AutoBlockHighConfidence)

	require.NoError(t, svc.Clear(ctx))
	doc, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.False(t, doc.Settings.AutoBlockHighConfidence)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackends(testConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	ruleService := rules.NewService(b.PrefixRules, zap.NewNop())
	settings := NewSettingsService(b.Settings, zap.NewNop())

	_, err = b.Whitelist.Add(ctx, "h1", "Mom")
	require.NoError(t, err)
	_, err = b.Blocklist.Add(ctx, "h2", "Spam")
	require.NoError(t, err)
	require.NoError(t, ruleService.Add(ctx, &models.PrefixRule{Pattern: "+1900", MatchType: models.MatchPrefix, Action: models.RuleBlock}))
	require.NoError(t, b.History.Record(ctx, &models.HistoryRecord{NumberHash: "h2", Action: models.ActionReject}))
	require.NoError(t, b.Events.Append(ctx, models.CallerEvent{NumberHash: "h2", EventType: models.EventIncomingCall, OccurredAt: time.Now()}))
	_, err = settings.ApplyPreset(ctx, models.PresetStrict)
	require.NoError(t, err)

	require.NoError(t, NewResetService(b, ruleService, settings, zap.NewNop()).ResetAll(ctx))

	ok, err := b.Whitelist.Contains(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.Blocklist.Contains(ctx, "h2")
	require.NoError(t, err)
	assert.False(t, ok)

	rule, err := ruleService.FindMatch(ctx, "+19005551234")
	require.NoError(t, err)
	assert.Nil(t, rule)

	n, err := b.History.CountByAction(ctx, "h2", models.ActionReject)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = b.Events.Count(ctx, "h2", "", time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)

	doc, err := settings.Current(ctx)
	require.NoError(t, err)
	assert.True(t, doc.Policy.IsUnmodifiedDefault())
}

func TestBackendsSelection(t *testing.T) {
	cfg := testConfig()
	b, err := NewBackends(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, b.HealthCheck(context.Background()))

	list, ok := b.List(models.ListContacts)
	assert.True(t, ok)
	assert.Same(t, b.Contacts, list)
	_, ok = b.List("favorites")
	assert.False(t, ok)
	assert.NoError(t, b.Close())

	cfg.Storage.Driver = "sqlite"
	_, err = NewBackends(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestConfigEntitlements(t *testing.T) {
	assert.True(t, NewConfigEntitlements(&config.EntitlementConfig{Premium: true}).IsPremium(context.Background()))
	assert.False(t, NewConfigEntitlements(&config.EntitlementConfig{}).IsPremium(context.Background()))
}
