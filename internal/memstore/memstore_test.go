package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

func TestListStoreIdempotentAdd(t *testing.T) {
	ctx := context.Background()
	s := NewListStore()

	first, err := s.Add(ctx, "h1", "Mom")
	require.NoError(t, err)
	second, err := s.Add(ctx, "h1", "Mother")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Mother", second.DisplayLabel)

	entries, total, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Remove(ctx, "h1"))
	require.NoError(t, s.Remove(ctx, "h1"))
	ok, err := s.Contains(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrefixRuleStore(t *testing.T) {
	ctx := context.Background()
	s := NewPrefixRuleStore()

	err := s.CreateRule(ctx, &models.PrefixRule{Pattern: "+1900", MatchType: "regex", Action: models.RuleBlock})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	rule := &models.PrefixRule{Pattern: "+1900", MatchType: models.MatchPrefix, Action: models.RuleBlock}
	require.NoError(t, s.CreateRule(ctx, rule))
	assert.NotEqual(t, uuid.Nil, rule.ID)
	assert.False(t, rule.AddedAt.IsZero())

	assert.ErrorIs(t, s.DeleteRule(ctx, uuid.New()), repository.ErrNotFound)
	require.NoError(t, s.DeleteRule(ctx, rule.ID))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewHistoryStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, &models.HistoryRecord{NumberHash: "h", Action: models.ActionReject}))
	}
	require.NoError(t, s.Record(ctx, &models.HistoryRecord{NumberHash: "h", Action: models.ActionAllow}))

	n, err := s.CountByAction(ctx, "h", models.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := s.Recent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.ActionAllow, recent[0].Action)

	recent, err = s.Recent(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	s := NewSettingsStore()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, s.Save(ctx, &models.SettingsDocument{
		Settings: models.Settings{BlockHiddenNumbers: true},
		Policy:   models.DefaultPolicy(),
	}))
	doc, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.Settings.BlockHiddenNumbers)
	assert.False(t, doc.UpdatedAt.IsZero())
}
