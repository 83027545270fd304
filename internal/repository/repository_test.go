package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

func TestVerifyStaged(t *testing.T) {
	tests := []struct {
		name     string
		staged   int64
		copied   int64
		expected int
		wantErr  bool
	}{
		{"all rows staged", 3, 3, 3, false},
		{"empty snapshot", 0, 0, 0, false},
		{"copy short", 2, 2, 3, true},
		{"staging disagrees with copy", 2, 3, 3, true},
		{"extra staged rows", 4, 3, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyStaged(tt.staged, tt.copied, tt.expected)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSnapshotRejected)
		})
	}
}

// newTestPool connects to CALL_SCREENER_TEST_DATABASE_URL and resets the schema's data
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CALL_SCREENER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CALL_SCREENER_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE seed_entries, seed_snapshots, call_history`)
	require.NoError(t, err)
	return pool
}

func testHash(c string) string {
	return strings.Repeat(c, 64)
}

func TestSeedRepositoryReplaceSnapshot(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewSeedRepository(pool, zap.NewNop())

	require.NoError(t, repo.ReplaceSnapshot(ctx, []models.SeedEntry{
		{NumberHash: testHash("a"), ConfidenceScore: 0.9, Category: "scam"},
		{NumberHash: testHash("b"), ConfidenceScore: 0.4, Category: "telemarketing"},
	}))

	entries, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// A duplicate hash fails the staging insert and leaves the live snapshot untouched
	err = repo.ReplaceSnapshot(ctx, []models.SeedEntry{
		{NumberHash: testHash("c"), ConfidenceScore: 0.9, Category: "scam"},
		{NumberHash: testHash("c"), ConfidenceScore: 0.8, Category: "scam"},
	})
	require.Error(t, err)

	entries, err = repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, repo.ReplaceSnapshot(ctx, []models.SeedEntry{
		{NumberHash: testHash("d"), ConfidenceScore: 0.7, Category: "fraud"},
	}))
	entries, err = repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testHash("d"), entries[0].NumberHash)

	var snapshots int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM seed_snapshots`).Scan(&snapshots))
	assert.Equal(t, 2, snapshots)
}

func TestHistoryRepositoryCountByAction(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewHistoryRepository(pool, zap.NewNop())

	caller := testHash("e")
	other := testHash("f")
	for _, rec := range []*models.HistoryRecord{
		{NumberHash: caller, Action: models.ActionReject, Source: models.SourceBlocklist},
		{NumberHash: caller, Action: models.ActionReject, Source: models.SourcePrefixRule, Label: "Telemarketing range"},
		{NumberHash: caller, Action: models.ActionAllow, Source: models.SourceDefault},
		{NumberHash: other, Action: models.ActionReject, Source: models.SourceBlocklist},
	} {
		require.NoError(t, repo.Record(ctx, rec))
	}

	n, err := repo.CountByAction(ctx, caller, models.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountByAction(ctx, caller, models.ActionSilence)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	records, err := repo.Recent(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}
