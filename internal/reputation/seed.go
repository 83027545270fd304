package reputation

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/phone"
	"call-screener/internal/repository"
)

// SeedSnapshot is the in-memory view of the curated seed database. Readers
// always see one complete snapshot; replacements swap it atomically.
type SeedSnapshot struct {
	store   repository.SeedStore
	current atomic.Pointer[map[string]models.SeedEntry]
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewSeedSnapshot creates an empty snapshot backed by store
func NewSeedSnapshot(store repository.SeedStore, m *metrics.MetricsCollector, logger *zap.Logger) *SeedSnapshot {
	s := &SeedSnapshot{store: store, metrics: m, logger: logger}
	empty := map[string]models.SeedEntry{}
	s.current.Store(&empty)
	return s
}

// Lookup returns the seed entry for hash
func (s *SeedSnapshot) Lookup(hash string) (models.SeedEntry, bool) {
	e, ok := (*s.current.Load())[hash]
	return e, ok
}

// Size returns the number of entries in the active snapshot
func (s *SeedSnapshot) Size() int {
	return len(*s.current.Load())
}

// Reload reads the stored snapshot and swaps it in. On failure the old snapshot stays active.
func (s *SeedSnapshot) Reload(ctx context.Context) error {
	entries, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload seed snapshot: %w", err)
	}
	index, err := buildIndex(entries)
	if err != nil {
		return err
	}
	s.swap(index)
	return nil
}

// Replace verifies entries, persists them and then swaps them in
func (s *SeedSnapshot) Replace(ctx context.Context, entries []models.SeedEntry) error {
	index, err := buildIndex(entries)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceSnapshot(ctx, entries); err != nil {
		return fmt.Errorf("failed to store seed snapshot: %w", err)
	}
	s.swap(index)
	return nil
}

func (s *SeedSnapshot) swap(index map[string]models.SeedEntry) {
	s.current.Store(&index)
	s.metrics.SetSeedEntries(len(index))
	s.logger.Info("seed snapshot activated", zap.Int("entries", len(index)))
}

// ValidateSeedEntries checks every entry of a candidate snapshot
func ValidateSeedEntries(entries []models.SeedEntry) error {
	_, err := buildIndex(entries)
	return err
}

func buildIndex(entries []models.SeedEntry) (map[string]models.SeedEntry, error) {
	index := make(map[string]models.SeedEntry, len(entries))
	for i, e := range entries {
		if !phone.ValidHash(e.NumberHash) {
			return nil, fmt.Errorf("%w: entry %d has a malformed hash", repository.ErrSnapshotRejected, i)
		}
		if e.ConfidenceScore < 0 || e.ConfidenceScore > 1 {
			return nil, fmt.Errorf("%w: entry %d score %v out of range", repository.ErrSnapshotRejected, i, e.ConfidenceScore)
		}
		if _, dup := index[e.NumberHash]; dup {
			return nil, fmt.Errorf("%w: duplicate hash at entry %d", repository.ErrSnapshotRejected, i)
		}
		index[e.NumberHash] = e
	}
	return index, nil
}
