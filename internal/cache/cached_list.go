package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// CachedList is a read-through membership cache in front of a list store
type CachedList struct {
	store   repository.ListStore
	cache   *RedisCache
	kind    models.ListKind
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewCachedList wraps store with the membership cache
func NewCachedList(store repository.ListStore, cache *RedisCache, kind models.ListKind, m *metrics.MetricsCollector, logger *zap.Logger) *CachedList {
	return &CachedList{
		store:   store,
		cache:   cache,
		kind:    kind,
		metrics: m,
		logger:  logger.With(zap.String("list", string(kind))),
	}
}

// Contains checks the cache first and falls back to the store
func (l *CachedList) Contains(ctx context.Context, hash string) (bool, error) {
	member, found, err := l.cache.GetMembership(ctx, l.kind, hash)
	if err == nil && found {
		l.metrics.RecordCacheOperation("lookup", "hit")
		return member, nil
	}
	if err != nil {
		l.metrics.RecordCacheOperation("lookup", "error")
	} else {
		l.metrics.RecordCacheOperation("lookup", "miss")
	}

	member, err = l.store.Contains(ctx, hash)
	if err != nil {
		return false, err
	}

	// Fill the cache without holding up the caller
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.cache.FillMembership(ctx, l.kind, hash, member); err != nil {
			l.logger.Warn("failed to cache membership", zap.Error(err))
		}
	}()

	return member, nil
}

// Add writes through and refreshes the cached membership
func (l *CachedList) Add(ctx context.Context, hash, label string) (*models.ListEntry, error) {
	entry, err := l.store.Add(ctx, hash, label)
	if err != nil {
		return nil, err
	}
	if err := l.cache.SetMembership(ctx, l.kind, hash, true); err != nil {
		l.invalidate(ctx, hash)
	}
	return entry, nil
}

// Remove deletes from the store and invalidates the cached membership
func (l *CachedList) Remove(ctx context.Context, hash string) error {
	if err := l.store.Remove(ctx, hash); err != nil {
		return err
	}
	l.invalidate(ctx, hash)
	return nil
}

// List reads from the store
func (l *CachedList) List(ctx context.Context, limit, offset int) ([]*models.ListEntry, int, error) {
	return l.store.List(ctx, limit, offset)
}

// Clear empties the store and drops the list's cached memberships
func (l *CachedList) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return err
	}
	if err := l.cache.InvalidateList(ctx, l.kind); err != nil {
		l.logger.Warn("failed to invalidate list cache", zap.Error(err))
	}
	return nil
}

func (l *CachedList) invalidate(ctx context.Context, hash string) {
	if err := l.cache.InvalidateMembership(ctx, l.kind, hash); err != nil {
		l.metrics.RecordCacheOperation("invalidate", "error")
		return
	}
	l.metrics.RecordCacheOperation("invalidate", "ok")
}

var _ repository.ListStore = (*CachedList)(nil)
