package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/behavior"
	"call-screener/internal/cache"
	"call-screener/internal/config"
	"call-screener/internal/memstore"
	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// Backends holds the storage dependencies of the screening service
type Backends struct {
	Whitelist   repository.ListStore
	Blocklist   repository.ListStore
	Contacts    repository.ListStore
	PrefixRules repository.PrefixRuleStore
	Seed        repository.SeedStore
	History     repository.HistoryStore
	Settings    repository.SettingsStore
	Events      behavior.EventStore

	// Set only for the postgres driver
	DB    *pgxpool.Pool
	Redis *redis.Client

	logger *zap.Logger
}

// NewBackends creates the backends selected by storage.driver
func NewBackends(cfg *config.Config, m *metrics.MetricsCollector, logger *zap.Logger) (*Backends, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return NewMemoryBackends(cfg, logger), nil
	case "postgres":
		return newPostgresBackends(cfg, m, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// NewMemoryBackends creates embedded in-memory backends
func NewMemoryBackends(cfg *config.Config, logger *zap.Logger) *Backends {
	logger.Info("using embedded in-memory storage")
	return &Backends{
		Whitelist:   memstore.NewListStore(),
		Blocklist:   memstore.NewListStore(),
		Contacts:    memstore.NewListStore(),
		PrefixRules: memstore.NewPrefixRuleStore(),
		Seed:        memstore.NewSeedStore(),
		History:     memstore.NewHistoryStore(),
		Settings:    memstore.NewSettingsStore(),
		Events:      behavior.NewMemoryEventStore(cfg.Behavior.Retention, cfg.Behavior.CapPerHash),
		logger:      logger,
	}
}

func newPostgresBackends(cfg *config.Config, m *metrics.MetricsCollector, logger *zap.Logger) (*Backends, error) {
	db, err := repository.NewPostgresDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	rc := cache.NewRedisCache(client, &cfg.Redis, logger)
	list := func(kind models.ListKind) repository.ListStore {
		return cache.NewCachedList(repository.NewListRepository(db, kind, logger), rc, kind, m, logger)
	}

	logger.Info("using postgres storage with redis cache")
	return &Backends{
		Whitelist:   list(models.ListWhitelist),
		Blocklist:   list(models.ListBlocklist),
		Contacts:    list(models.ListContacts),
		PrefixRules: repository.NewPrefixRuleRepository(db, logger),
		Seed:        repository.NewSeedRepository(db, logger),
		History:     repository.NewHistoryRepository(db, logger),
		Settings:    repository.NewSettingsRepository(db, logger),
		Events:      cache.NewRedisEventStore(client, &cfg.Behavior, logger),
		DB:          db,
		Redis:       client,
		logger:      logger,
	}, nil
}

// List returns the list store for kind
func (b *Backends) List(kind models.ListKind) (repository.ListStore, bool) {
	switch kind {
	case models.ListWhitelist:
		return b.Whitelist, true
	case models.ListBlocklist:
		return b.Blocklist, true
	case models.ListContacts:
		return b.Contacts, true
	}
	return nil, false
}

// HealthCheck pings the external backends, if any
func (b *Backends) HealthCheck(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if b.DB != nil {
		checks["database"] = b.DB.Ping(ctx)
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Ping(ctx).Err()
	}
	return checks
}

// Close releases backend connections
func (b *Backends) Close() error {
	var errs []error

	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	b.logger.Info("backends closed successfully")
	return nil
}
