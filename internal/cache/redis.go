package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

const (
	// Cache key prefixes
	MembershipPrefix = "ls:" // list:kind:number_hash
	EventPrefix      = "ev:" // events:number_hash
)

// RedisCache provides Redis-based list membership caching
type RedisCache struct {
	client *redis.Client
	config *config.RedisConfig
	logger *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("database", cfg.Database))

	return client, nil
}

// NewRedisCache creates a membership cache over an existing client
func NewRedisCache(client *redis.Client, cfg *config.RedisConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func membershipKey(kind models.ListKind, hash string) string {
	return fmt.Sprintf("%s%s:%s", MembershipPrefix, kind, hash)
}

// GetMembership returns the cached membership of hash. found is false on a cache miss.
func (c *RedisCache) GetMembership(ctx context.Context, kind models.ListKind, hash string) (member, found bool, err error) {
	start := time.Now()
	key := membershipKey(kind, hash)

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("membership cache miss",
				zap.String("list", string(kind)),
				zap.String("hash", phone.ShortHash(hash)),
				zap.Duration("duration", time.Since(start)))
			return false, false, nil
		}
		c.logger.Error("failed to get membership from cache",
			zap.Error(err),
			zap.String("list", string(kind)))
		return false, false, fmt.Errorf("failed to get membership from cache: %w", err)
	}

	return val == "1", true, nil
}

// SetMembership caches a positive or negative membership result
func (c *RedisCache) SetMembership(ctx context.Context, kind models.ListKind, hash string, member bool) error {
	val := "0"
	if member {
		val = "1"
	}

	if err := c.client.Set(ctx, membershipKey(kind, hash), val, c.config.ListCacheTTL).Err(); err != nil {
		c.logger.Error("failed to set membership in cache",
			zap.Error(err),
			zap.String("list", string(kind)))
		return fmt.Errorf("failed to set membership in cache: %w", err)
	}
	return nil
}

// FillMembership caches a store result unless a write already cached one
func (c *RedisCache) FillMembership(ctx context.Context, kind models.ListKind, hash string, member bool) error {
	val := "0"
	if member {
		val = "1"
	}

	if err := c.client.SetNX(ctx, membershipKey(kind, hash), val, c.config.ListCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to fill membership cache: %w", err)
	}
	return nil
}

// InvalidateMembership removes one cached membership
func (c *RedisCache) InvalidateMembership(ctx context.Context, kind models.ListKind, hash string) error {
	if err := c.client.Del(ctx, membershipKey(kind, hash)).Err(); err != nil {
		c.logger.Error("failed to invalidate membership cache",
			zap.Error(err),
			zap.String("list", string(kind)))
		return fmt.Errorf("failed to invalidate membership cache: %w", err)
	}
	return nil
}

// InvalidateList removes every cached membership of a list
func (c *RedisCache) InvalidateList(ctx context.Context, kind models.ListKind) error {
	pattern := fmt.Sprintf("%s%s:*", MembershipPrefix, kind)
	n, err := deleteByPattern(ctx, c.client, pattern)
	if err != nil {
		return fmt.Errorf("failed to invalidate list cache: %w", err)
	}
	c.logger.Debug("list cache invalidated",
		zap.String("list", string(kind)),
		zap.Int("keys", n))
	return nil
}

// HealthCheck performs a health check on Redis
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func deleteByPattern(ctx context.Context, client *redis.Client, pattern string) (int, error) {
	deleted := 0
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
