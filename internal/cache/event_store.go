package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

// RedisEventStore keeps each caller's events in a sorted set scored by
// occurrence time in milliseconds. Members are "<event_type>:<uuid>".
type RedisEventStore struct {
	client    *redis.Client
	retention time.Duration
	capacity  int
	logger    *zap.Logger
	now       func() time.Time
}

// NewRedisEventStore creates a Redis-backed rolling event store
func NewRedisEventStore(client *redis.Client, cfg *config.BehaviorConfig, logger *zap.Logger) *RedisEventStore {
	return &RedisEventStore{
		client:    client,
		retention: cfg.Retention,
		capacity:  cfg.CapPerHash,
		logger:    logger,
		now:       time.Now,
	}
}

func eventKey(hash string) string {
	return EventPrefix + hash
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Append adds the event, then trims by age and cap and refreshes the key TTL
func (s *RedisEventStore) Append(ctx context.Context, event models.CallerEvent) error {
	key := eventKey(event.NumberHash)
	member := fmt.Sprintf("%s:%s", event.EventType, uuid.NewString())
	cutoff := s.now().Add(-s.retention)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, &redis.Z{Score: float64(event.OccurredAt.UnixMilli()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+score(cutoff))
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-(s.capacity + 1)))
		pipe.Expire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to append caller event", zap.Error(err))
		return fmt.Errorf("failed to append caller event: %w", err)
	}
	return nil
}

// Count implements behavior.EventStore
func (s *RedisEventStore) Count(ctx context.Context, hash string, eventType models.CallerEventType, since time.Time) (int, error) {
	key := eventKey(hash)

	if eventType == "" {
		n, err := s.client.ZCount(ctx, key, score(since), "+inf").Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count caller events: %w", err)
		}
		return int(n), nil
	}

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: score(since), Max: "+inf"}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count caller events: %w", err)
	}
	prefix := string(eventType) + ":"
	count := 0
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			count++
		}
	}
	return count, nil
}

// Events implements behavior.EventStore
func (s *RedisEventStore) Events(ctx context.Context, hash string, since time.Time) ([]models.CallerEvent, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, eventKey(hash), &redis.ZRangeBy{Min: score(since), Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load caller events: %w", err)
	}

	events := make([]models.CallerEvent, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		eventType, _, _ := strings.Cut(member, ":")
		events = append(events, models.CallerEvent{
			NumberHash: hash,
			EventType:  models.CallerEventType(eventType),
			OccurredAt: time.UnixMilli(int64(z.Score)),
		})
	}
	return events, nil
}

// Purge implements behavior.EventStore
func (s *RedisEventStore) Purge(ctx context.Context) (int, error) {
	cutoff := "(" + score(s.now().Add(-s.retention))
	removed := 0

	iter := s.client.Scan(ctx, 0, EventPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to purge caller events: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan caller events: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("caller events purged", zap.Int("removed", removed))
	}
	return removed, nil
}

// Reset implements behavior.EventStore
func (s *RedisEventStore) Reset(ctx context.Context) error {
	if _, err := deleteByPattern(ctx, s.client, EventPrefix+"*"); err != nil {
		return fmt.Errorf("failed to reset caller events: %w", err)
	}
	return nil
}
