package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// Notifier publishes decision notifications. Payloads carry the number hash only.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, note *models.Notification) error {
	n.logger.Info("call notification",
		zap.String("id", note.ID.String()),
		zap.String("hash", phone.ShortHash(note.NumberHash)),
		zap.String("action", string(note.Action)),
		zap.String("source", string(note.Source)),
		zap.String("category", note.Category),
		zap.Float64("score", note.Score))
	return nil
}

// RedisNotifier publishes JSON notifications to a Redis pub/sub channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a pub/sub notifier
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Notify implements Notifier
func (n *RedisNotifier) Notify(ctx context.Context, note *models.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		n.logger.Error("failed to publish notification", zap.Error(err), zap.String("channel", n.channel))
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug("notification published",
		zap.String("channel", n.channel),
		zap.Int64("receivers", receivers))
	return nil
}

// New selects the notifier configured by cfg. client may be nil for the log driver.
func New(cfg *config.NotifyConfig, client *redis.Client, logger *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "log", "":
		return NewLogNotifier(logger), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis notifier requires a redis client")
		}
		return NewRedisNotifier(client, cfg.Channel, logger), nil
	default:
		return nil, fmt.Errorf("unknown notify driver: %s", cfg.Driver)
	}
}
