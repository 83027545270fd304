package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "screening.notifications")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n, err := New(&config.NotifyConfig{Driver: "redis", Channel: "screening.notifications"}, client, zap.NewNop())
	require.NoError(t, err)

	note := &models.Notification{
		ID:         uuid.New(),
		NumberHash: "abc123",
		Action:     models.ActionReject,
		Source:     models.SourceBlocklist,
		Score:      1.0,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, n.Notify(ctx, note))

	select {
	case msg := <-sub.Channel():
		var got models.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, note.ID, got.ID)
		assert.Equal(t, models.ActionReject, got.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestNewNotifier(t *testing.T) {
	n, err := New(&config.NotifyConfig{Driver: "log"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)
	assert.NoError(t, n.Notify(context.Background(), &models.Notification{Action: models.ActionFlag}))

	_, err = New(&config.NotifyConfig{Driver: "redis"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(&config.NotifyConfig{Driver: "sms"}, nil, zap.NewNop())
	assert.Error(t, err)
}
