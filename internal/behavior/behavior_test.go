package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

const testHash = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func testBehaviorConfig() *config.BehaviorConfig {
	return &config.BehaviorConfig{
		Action:             "off",
		Retention:          24 * time.Hour,
		CapPerHash:         100,
		FrequencyWindow:    60 * time.Minute,
		FrequencyThreshold: 3,
		BurstWindow:        15 * time.Minute,
		BurstThreshold:     5,
		ShortRingWindow:    24 * time.Hour,
		ShortRingThreshold: 2,
		ShortRingDuration:  8 * time.Second,
	}
}

func TestMemoryEventStoreCapKeepsNewest(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryEventStore(24*time.Hour, 100)
	store.now = func() time.Time { return now }

	for i := 0; i < 150; i++ {
		require.NoError(t, store.Append(ctx, models.CallerEvent{
			NumberHash: testHash,
			EventType:  models.EventIncomingCall,
			OccurredAt: now.Add(-time.Duration(150-i) * time.Minute),
		}))
	}

	events, err := store.Events(ctx, testHash, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 100)
	assert.Equal(t, now.Add(-100*time.Minute), events[0].OccurredAt)
	assert.Equal(t, now.Add(-1*time.Minute), events[99].OccurredAt)
}

func TestMemoryEventStoreTTLPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryEventStore(24*time.Hour, 100)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Append(ctx, models.CallerEvent{
		NumberHash: testHash,
		EventType:  models.EventShortRing,
		OccurredAt: now.Add(-25 * time.Hour),
	}))
	_, err := store.Purge(ctx)
	require.NoError(t, err)

	count, err := store.Count(ctx, testHash, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Older events age out once the clock moves on
	require.NoError(t, store.Append(ctx, models.CallerEvent{
		NumberHash: testHash,
		EventType:  models.EventIncomingCall,
		OccurredAt: now.Add(-23 * time.Hour),
	}))
	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	removed, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestAnalyzerSignals(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryEventStore(24*time.Hour, 100)
	store.now = func() time.Time { return now }
	analyzer := NewAnalyzer(store, testBehaviorConfig(), zap.NewNop())
	analyzer.now = func() time.Time { return now }

	add := func(eventType models.CallerEventType, ago time.Duration) {
		require.NoError(t, store.Append(ctx, models.CallerEvent{
			NumberHash: testHash, EventType: eventType, OccurredAt: now.Add(-ago),
		}))
	}

	add(models.EventIncomingCall, 50*time.Minute)
	add(models.EventIncomingCall, 40*time.Minute)
	anomaly, err := analyzer.IsFrequencyAnomaly(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, anomaly)

	add(models.EventShortRing, 30*time.Minute)
	anomaly, err = analyzer.IsFrequencyAnomaly(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, anomaly)

	burst, err := analyzer.IsBurstPattern(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, burst)

	for i := 0; i < 5; i++ {
		add(models.EventIncomingCall, time.Duration(i+1)*time.Minute)
	}
	burst, err = analyzer.IsBurstPattern(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, burst)

	shortRing, err := analyzer.HadRecentShortRing(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, shortRing)

	add(models.EventShortRing, 20*time.Hour)
	signals, err := analyzer.Signals(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, signals.RecentShortRings)
	assert.Equal(t, "burst_pattern", signals.Category())
}

func TestAnalyzerProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryEventStore(24*time.Hour, 100)
	store.now = func() time.Time { return now }
	analyzer := NewAnalyzer(store, testBehaviorConfig(), zap.NewNop())
	analyzer.now = func() time.Time { return now }

	for _, ago := range []time.Duration{30 * time.Minute, 20 * time.Minute, 10 * time.Minute} {
		require.NoError(t, store.Append(ctx, models.CallerEvent{
			NumberHash: testHash, EventType: models.EventIncomingCall, OccurredAt: now.Add(-ago),
		}))
	}

	p, err := analyzer.Profile(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalEvents)
	assert.Equal(t, 3, p.IncomingCalls)
	assert.InDelta(t, 600.0, p.MeanIntervalSeconds, 0.001)
	assert.InDelta(t, 0.0, p.StdDevIntervalSecs, 0.001)
	assert.True(t, p.Signals.FrequencyAnomaly)
}

func TestRingTimer(t *testing.T) {
	now := time.Now()
	timer := NewRingTimer(8 * time.Second)
	timer.now = func() time.Time { return now }

	_, ok := timer.OnCallEnded()
	assert.False(t, ok)

	timer.OnRingStart(testHash)
	timer.now = func() time.Time { return now.Add(3 * time.Second) }
	out, ok := timer.OnCallEnded()
	require.True(t, ok)
	assert.True(t, out.IsShort)
	assert.Equal(t, testHash, out.NumberHash)

	// Slot is cleared after the call ends
	_, ok = timer.OnCallEnded()
	assert.False(t, ok)

	timer.now = func() time.Time { return now }
	timer.OnRingStart(testHash)
	timer.now = func() time.Time { return now.Add(8 * time.Second) }
	out, ok = timer.OnCallEnded()
	require.True(t, ok)
	assert.False(t, out.IsShort)

	timer.OnRingStart(testHash)
	timer.OnAnswered()
	_, ok = timer.OnCallEnded()
	assert.False(t, ok)
}

func TestCallTrackerRecordsShortRing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore(24*time.Hour, 100)
	analyzer := NewAnalyzer(store, testBehaviorConfig(), zap.NewNop())
	timer := NewRingTimer(8 * time.Second)
	tracker := NewCallTracker(timer, analyzer, zap.NewNop())

	tracker.RingStarted(testHash)
	out, ok, err := tracker.Ended(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.IsShort)

	count, err := store.Count(ctx, testHash, models.EventShortRing, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
