package behavior

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/phone"
)

// RingOutcome is what the ring timer knows about a call that just ended
type RingOutcome struct {
	NumberHash string
	Duration   time.Duration
	IsShort    bool
}

// RingTimer tracks the currently ringing call. It holds a single slot, so a
// device with more than one active line only sees the most recent ring.
type RingTimer struct {
	mu        sync.Mutex
	hash      string
	startedAt time.Time
	active    bool
	threshold time.Duration
	now       func() time.Time
}

// NewRingTimer creates a ring timer that classifies rings under threshold as short
func NewRingTimer(threshold time.Duration) *RingTimer {
	return &RingTimer{threshold: threshold, now: time.Now}
}

// OnRingStart records the start of a ring, replacing any earlier one
func (t *RingTimer) OnRingStart(hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hash = hash
	t.startedAt = t.now()
	t.active = true
}

// OnAnswered clears the slot; answered calls are never short rings
func (t *RingTimer) OnAnswered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

// OnCallEnded classifies and clears the tracked ring. ok is false when nothing was ringing.
func (t *RingTimer) OnCallEnded() (RingOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return RingOutcome{}, false
	}
	elapsed := t.now().Sub(t.startedAt)
	out := RingOutcome{
		NumberHash: t.hash,
		Duration:   elapsed,
		IsShort:    elapsed < t.threshold,
	}
	t.clearLocked()
	return out, true
}

func (t *RingTimer) clearLocked() {
	t.hash = ""
	t.startedAt = time.Time{}
	t.active = false
}

// CallTracker feeds ring outcomes into the event store
type CallTracker struct {
	timer    *RingTimer
	analyzer *Analyzer
	logger   *zap.Logger
}

// NewCallTracker creates a call tracker
func NewCallTracker(timer *RingTimer, analyzer *Analyzer, logger *zap.Logger) *CallTracker {
	return &CallTracker{timer: timer, analyzer: analyzer, logger: logger}
}

// RingStarted starts timing a ring for hash
func (c *CallTracker) RingStarted(hash string) {
	c.timer.OnRingStart(hash)
}

// Answered cancels short-ring classification for the current call
func (c *CallTracker) Answered() {
	c.timer.OnAnswered()
}

// Ended classifies the current ring and records a short ring event when needed
func (c *CallTracker) Ended(ctx context.Context) (RingOutcome, bool, error) {
	out, ok := c.timer.OnCallEnded()
	if !ok {
		return out, false, nil
	}
	if out.IsShort && out.NumberHash != "" {
		if err := c.analyzer.RecordShortRing(ctx, out.NumberHash); err != nil {
			return out, true, err
		}
		c.logger.Debug("short ring recorded",
			zap.String("hash", phone.ShortHash(out.NumberHash)),
			zap.Duration("duration", out.Duration))
	}
	return out, true, nil
}
