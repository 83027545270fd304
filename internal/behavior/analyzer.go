package behavior

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

// Signals are the behavioral anomaly flags computed for one caller
type Signals struct {
	FrequencyAnomaly bool `json:"frequency_anomaly"`
	Burst            bool `json:"burst"`
	RecentShortRings bool `json:"recent_short_rings"`
}

// Any reports whether at least one signal fired
func (s Signals) Any() bool {
	return s.FrequencyAnomaly || s.Burst || s.RecentShortRings
}

// Category names the strongest signal, burst first
func (s Signals) Category() string {
	switch {
	case s.Burst:
		return "burst_pattern"
	case s.RecentShortRings:
		return "bait_call"
	case s.FrequencyAnomaly:
		return "frequency_anomaly"
	}
	return ""
}

// Profile is a diagnostic summary of a caller's retained events
type Profile struct {
	NumberHash          string  `json:"number_hash"`
	TotalEvents         int     `json:"total_events"`
	IncomingCalls       int     `json:"incoming_calls"`
	ShortRings          int     `json:"short_rings"`
	MeanIntervalSeconds float64 `json:"mean_interval_seconds"`
	StdDevIntervalSecs  float64 `json:"stddev_interval_seconds"`
	Signals             Signals `json:"signals"`
}

// Analyzer evaluates range queries over the event store
type Analyzer struct {
	store  EventStore
	config *config.BehaviorConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyzer creates a behavioral analyzer
func NewAnalyzer(store EventStore, cfg *config.BehaviorConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// IsFrequencyAnomaly reports whether the caller reached the frequency threshold within its window
func (a *Analyzer) IsFrequencyAnomaly(ctx context.Context, hash string) (bool, error) {
	return a.atLeast(ctx, hash, "", a.config.FrequencyWindow, a.config.FrequencyThreshold)
}

// IsBurstPattern reports whether the caller reached the burst threshold within its window
func (a *Analyzer) IsBurstPattern(ctx context.Context, hash string) (bool, error) {
	return a.atLeast(ctx, hash, "", a.config.BurstWindow, a.config.BurstThreshold)
}

// HadRecentShortRing reports whether the caller left enough short rings recently
func (a *Analyzer) HadRecentShortRing(ctx context.Context, hash string) (bool, error) {
	return a.atLeast(ctx, hash, models.EventShortRing, a.config.ShortRingWindow, a.config.ShortRingThreshold)
}

func (a *Analyzer) atLeast(ctx context.Context, hash string, eventType models.CallerEventType, window time.Duration, threshold int) (bool, error) {
	count, err := a.store.Count(ctx, hash, eventType, a.now().Add(-window))
	if err != nil {
		return false, fmt.Errorf("failed to count caller events: %w", err)
	}
	return count >= threshold, nil
}

// Signals computes all three signals for hash
func (a *Analyzer) Signals(ctx context.Context, hash string) (Signals, error) {
	var s Signals
	var err error

	if s.Burst, err = a.IsBurstPattern(ctx, hash); err != nil {
		return Signals{}, err
	}
	if s.FrequencyAnomaly, err = a.IsFrequencyAnomaly(ctx, hash); err != nil {
		return Signals{}, err
	}
	if s.RecentShortRings, err = a.HadRecentShortRing(ctx, hash); err != nil {
		return Signals{}, err
	}
	return s, nil
}

// Profile summarizes the retained events of hash
func (a *Analyzer) Profile(ctx context.Context, hash string) (*Profile, error) {
	events, err := a.store.Events(ctx, hash, a.now().Add(-a.config.Retention))
	if err != nil {
		return nil, fmt.Errorf("failed to load caller events: %w", err)
	}

	signals, err := a.Signals(ctx, hash)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		NumberHash:  hash,
		TotalEvents: len(events),
		Signals:     signals,
	}

	var arrivals []time.Time
	for _, e := range events {
		switch e.EventType {
		case models.EventIncomingCall:
			p.IncomingCalls++
			arrivals = append(arrivals, e.OccurredAt)
		case models.EventShortRing:
			p.ShortRings++
		}
	}

	if len(arrivals) >= 2 {
		gaps := make([]float64, 0, len(arrivals)-1)
		for i := 1; i < len(arrivals); i++ {
			gaps = append(gaps, arrivals[i].Sub(arrivals[i-1]).Seconds())
		}
		if len(gaps) == 1 {
			p.MeanIntervalSeconds = gaps[0]
		} else {
			p.MeanIntervalSeconds, p.StdDevIntervalSecs = stat.MeanStdDev(gaps, nil)
		}
	}

	return p, nil
}

// RecordIncomingCall appends an incoming call event
func (a *Analyzer) RecordIncomingCall(ctx context.Context, hash string) error {
	return a.record(ctx, hash, models.EventIncomingCall)
}

// RecordShortRing appends a short ring event
func (a *Analyzer) RecordShortRing(ctx context.Context, hash string) error {
	return a.record(ctx, hash, models.EventShortRing)
}

func (a *Analyzer) record(ctx context.Context, hash string, eventType models.CallerEventType) error {
	if hash == "" {
		return nil
	}
	err := a.store.Append(ctx, models.CallerEvent{
		NumberHash: hash,
		EventType:  eventType,
		OccurredAt: a.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}
