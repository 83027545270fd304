package reputation

import (
	"errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/metrics"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open
// or a half-open probe is already in flight
var ErrCircuitOpen = errors.New("circuit open")

// ErrRemoteDisabled is returned for submissions when no remote service is configured
var ErrRemoteDisabled = errors.New("reputation service disabled")

// Breaker guards calls to a failing dependency. It starts closed and keeps no
// state across restarts.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewBreaker creates a breaker that opens after cfg.FailureThreshold consecutive
// failures within cfg.Window and probes once after cfg.Cooldown
func NewBreaker(name string, cfg *config.BreakerConfig, m *metrics.MetricsCollector, logger *zap.Logger) *Breaker {
	b := &Breaker{metrics: m, logger: logger}

	threshold := cfg.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: b.onStateChange,
	})

	m.SetBreakerState(name, metrics.BreakerClosed, gobreaker.StateClosed.String())
	return b
}

// Execute runs op unless the breaker is open
func (b *Breaker) Execute(op func() (interface{}, error)) (interface{}, error) {
	res, err := b.cb.Execute(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return res, err
}

// State returns the current state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	b.logger.Warn("circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))

	state := metrics.BreakerClosed
	switch to {
	case gobreaker.StateHalfOpen:
		state = metrics.BreakerHalfOpen
	case gobreaker.StateOpen:
		state = metrics.BreakerOpen
	}
	b.metrics.SetBreakerState(name, state, to.String())
}
