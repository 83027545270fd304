package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"call-screener/internal/config"
)

// Breaker states as exported by the breaker state gauge
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// MetricsCollector collects and exposes metrics for the call screener.
// A nil collector records nothing.
type MetricsCollector struct {
	config *config.MetricsConfig
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Screening metrics
	decisionsTotal    *prometheus.CounterVec
	screeningDuration prometheus.Histogram
	failOpenTotal     *prometheus.CounterVec
	stageErrorsTotal  *prometheus.CounterVec

	// Reputation metrics
	reputationLookupsTotal   *prometheus.CounterVec
	reputationLookupDuration prometheus.Histogram
	breakerState             *prometheus.GaugeVec
	breakerTransitionsTotal  *prometheus.CounterVec
	seedEntries              prometheus.Gauge

	// Cache and event metrics
	cacheOperationsTotal *prometheus.CounterVec
	behaviorEventsTotal  *prometheus.CounterVec

	// Follow-up metrics
	followUpDroppedTotal prometheus.Counter
	followUpErrorsTotal  *prometheus.CounterVec

	mu        sync.RWMutex
	decisions int64
	failOpens int64
	cacheHits int64
	cacheMiss int64
}

// NewMetricsCollector creates a collector and registers it on reg
func NewMetricsCollector(cfg *config.MetricsConfig, reg prometheus.Registerer, logger *zap.Logger) *MetricsCollector {
	if !cfg.Enabled {
		logger.Info("metrics collection disabled")
		return &MetricsCollector{
			config: cfg,
			logger: logger,
		}
	}

	histogramBuckets := cfg.HistogramBuckets
	if len(histogramBuckets) == 0 {
		histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 1.4, 2.5}
	}

	collector := &MetricsCollector{
		config: cfg,
		logger: logger,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "call_screener_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: histogramBuckets,
			},
			[]string{"method", "endpoint"},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_decisions_total",
				Help: "Screening decisions delivered, by action and source",
			},
			[]string{"action", "source"},
		),

		screeningDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "call_screener_screening_duration_seconds",
				Help:    "Time from screening request to delivered decision",
				Buckets: histogramBuckets,
			},
		),

		failOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_fail_open_total",
				Help: "Calls allowed through because evaluation did not finish cleanly",
			},
			[]string{"reason"}, // reason: deadline/panic/error
		),

		stageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_stage_errors_total",
				Help: "Pipeline stage errors treated as no opinion",
			},
			[]string{"stage"},
		),

		reputationLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_reputation_lookups_total",
				Help: "Reputation lookups by result source",
			},
			[]string{"source"},
		),

		reputationLookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "call_screener_reputation_lookup_duration_seconds",
				Help:    "Reputation lookup duration in seconds",
				Buckets: histogramBuckets,
			},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "call_screener_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		breakerTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "to"},
		),

		seedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "call_screener_seed_entries",
				Help: "Entries in the active seed snapshot",
			},
		),

		cacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_cache_operations_total",
				Help: "Total number of list cache operations",
			},
			[]string{"operation", "result"},
		),

		behaviorEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_behavior_events_total",
				Help: "Caller events appended to the rolling event store",
			},
			[]string{"event_type"},
		),

		followUpDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "call_screener_followup_dropped_total",
				Help: "Post-decision jobs dropped because the queue was full",
			},
		),

		followUpErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_screener_followup_errors_total",
				Help: "Post-decision task failures",
			},
			[]string{"task"},
		),
	}

	collector.registerMetrics(reg)

	logger.Info("metrics collector initialized", zap.String("path", cfg.Path))

	return collector
}

// registerMetrics registers all metrics with the registerer
func (m *MetricsCollector) registerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,

		m.decisionsTotal,
		m.screeningDuration,
		m.failOpenTotal,
		m.stageErrorsTotal,

		m.reputationLookupsTotal,
		m.reputationLookupDuration,
		m.breakerState,
		m.breakerTransitionsTotal,
		m.seedEntries,

		m.cacheOperationsTotal,
		m.behaviorEventsTotal,

		m.followUpDroppedTotal,
		m.followUpErrorsTotal,
	)
}

func (m *MetricsCollector) enabled() bool {
	return m != nil && m.config != nil && m.config.Enabled
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled() {
		return
	}

	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDecision records a delivered decision
func (m *MetricsCollector) RecordDecision(action, source string, duration time.Duration) {
	if !m.enabled() {
		return
	}

	m.decisionsTotal.WithLabelValues(action, source).Inc()
	m.screeningDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.decisions++
	m.mu.Unlock()
}

// RecordFailOpen records a fail-open decision
func (m *MetricsCollector) RecordFailOpen(reason string) {
	if !m.enabled() {
		return
	}

	m.failOpenTotal.WithLabelValues(reason).Inc()

	m.mu.Lock()
	m.failOpens++
	m.mu.Unlock()
}

// RecordStageError records a stage failure
func (m *MetricsCollector) RecordStageError(stage string) {
	if !m.enabled() {
		return
	}

	m.stageErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordReputationLookup records a reputation lookup result
func (m *MetricsCollector) RecordReputationLookup(source string, duration time.Duration) {
	if !m.enabled() {
		return
	}

	m.reputationLookupsTotal.WithLabelValues(source).Inc()
	m.reputationLookupDuration.Observe(duration.Seconds())
}

// SetBreakerState exports a breaker transition
func (m *MetricsCollector) SetBreakerState(name string, state int, label string) {
	if !m.enabled() {
		return
	}

	m.breakerState.WithLabelValues(name).Set(float64(state))
	m.breakerTransitionsTotal.WithLabelValues(name, label).Inc()
}

// SetSeedEntries exports the active snapshot size
func (m *MetricsCollector) SetSeedEntries(n int) {
	if !m.enabled() {
		return
	}

	m.seedEntries.Set(float64(n))
}

// RecordCacheOperation records list cache metrics
func (m *MetricsCollector) RecordCacheOperation(operation, result string) {
	if !m.enabled() {
		return
	}

	m.cacheOperationsTotal.WithLabelValues(operation, result).Inc()

	if operation == "lookup" {
		m.mu.Lock()
		switch result {
		case "hit":
			m.cacheHits++
		case "miss":
			m.cacheMiss++
		}
		m.mu.Unlock()
	}
}

// RecordBehaviorEvent records an appended caller event
func (m *MetricsCollector) RecordBehaviorEvent(eventType string) {
	if !m.enabled() {
		return
	}

	m.behaviorEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordFollowUpDropped records a dropped post-decision job
func (m *MetricsCollector) RecordFollowUpDropped() {
	if !m.enabled() {
		return
	}

	m.followUpDroppedTotal.Inc()
}

// RecordFollowUpError records a failed post-decision task
func (m *MetricsCollector) RecordFollowUpError(task string) {
	if !m.enabled() {
		return
	}

	m.followUpErrorsTotal.WithLabelValues(task).Inc()
}

// Handler returns the Prometheus metrics handler for g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// GetStats returns current metrics statistics
func (m *MetricsCollector) GetStats() map[string]interface{} {
	if !m.enabled() {
		return map[string]interface{}{
			"metrics_enabled": false,
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"metrics_enabled": true,
		"decisions":       m.decisions,
		"fail_opens":      m.failOpens,
		"cache_hits":      m.cacheHits,
		"cache_misses":    m.cacheMiss,
		"cache_hit_rate": func() float64 {
			total := m.cacheHits + m.cacheMiss
			if total > 0 {
				return float64(m.cacheHits) / float64(total) * 100
			}
			return 0
		}(),
	}
}
