package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"call-screener/internal/config"
	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/notify"
	"call-screener/internal/phone"
)

// HistoryRecorder is the call history sink
type HistoryRecorder interface {
	Record(ctx context.Context, record *models.HistoryRecord) error
}

// EventRecorder captures behavioral events
type EventRecorder interface {
	RecordIncomingCall(ctx context.Context, hash string) error
}

// FollowUpDeps are the best-effort sinks fed after a decision
type FollowUpDeps struct {
	History  HistoryRecorder
	Notifier notify.Notifier
	Events   EventRecorder
	Settings SettingsProvider
}

// FollowUpJob is the post-decision work for one call
type FollowUpJob struct {
	Identity models.CallerIdentity
	Decision models.Decision
	At       time.Time
}

// FollowUpRunner runs post-decision work on a bounded queue. A full queue
// drops the job; failures are logged and never affect the decision.
type FollowUpRunner struct {
	deps    FollowUpDeps
	queue   chan FollowUpJob
	workers int
	timeout time.Duration
	metrics *metrics.MetricsCollector
	logger  *zap.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewFollowUpRunner creates a follow-up worker pool
func NewFollowUpRunner(cfg *config.FollowUpConfig, deps FollowUpDeps, m *metrics.MetricsCollector, logger *zap.Logger) *FollowUpRunner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &FollowUpRunner{
		deps:    deps,
		queue:   make(chan FollowUpJob, cfg.QueueSize),
		workers: workers,
		timeout: cfg.Timeout,
		metrics: m,
		logger:  logger,
	}
}

// Start launches the workers
func (r *FollowUpRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("follow-up workers started", zap.Int("workers", r.workers))
}

// Stop closes the queue and waits for queued jobs to finish or ctx to end
func (r *FollowUpRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("follow-up workers stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("follow-up workers did not drain: %w", ctx.Err())
	}
}

// Submit enqueues a job without blocking. It reports false when the job was dropped.
func (r *FollowUpRunner) Submit(job FollowUpJob) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}

	select {
	case r.queue <- job:
		return true
	default:
		r.metrics.RecordFollowUpDropped()
		r.logger.Warn("follow-up queue full, dropping job",
			zap.String("hash", phone.ShortHash(job.Identity.NumberHash)),
			zap.String("action", string(job.Decision.Action)))
		return false
	}
}

func (r *FollowUpRunner) worker(id int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.process(job)
	}
	r.logger.Debug("follow-up worker exiting", zap.Int("worker", id))
}

func (r *FollowUpRunner) process(job FollowUpJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	hash := job.Identity.NumberHash
	d := job.Decision

	g, gctx := errgroup.WithContext(ctx)
	run := func(task string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				r.metrics.RecordFollowUpError(task)
				r.logger.Warn("follow-up task failed",
					zap.String("task", task),
					zap.String("hash", phone.ShortHash(hash)),
					zap.Error(err))
			}
			// Errors stay with their task
			return nil
		})
	}

	if r.deps.History != nil {
		run("history", func(ctx context.Context) error {
			return r.deps.History.Record(ctx, &models.HistoryRecord{
				ID:         uuid.New(),
				NumberHash: hash,
				Action:     d.Action,
				Score:      d.Score,
				Category:   d.Category,
				Source:     d.Source,
				Label:      d.Label,
				RecordedAt: job.At,
			})
		})
	}

	if r.deps.Notifier != nil {
		run("notify", func(ctx context.Context) error {
			doc, err := r.deps.Settings.Current(ctx)
			if err != nil {
				r.logger.Debug("notifying with default settings", zap.Error(err))
			}
			if !doc.Settings.ShouldNotify(d) {
				return nil
			}
			return r.deps.Notifier.Notify(ctx, &models.Notification{
				ID:         uuid.New(),
				NumberHash: hash,
				Action:     d.Action,
				Source:     d.Source,
				Category:   d.Category,
				Score:      d.Score,
				CreatedAt:  job.At,
			})
		})
	}

	if r.deps.Events != nil && hash != "" {
		run("incoming_call", func(ctx context.Context) error {
			if err := r.deps.Events.RecordIncomingCall(ctx, hash); err != nil {
				return err
			}
			r.metrics.RecordBehaviorEvent(string(models.EventIncomingCall))
			return nil
		})
	}

	_ = g.Wait()
}
