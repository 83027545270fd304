package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// Evaluator produces a decision for a caller identity
type Evaluator interface {
	Evaluate(ctx context.Context, identity models.CallerIdentity) (models.Decision, error)
}

// Identifier turns a raw caller number into an identity
type Identifier interface {
	Identify(raw *string) models.CallerIdentity
}

// Engine is the caller-facing screening entry point. It always answers
// within the deadline and delivers exactly one decision per call.
type Engine struct {
	identifier Identifier
	evaluator  Evaluator
	followUp   *FollowUpRunner
	deadline   time.Duration
	tracer     trace.Tracer
	metrics    *metrics.MetricsCollector
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a screening engine. followUp may be nil.
func NewEngine(identifier Identifier, evaluator Evaluator, followUp *FollowUpRunner, deadline time.Duration, m *metrics.MetricsCollector, logger *zap.Logger) *Engine {
	return &Engine{
		identifier: identifier,
		evaluator:  evaluator,
		followUp:   followUp,
		deadline:   deadline,
		tracer:     otel.Tracer("call-screener/screening"),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Screen evaluates one incoming call and returns its decision. A nil raw
// means the caller ID was withheld.
func (e *Engine) Screen(ctx context.Context, raw *string) models.Decision {
	out := make(chan models.Decision, 1)
	e.ScreenAsync(ctx, raw, func(d models.Decision) {
		out <- d
	})
	return <-out
}

// ScreenAsync evaluates one incoming call and calls respond exactly once,
// no later than the deadline. Late results are discarded.
func (e *Engine) ScreenAsync(ctx context.Context, raw *string, respond func(models.Decision)) {
	start := e.now()
	identity := e.identifier.Identify(raw)

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	ctx, span := e.tracer.Start(ctx, "screening.screen",
		trace.WithAttributes(attribute.Bool("caller.present", identity.RawNumberPresent)))

	var once sync.Once
	deliver := func(d models.Decision, failReason string) {
		once.Do(func() {
			defer span.End()
			defer cancel()

			if failReason != "" {
				e.metrics.RecordFailOpen(failReason)
				span.SetStatus(codes.Error, failReason)
			}
			span.SetAttributes(
				attribute.String("decision.action", string(d.Action)),
				attribute.String("decision.source", string(d.Source)),
			)
			e.metrics.RecordDecision(string(d.Action), string(d.Source), time.Since(start))
			e.logger.Debug("call screened",
				zap.String("hash", phone.ShortHash(identity.NumberHash)),
				zap.String("action", string(d.Action)),
				zap.String("source", string(d.Source)),
				zap.Duration("duration", time.Since(start)))

			respond(d)

			if e.followUp != nil {
				e.followUp.Submit(FollowUpJob{Identity: identity, Decision: d, At: start.UTC()})
			}
		})
	}

	result := make(chan models.Decision, 1)
	failed := make(chan string, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				e.logger.Error("screening panicked",
					zap.String("hash", phone.ShortHash(identity.NumberHash)),
					zap.String("panic", fmt.Sprint(rec)))
				failed <- "panic"
			}
		}()

		d, err := e.evaluator.Evaluate(ctx, identity)
		if err != nil {
			e.logger.Warn("screening failed",
				zap.String("hash", phone.ShortHash(identity.NumberHash)),
				zap.Error(err))
			failed <- "error"
			return
		}
		result <- d
	}()

	go func() {
		select {
		case d := <-result:
			deliver(d, "")
		case reason := <-failed:
			deliver(models.Allow(models.SourceFailOpen), reason)
		case <-ctx.Done():
			e.logger.Warn("screening deadline exceeded",
				zap.String("hash", phone.ShortHash(identity.NumberHash)),
				zap.Duration("deadline", e.deadline))
			deliver(models.Allow(models.SourceFailOpen), "deadline")
		}
	}()
}
