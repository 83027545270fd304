package reputation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/phone"
)

// Service is the tiered reputation lookup: seed snapshot first, then the
// remote service behind the breaker and a hard timeout
type Service struct {
	seed    *SeedSnapshot
	remote  Remote
	breaker *Breaker
	timeout time.Duration
	group   singleflight.Group
	tracer  trace.Tracer
	metrics *metrics.MetricsCollector
	logger  *zap.Logger
}

// NewService creates a lookup service. A nil remote disables the network tier.
func NewService(seed *SeedSnapshot, remote Remote, breaker *Breaker, timeout time.Duration, m *metrics.MetricsCollector, logger *zap.Logger) *Service {
	return &Service{
		seed:    seed,
		remote:  remote,
		breaker: breaker,
		timeout: timeout,
		tracer:  otel.Tracer("call-screener/reputation"),
		metrics: m,
		logger:  logger,
	}
}

// Seed returns the seed snapshot backing the first tier
func (s *Service) Seed() *SeedSnapshot {
	return s.seed
}

// Lookup never fails: any problem with the remote tier yields NotFound
func (s *Service) Lookup(ctx context.Context, hash string) models.ReputationResult {
	start := time.Now()

	if e, ok := s.seed.Lookup(hash); ok {
		s.metrics.RecordReputationLookup(string(models.ReputationSeedDB), time.Since(start))
		return models.ReputationResult{
			ConfidenceScore: e.ConfidenceScore,
			Category:        e.Category,
			Source:          models.ReputationSeedDB,
		}
	}

	result := s.lookupRemote(ctx, hash)
	s.metrics.RecordReputationLookup(string(result.Source), time.Since(start))
	return result
}

func (s *Service) lookupRemote(ctx context.Context, hash string) models.ReputationResult {
	if s.remote == nil {
		return models.NotFoundReputation()
	}

	ctx, span := s.tracer.Start(ctx, "reputation.remote_lookup")
	defer span.End()

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Concurrent lookups for one hash share a single remote call with its own timeout
	ch := s.group.DoChan(hash, func() (interface{}, error) {
		callCtx, callCancel := context.WithTimeout(context.Background(), s.timeout)
		defer callCancel()
		return s.breaker.Execute(func() (interface{}, error) {
			return s.remote.GetReputation(callCtx, hash)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
			s.logger.Debug("remote reputation lookup failed",
				zap.String("hash", phone.ShortHash(hash)),
				zap.Error(res.Err))
			return models.NotFoundReputation()
		}
		rep, _ := res.Val.(*RemoteReputation)
		if rep == nil {
			span.SetAttributes(attribute.String("reputation.source", string(models.ReputationNotFound)))
			return models.NotFoundReputation()
		}
		span.SetAttributes(
			attribute.String("reputation.source", string(models.ReputationRemote)),
			attribute.Int("reputation.unique_reporters", rep.UniqueReporters),
		)
		return models.ReputationResult{
			ConfidenceScore: rep.ConfidenceScore,
			Category:        rep.Category,
			ReportCount:     rep.ReportCount,
			UniqueReporters: rep.UniqueReporters,
			Source:          models.ReputationRemote,
		}
	case <-waitCtx.Done():
		span.SetStatus(codes.Error, "timeout")
		s.logger.Warn("remote reputation lookup timed out",
			zap.String("hash", phone.ShortHash(hash)),
			zap.Duration("timeout", s.timeout))
		return models.NotFoundReputation()
	}
}

// Report submits a user spam report through the breaker
func (s *Service) Report(ctx context.Context, hash, category string) error {
	return s.submit(ctx, "report", func(ctx context.Context) error {
		return s.remote.Report(ctx, hash, category)
	})
}

// Correct withdraws a report through the breaker
func (s *Service) Correct(ctx context.Context, hash string) error {
	return s.submit(ctx, "correct", func(ctx context.Context) error {
		return s.remote.Correct(ctx, hash)
	})
}

func (s *Service) submit(ctx context.Context, op string, call func(ctx context.Context) error) error {
	if s.remote == nil {
		return ErrRemoteDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, call(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to %s reputation: %w", op, err)
	}
	return nil
}

// BreakerState reports the breaker state for health checks
func (s *Service) BreakerState() string {
	return s.breaker.State()
}

// Actionable reports whether a result may drive a decision: seed data is
// curated, remote data needs enough distinct reporters
func Actionable(r models.ReputationResult, minReporters int) bool {
	if r.Source == models.ReputationSeedDB {
		return true
	}
	return r.Source == models.ReputationRemote && r.UniqueReporters >= minReporters
}
