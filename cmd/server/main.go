package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"call-screener/internal/api"
	"call-screener/internal/behavior"
	"call-screener/internal/config"
	"call-screener/internal/metrics"
	"call-screener/internal/monitoring"
	"call-screener/internal/notify"
	"call-screener/internal/phone"
	"call-screener/internal/policy"
	"call-screener/internal/reputation"
	"call-screener/internal/rules"
	"call-screener/internal/screening"
	"call-screener/internal/services"
)

func main() {
	// A missing .env is fine; the environment and config file still apply
	_ = godotenv.Load()

	app := fx.New(
		// Configuration
		fx.Provide(config.NewConfig),

		// Logging
		fx.Provide(NewLogger),

		// Metrics and audit
		fx.Provide(NewMetrics),
		fx.Provide(NewAuditLogger),

		// Storage
		fx.Provide(services.NewBackends),

		// Domain services
		fx.Provide(NewHasher),
		fx.Provide(NewRuleService),
		fx.Provide(NewSettingsService),
		fx.Provide(NewEntitlements),
		fx.Provide(NewAnalyzer),
		fx.Provide(NewCallTracker),
		fx.Provide(NewReputationService),
		fx.Provide(NewPolicyEvaluator),
		fx.Provide(NewNotifier),
		fx.Provide(NewResetService),

		// Screening
		fx.Provide(NewFollowUpRunner),
		fx.Provide(NewPipeline),
		fx.Provide(NewEngine),

		// API
		fx.Provide(NewHandlers),
		fx.Provide(NewGinEngine),

		// HTTP Server
		fx.Provide(NewHTTPServer),

		// Lifecycle
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartBackgroundWork),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zc, err := cfg.Logging.ZapConfig()
	if err != nil {
		return nil, err
	}
	return zc.Build()
}

func NewMetrics(cfg *config.Config, logger *zap.Logger) (*metrics.MetricsCollector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return metrics.NewMetricsCollector(&cfg.Metrics, reg, logger), reg
}

// NewAuditLogger returns nil when the audit trail is disabled
func NewAuditLogger(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *monitoring.AuditLogger {
	if !cfg.Audit.Enabled {
		return nil
	}
	al := monitoring.NewAuditLogger(&cfg.Audit, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return al.Close()
		},
	})
	return al
}

func NewHasher(cfg *config.Config) *phone.Hasher {
	return phone.NewHasher(&cfg.Phone)
}

func NewRuleService(b *services.Backends, logger *zap.Logger) *rules.Service {
	return rules.NewService(b.PrefixRules, logger)
}

func NewSettingsService(b *services.Backends, logger *zap.Logger) *services.SettingsService {
	return services.NewSettingsService(b.Settings, logger)
}

func NewEntitlements(cfg *config.Config) *services.ConfigEntitlements {
	return services.NewConfigEntitlements(&cfg.Entitlement)
}

func NewAnalyzer(cfg *config.Config, b *services.Backends, logger *zap.Logger) *behavior.Analyzer {
	return behavior.NewAnalyzer(b.Events, &cfg.Behavior, logger)
}

func NewCallTracker(cfg *config.Config, analyzer *behavior.Analyzer, logger *zap.Logger) *behavior.CallTracker {
	return behavior.NewCallTracker(behavior.NewRingTimer(cfg.Behavior.ShortRingDuration), analyzer, logger)
}

func NewReputationService(cfg *config.Config, b *services.Backends, m *metrics.MetricsCollector, logger *zap.Logger) *reputation.Service {
	seed := reputation.NewSeedSnapshot(b.Seed, m, logger)
	breaker := reputation.NewBreaker("reputation", &cfg.Breaker, m, logger)

	var remote reputation.Remote
	if cfg.Reputation.Enabled {
		remote = reputation.NewClient(&cfg.Reputation, logger)
	} else {
		logger.Info("remote reputation lookups disabled")
	}

	return reputation.NewService(seed, remote, breaker, cfg.Reputation.Timeout, m, logger)
}

func NewPolicyEvaluator(cfg *config.Config, b *services.Backends, logger *zap.Logger) (*policy.Evaluator, error) {
	loc, err := time.LoadLocation(cfg.Screening.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid screening timezone %q: %w", cfg.Screening.Timezone, err)
	}
	return policy.NewEvaluator(cfg.Phone.HomePrefix, b.History, b.Blocklist, loc, logger), nil
}

func NewNotifier(cfg *config.Config, b *services.Backends, logger *zap.Logger) (notify.Notifier, error) {
	return notify.New(&cfg.Notify, b.Redis, logger)
}

func NewResetService(b *services.Backends, ruleService *rules.Service, settings *services.SettingsService, logger *zap.Logger) *services.ResetService {
	return services.NewResetService(b, ruleService, settings, logger)
}

func NewFollowUpRunner(
	cfg *config.Config,
	b *services.Backends,
	notifier notify.Notifier,
	analyzer *behavior.Analyzer,
	settings *services.SettingsService,
	m *metrics.MetricsCollector,
	logger *zap.Logger,
) *screening.FollowUpRunner {
	return screening.NewFollowUpRunner(&cfg.FollowUp, screening.FollowUpDeps{
		History:  b.History,
		Notifier: notifier,
		Events:   analyzer,
		Settings: settings,
	}, m, logger)
}

func NewPipeline(
	cfg *config.Config,
	b *services.Backends,
	ruleService *rules.Service,
	evaluator *policy.Evaluator,
	rep *reputation.Service,
	analyzer *behavior.Analyzer,
	settings *services.SettingsService,
	entitlements *services.ConfigEntitlements,
	m *metrics.MetricsCollector,
	logger *zap.Logger,
) *screening.Pipeline {
	return screening.NewPipeline(screening.Dependencies{
		Whitelist:    b.Whitelist,
		Blocklist:    b.Blocklist,
		Contacts:     b.Contacts,
		Rules:        ruleService,
		Policy:       evaluator,
		Reputation:   rep,
		Behavior:     analyzer,
		Settings:     settings,
		Entitlements: entitlements,
	}, cfg.Thresholds, cfg.Behavior.Action, m, logger)
}

func NewEngine(
	cfg *config.Config,
	hasher *phone.Hasher,
	pipeline *screening.Pipeline,
	followUp *screening.FollowUpRunner,
	m *metrics.MetricsCollector,
	logger *zap.Logger,
) *screening.Engine {
	return screening.NewEngine(hasher, pipeline, followUp, cfg.Screening.Deadline, m, logger)
}

func NewHandlers(
	b *services.Backends,
	engine *screening.Engine,
	tracker *behavior.CallTracker,
	hasher *phone.Hasher,
	ruleService *rules.Service,
	settings *services.SettingsService,
	rep *reputation.Service,
	analyzer *behavior.Analyzer,
	resetter *services.ResetService,
	audit *monitoring.AuditLogger,
	m *metrics.MetricsCollector,
	logger *zap.Logger,
) api.Handlers {
	handlers := api.Handlers{
		Screening:   api.NewScreeningHandler(engine, tracker, hasher, m, logger),
		Lists:       api.NewListsHandler(b, hasher, logger),
		Rules:       api.NewRulesHandler(ruleService, logger),
		Settings:    api.NewSettingsHandler(settings, logger),
		Reputation:  api.NewReputationHandler(rep, rep.Seed(), hasher, logger),
		Diagnostics: api.NewDiagnosticsHandler(analyzer, b.History, resetter, logger),
		Health:      api.NewHealthHandler(b, rep, rep.Seed(), logger),
	}
	if audit != nil {
		handlers.Audit = api.NewAuditHandler(audit, logger)
	}
	return handlers
}

func NewGinEngine(cfg *config.Config, m *metrics.MetricsCollector, audit *monitoring.AuditLogger) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(api.RequestID())
	engine.Use(api.RequestMetrics(m))
	if audit != nil {
		engine.Use(api.Audit(audit))
	}

	return engine
}

func NewHTTPServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

func RegisterRoutes(cfg *config.Config, engine *gin.Engine, handlers api.Handlers, reg *prometheus.Registry) {
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler(reg)
	}
	api.RegisterRoutes(engine, handlers, cfg.Metrics.Path, metricsHandler)
}

// StartBackgroundWork loads the seed snapshot and prefix rules, runs the
// follow-up workers and purges expired behavioral events
func StartBackgroundWork(
	lc fx.Lifecycle,
	cfg *config.Config,
	b *services.Backends,
	rep *reputation.Service,
	ruleService *rules.Service,
	followUp *screening.FollowUpRunner,
	logger *zap.Logger,
) {
	purgeCtx, stopPurge := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Screening works without seed data; the remote tier still answers
			if err := rep.Seed().Reload(ctx); err != nil {
				logger.Error("failed to load seed snapshot", zap.Error(err))
			}
			if err := ruleService.Reload(ctx); err != nil {
				logger.Error("failed to load prefix rules", zap.Error(err))
			}

			followUp.Start()
			go purgeEvents(purgeCtx, b.Events, cfg.Behavior.Retention/24, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopPurge()
			stopErr := followUp.Stop(ctx)
			return errors.Join(stopErr, b.Close())
		},
	})
}

func purgeEvents(ctx context.Context, store behavior.EventStore, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.Purge(ctx); err != nil {
				logger.Warn("failed to purge caller events", zap.Error(err))
			}
		}
	}
}

func StartServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	server *http.Server,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting Call Screener Service",
				zap.String("addr", server.Addr),
				zap.String("storage", cfg.Storage.Driver),
				zap.String("behavior_action", cfg.Behavior.Action))

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Call Screener Service")

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	})
}
