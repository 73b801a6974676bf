package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/metrics"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/phrazzld/cadence-api/internal/platform/rabbitmq"
	"github.com/phrazzld/cadence-api/internal/platform/redis"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/scheduler"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "cadence"

// escalationRunTimeout bounds one scheduled escalation run.
const escalationRunTimeout = 10 * time.Minute

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry *prometheus.Registry
	verifier *middleware.JWTVerifier

	meetingService    *service.MeetingService
	cardService       *service.CardService
	comparisonService *service.ComparisonService
	escalator         *service.Escalator

	emitter   *events.InMemoryEventEmitter
	scheduler *scheduler.Scheduler

	// closers release optional integrations in reverse order on cleanup.
	closers []io.Closer
}

// newApplication creates a new application instance with all dependencies initialized.
// Redis and RabbitMQ are optional, but a configured one that cannot be
// reached fails startup. The caller owns db until the application is built.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (_ *application, err error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
		emitter:  events.NewInMemoryEventEmitter(logger),
	}

	defer func() {
		if err != nil {
			app.closeIntegrations()
		}
	}()

	app.verifier, err = middleware.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT verifier: %w", err)
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewObserver(metricsNamespace, app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	params, err := lifecycleParams(cfg.Escalation)
	if err != nil {
		return nil, err
	}

	if err := app.setupPublisher(); err != nil {
		return nil, err
	}
	cache, err := app.setupComparisonCache(ctx)
	if err != nil {
		return nil, err
	}

	tx := store.NewTransactor(db)
	meetingStore := postgres.NewPostgresMeetingStore(db, logger)
	seriesStore := postgres.NewPostgresSeriesStore(db, logger)
	cardStore := postgres.NewPostgresCardStore(db, logger)
	activityStore := postgres.NewPostgresActivityStore(db, logger)

	opts := []service.Option{
		service.WithEmitter(app.emitter),
		service.WithObserver(observer),
	}

	linker, err := service.NewSeriesLinker(tx, seriesStore, meetingStore, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create series linker: %w", err)
	}
	carryover, err := service.NewCarryoverEngine(tx, cardStore, meetingStore, activityStore, params, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create carryover engine: %w", err)
	}
	app.meetingService, err = service.NewMeetingService(
		tx, meetingStore, seriesStore, cardStore, activityStore, linker, carryover, logger, opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting service: %w", err)
	}
	app.comparisonService, err = service.NewComparisonService(meetingStore, cardStore, cache, params, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create comparison service: %w", err)
	}
	app.cardService, err = service.NewCardService(
		tx, cardStore, meetingStore, activityStore, params, app.comparisonService, logger,
		service.WithEmitter(app.emitter),
		service.WithObserver(observer),
		service.WithSeriesRefresher(linker),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create card service: %w", err)
	}
	app.escalator, err = service.NewEscalator(
		tx, cardStore, activityStore, params,
		cfg.Escalation.Workers, cfg.Escalation.BatchSize,
		logger, opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create escalator: %w", err)
	}

	app.scheduler, err = scheduler.New(scheduler.Config{
		Enabled:  cfg.Escalation.Enabled,
		Schedule: cfg.Escalation.Schedule,
		Timeout:  escalationRunTimeout,
	}, app.escalator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupPublisher registers the RabbitMQ publisher on the event emitter when
// a broker is configured.
func (app *application) setupPublisher() error {
	if app.config.RabbitMQ.URL == "" {
		app.logger.Info("rabbitmq not configured, domain events stay in process")
		return nil
	}

	publisher, err := rabbitmq.Dial(app.config.RabbitMQ.URL, app.config.RabbitMQ.Exchange, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	app.closers = append(app.closers, publisher)
	app.emitter.RegisterHandler(publisher)

	app.logger.Info("domain events published to rabbitmq",
		"exchange", app.config.RabbitMQ.Exchange)
	return nil
}

// setupComparisonCache connects to redis when configured. A nil cache makes
// the comparison service compute every request.
func (app *application) setupComparisonCache(ctx context.Context) (service.ComparisonCache, error) {
	if app.config.Redis.URL == "" {
		app.logger.Info("redis not configured, comparisons are not cached")
		return nil, nil
	}

	client, err := redis.Connect(ctx, app.config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.closers = append(app.closers, client)

	app.logger.Info("comparison cache enabled", "ttl", app.config.Redis.ComparisonTTL)
	return redis.NewComparisonCache(client, app.config.Redis.ComparisonTTL, app.logger), nil
}

// Run starts the scheduler and serves HTTP until ctx is cancelled. The
// scheduler is stopped before the database is closed.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start(ctx)

	err := app.startHTTPServer(ctx, app.setupRouter())

	app.scheduler.Stop()
	app.cleanup()

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// closeIntegrations closes the optional integrations in reverse order.
func (app *application) closeIntegrations() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("error closing integration", redact.ErrorAttr(err))
		}
	}
	app.closers = nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	app.closeIntegrations()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", redact.ErrorAttr(err))
		}
	}

	app.logger.Info("application shutdown completed")
}
