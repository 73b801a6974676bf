// Package scheduler runs the priority escalator on a cron schedule inside
// the server process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/robfig/cron/v3"
)

// Escalator is the job run on every tick.
type Escalator interface {
	Run(ctx context.Context) *service.EscalationReport
}

// Config holds scheduler configuration.
type Config struct {
	Enabled  bool
	Schedule string
	// Timeout bounds a single run. Zero means no bound.
	Timeout time.Duration
}

// Scheduler triggers escalation runs. Overlapping ticks are skipped.
type Scheduler struct {
	cron      *cron.Cron
	escalator Escalator
	config    Config
	logger    *slog.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	started  bool
	stopOnce sync.Once
}

// New creates a Scheduler and validates the schedule.
func New(cfg Config, escalator Escalator, log *slog.Logger) (*Scheduler, error) {
	if escalator == nil {
		return nil, fmt.Errorf("escalator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "scheduler"))

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		escalator: escalator,
		config:    cfg,
		logger:    log,
		baseCtx:   context.Background(),
	}

	if cfg.Enabled {
		if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
			return nil, fmt.Errorf("invalid escalation schedule %q: %w", cfg.Schedule, err)
		}
	}
	return s, nil
}

// Start begins firing ticks. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info("escalation scheduler disabled by config")
		return
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("escalation scheduler started", slog.String("schedule", s.config.Schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for a running tick to finish.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			return
		}
		<-s.cron.Stop().Done()
		s.logger.Info("escalation scheduler stopped")
	})
}

// tick runs one escalation pass.
func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	ctx = logger.WithLogger(ctx, s.logger)

	report := s.escalator.Run(ctx)
	if report == nil {
		return
	}
	s.logger.Debug("scheduled escalation finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("escalated", report.Success()))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
