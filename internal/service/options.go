package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/redact"
)

// Observer receives counters from the services. The metrics package provides
// the Prometheus implementation.
type Observer interface {
	// EscalationRun is called once per completed escalator run.
	EscalationRun(report *EscalationReport, elapsed time.Duration)

	// MeetingLinked is called after the meeting-created pipeline classified a meeting.
	MeetingLinked(recurring bool)

	// CarryoverCompleted is called after a carryover attempt, with the
	// number of cards copied and the error if it failed.
	CarryoverCompleted(count int, err error)

	// ComparisonServed is called for every comparison returned, reporting
	// whether it came from the cache.
	ComparisonServed(cached bool)
}

// NoopObserver discards every observation.
type NoopObserver struct{}

func (NoopObserver) EscalationRun(*EscalationReport, time.Duration) {}
func (NoopObserver) MeetingLinked(bool)                             {}
func (NoopObserver) CarryoverCompleted(int, error)                  {}
func (NoopObserver) ComparisonServed(bool)                          {}

// SeriesRefresher recomputes a series' aggregates after its cards changed.
// SeriesLinker implements it.
type SeriesRefresher interface {
	RefreshAggregates(ctx context.Context, seriesID uuid.UUID) (*domain.MeetingSeries, error)
}

// options holds the optional collaborators shared by all services.
type options struct {
	now       func() time.Time
	emitter   events.EventEmitter
	observer  Observer
	refresher SeriesRefresher
}

// Option configures a service during construction.
type Option func(*options)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEmitter sets the emitter that receives domain events after commits.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(o *options) {
		if emitter != nil {
			o.emitter = emitter
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithSeriesRefresher sets the refresher called after a card edit changes
// the completion counts of a series meeting.
func WithSeriesRefresher(refresher SeriesRefresher) Option {
	return func(o *options) {
		if refresher != nil {
			o.refresher = refresher
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:      func() time.Time { return time.Now().UTC() },
		emitter:  events.NoopEmitter{},
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// emit publishes a domain event. Failures are logged and never returned.
func (o options) emit(ctx context.Context, log *slog.Logger, eventType string, payload any) {
	event, err := events.NewEvent(eventType, payload, o.now())
	if err != nil {
		log.Warn("failed to build event", slog.String("event_type", eventType), redact.ErrorAttr(err))
		return
	}
	if err := o.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit event",
			slog.String("event_type", eventType),
			slog.String("event_id", event.ID.String()),
			redact.ErrorAttr(err))
	}
}
