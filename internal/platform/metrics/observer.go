// Package metrics exports the engine's job and pipeline counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cadence"

// Observer implements service.Observer on Prometheus collectors.
type Observer struct {
	escalationRuns     prometheus.Counter
	escalationDuration prometheus.Histogram
	escalationCards    *prometheus.CounterVec
	meetingsLinked     *prometheus.CounterVec
	carryoverCards     prometheus.Counter
	carryoverFailures  prometheus.Counter
	comparisons        *prometheus.CounterVec
}

// NewObserver creates the collectors and registers them with reg. Collectors
// already registered by an earlier Observer are reused.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		escalationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_runs_total",
			Help:      "Completed priority escalation runs.",
		}),
		escalationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escalation_run_duration_seconds",
			Help:      "Wall time of a priority escalation run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		escalationCards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_cards_total",
			Help:      "Cards examined by the escalator, by outcome.",
		}, []string{"result"}),
		meetingsLinked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_classified_total",
			Help:      "Meetings passed through recurrence detection.",
		}, []string{"recurring"}),
		carryoverCards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carryover_cards_total",
			Help:      "Cards copied into a new meeting of a series.",
		}),
		carryoverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carryover_failures_total",
			Help:      "Carryover attempts that failed and were rolled back.",
		}),
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_served_total",
			Help:      "Meeting comparisons returned, by source.",
		}, []string{"source"}),
	}

	var err error
	if o.escalationRuns, err = register(reg, o.escalationRuns); err != nil {
		return nil, err
	}
	if o.escalationDuration, err = register(reg, o.escalationDuration); err != nil {
		return nil, err
	}
	if o.escalationCards, err = register(reg, o.escalationCards); err != nil {
		return nil, err
	}
	if o.meetingsLinked, err = register(reg, o.meetingsLinked); err != nil {
		return nil, err
	}
	if o.carryoverCards, err = register(reg, o.carryoverCards); err != nil {
		return nil, err
	}
	if o.carryoverFailures, err = register(reg, o.carryoverFailures); err != nil {
		return nil, err
	}
	if o.comparisons, err = register(reg, o.comparisons); err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg, returning the existing collector when an equal
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register collector: %w", err)
}

// EscalationRun records a finished escalator run.
func (o *Observer) EscalationRun(report *service.EscalationReport, elapsed time.Duration) {
	if o == nil || report == nil {
		return
	}
	o.escalationRuns.Inc()
	o.escalationDuration.Observe(elapsed.Seconds())
	o.escalationCards.WithLabelValues(string(service.OutcomeEscalated)).Add(float64(report.Success()))
	o.escalationCards.WithLabelValues(string(service.OutcomeSkipped)).Add(float64(report.Skipped()))
	o.escalationCards.WithLabelValues(string(service.OutcomeFailed)).Add(float64(report.Failed()))
	o.escalationCards.WithLabelValues(string(service.OutcomeUnchanged)).Add(float64(report.Unchanged))
}

// MeetingLinked counts a meeting classified by recurrence detection.
func (o *Observer) MeetingLinked(recurring bool) {
	if o == nil {
		return
	}
	o.meetingsLinked.WithLabelValues(strconv.FormatBool(recurring)).Inc()
}

// CarryoverCompleted counts copied cards, or a failure.
func (o *Observer) CarryoverCompleted(count int, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.carryoverFailures.Inc()
		return
	}
	o.carryoverCards.Add(float64(count))
}

// ComparisonServed counts a returned comparison by source.
func (o *Observer) ComparisonServed(cached bool) {
	if o == nil {
		return
	}
	source := "computed"
	if cached {
		source = "cache"
	}
	o.comparisons.WithLabelValues(source).Inc()
}

var _ service.Observer = (*Observer)(nil)
