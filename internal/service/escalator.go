package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
	"golang.org/x/sync/errgroup"
)

const escalatorComponent = "priority_escalator"

// Default escalator settings.
const (
	DefaultEscalationWorkers   = 4
	DefaultEscalationBatchSize = 500
)

// errGuardMiss rolls back an escalation whose card changed after it was read.
var errGuardMiss = errors.New("card changed since it was read")

// OutcomeResult classifies what the escalator did with one card.
type OutcomeResult string

const (
	OutcomeEscalated OutcomeResult = "escalated"
	OutcomeSkipped   OutcomeResult = "skipped"
	OutcomeUnchanged OutcomeResult = "unchanged"
	OutcomeFailed    OutcomeResult = "failed"
)

// Outcome is the escalator's result for a single card.
type Outcome struct {
	CardID uuid.UUID
	Result OutcomeResult
	From   domain.Priority
	To     domain.Priority
	Reason string
	Err    error
}

// EscalationReport aggregates the outcomes of one escalator run. Cards left
// unchanged are only counted.
type EscalationReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Unchanged  int
	Outcomes   []Outcome
}

func (r *EscalationReport) record(o Outcome) {
	r.Scanned++
	if o.Result == OutcomeUnchanged {
		r.Unchanged++
		return
	}
	r.Outcomes = append(r.Outcomes, o)
}

func (r *EscalationReport) count(result OutcomeResult) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// Success is the number of cards whose priority was raised.
func (r *EscalationReport) Success() int { return r.count(OutcomeEscalated) }

// Failed is the number of cards whose update failed.
func (r *EscalationReport) Failed() int { return r.count(OutcomeFailed) }

// Skipped is the number of cards edited concurrently and left for the next run.
func (r *EscalationReport) Skipped() int { return r.count(OutcomeSkipped) }

// Changes returns the applied escalations.
func (r *EscalationReport) Changes() []Outcome {
	changes := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Result == OutcomeEscalated {
			changes = append(changes, o)
		}
	}
	return changes
}

// Escalator raises the priority of cards that have stayed too long in a status.
type Escalator struct {
	tx         store.Transactor
	cards      store.CardStore
	activities store.ActivityStore
	params     *lifecycle.Params
	workers    int
	batchSize  int
	logger     *slog.Logger
	opts       options

	// running guards against overlapping runs from the scheduler and the API.
	running sync.Mutex
}

// NewEscalator creates an Escalator. workers bounds how many cards are
// updated in parallel and batchSize is the page size of the card scan;
// values below 1 fall back to the defaults.
func NewEscalator(
	tx store.Transactor,
	cardStore store.CardStore,
	activityStore store.ActivityStore,
	params *lifecycle.Params,
	workers, batchSize int,
	logger *slog.Logger,
	opts ...Option,
) (*Escalator, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if activityStore == nil {
		return nil, domain.NewValidationError("activityStore", "cannot be nil", domain.ErrValidation)
	}
	if params == nil {
		params = lifecycle.NewDefaultParams()
	}
	if workers < 1 {
		workers = DefaultEscalationWorkers
	}
	if batchSize < 1 {
		batchSize = DefaultEscalationBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Escalator{
		tx:         tx,
		cards:      cardStore,
		activities: activityStore,
		params:     params,
		workers:    workers,
		batchSize:  batchSize,
		logger:     logger.With(slog.String("component", escalatorComponent)),
		opts:       buildOptions(opts),
	}, nil
}

// Run evaluates every card that is not Done against the escalation table
// and applies the escalations that fire. It never returns an error:
// per-card failures are recorded in the report and the scan continues. A
// failed page read or a cancelled context ends the scan early with the
// outcomes gathered so far.
func (e *Escalator) Run(ctx context.Context) *EscalationReport {
	e.running.Lock()
	defer e.running.Unlock()

	log := logger.FromContextOrDefault(ctx, e.logger)
	now := e.opts.now()
	report := &EscalationReport{StartedAt: now}

	var mu sync.Mutex
	after := uuid.Nil
	for ctx.Err() == nil {
		page, err := e.cards.ListActive(ctx, after, e.batchSize)
		if err != nil {
			log.Error("failed to list active cards",
				slog.String("after_id", after.String()),
				redact.ErrorAttr(err))
			break
		}
		if len(page) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(e.workers)
		for _, card := range page {
			g.Go(func() error {
				outcome := e.escalateCard(ctx, card, now)
				mu.Lock()
				report.record(outcome)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < e.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	report.FinishedAt = e.opts.now()
	e.opts.observer.EscalationRun(report, report.FinishedAt.Sub(report.StartedAt))

	log.Info("priority escalation finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("escalated", report.Success()),
		slog.Int("skipped", report.Skipped()),
		slog.Int("failed", report.Failed()),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report
}

// escalateCard applies at most one escalation to card. The write only
// lands if the stored priority and status still match what the decision
// was based on.
func (e *Escalator) escalateCard(ctx context.Context, card *domain.Card, now time.Time) Outcome {
	decision, ok := lifecycle.EvaluateEscalation(card, now, e.params)
	if !ok {
		return Outcome{CardID: card.ID, Result: OutcomeUnchanged, From: card.Priority, To: card.Priority}
	}

	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("card_id", card.ID.String()),
	)
	outcome := Outcome{
		CardID: card.ID,
		From:   decision.From,
		To:     decision.To,
		Reason: decision.Reason,
	}

	err := e.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		applied, err := e.cards.WithTx(tx).EscalatePriority(
			ctx, card.ID, decision.From, decision.Status, decision.To, now,
		)
		if err != nil {
			return err
		}
		if !applied {
			return errGuardMiss
		}

		activity, err := domain.NewCardActivity(card.ID, domain.ActivityPriorityChange, domain.PriorityChangeMetadata{
			Automated:   true,
			OldPriority: decision.From,
			NewPriority: decision.To,
			Reason:      decision.Reason,
		}, now)
		if err != nil {
			return err
		}
		return e.activities.WithTx(tx).Create(ctx, activity)
	})

	switch {
	case err == nil:
		outcome.Result = OutcomeEscalated
		log.Debug("escalated card priority",
			slog.String("from", decision.From.String()),
			slog.String("to", decision.To.String()),
			slog.String("reason", decision.Reason))
		e.opts.emit(ctx, log, events.TypePriorityEscalated, events.PriorityEscalatedPayload{
			CardID:      card.ID,
			MeetingID:   card.MeetingID,
			OldPriority: decision.From.String(),
			NewPriority: decision.To.String(),
			Reason:      decision.Reason,
		})
	case errors.Is(err, errGuardMiss):
		outcome.Result = OutcomeSkipped
		outcome.Err = err
		log.Info("skipped escalation, card was edited concurrently")
	default:
		outcome.Result = OutcomeFailed
		outcome.Err = err
		log.Warn("failed to escalate card priority", redact.ErrorAttr(err))
	}

	return outcome
}
