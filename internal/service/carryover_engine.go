package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/store"
)

const carryoverComponent = "carryover_engine"

// CarryoverEngine copies unresolved cards from a predecessor meeting into
// its successor.
type CarryoverEngine struct {
	tx         store.Transactor
	cards      store.CardStore
	meetings   store.MeetingStore
	activities store.ActivityStore
	params     *lifecycle.Params
	logger     *slog.Logger
	opts       options
}

// NewCarryoverEngine creates a CarryoverEngine.
// It returns an error if any of the required dependencies are nil.
func NewCarryoverEngine(
	tx store.Transactor,
	cardStore store.CardStore,
	meetingStore store.MeetingStore,
	activityStore store.ActivityStore,
	params *lifecycle.Params,
	logger *slog.Logger,
	opts ...Option,
) (*CarryoverEngine, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if meetingStore == nil {
		return nil, domain.NewValidationError("meetingStore", "cannot be nil", domain.ErrValidation)
	}
	if activityStore == nil {
		return nil, domain.NewValidationError("activityStore", "cannot be nil", domain.ErrValidation)
	}
	if params == nil {
		params = lifecycle.NewDefaultParams()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CarryoverEngine{
		tx:         tx,
		cards:      cardStore,
		meetings:   meetingStore,
		activities: activityStore,
		params:     params,
		logger:     logger.With(slog.String("component", carryoverComponent)),
		opts:       buildOptions(opts),
	}, nil
}

// CarryOver clones every card of predecessorMeetingID that is not Done into
// newMeetingID, records a carryover activity per clone and stores the clone
// count on the new meeting, all in one transaction. A predecessor without
// eligible cards (or one that no longer exists) yields an empty result.
//
// CarryOver is not idempotent; callers run it once per meeting.
func (e *CarryoverEngine) CarryOver(
	ctx context.Context,
	newMeetingID, predecessorMeetingID uuid.UUID,
) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("meeting_id", newMeetingID.String()),
		slog.String("previous_meeting_id", predecessorMeetingID.String()),
	)

	now := e.opts.now()
	var clones []*domain.Card

	err := e.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txCards := e.cards.WithTx(tx)
		txMeetings := e.meetings.WithTx(tx)
		txActivities := e.activities.WithTx(tx)

		candidates, err := txCards.ListCarryoverCandidates(ctx, predecessorMeetingID)
		if err != nil {
			return err
		}

		clones = lifecycle.PlanCarryover(candidates, newMeetingID, predecessorMeetingID, now, e.params)
		if len(clones) > 0 {
			if err := txCards.CreateMultiple(ctx, clones); err != nil {
				return err
			}

			activities := make([]*domain.CardActivity, 0, len(clones))
			for _, clone := range clones {
				activity, err := domain.NewCardActivity(clone.ID, domain.ActivityCarryover, domain.CarryoverMetadata{
					SourceCardID:         *clone.SourceCardID,
					CarriedFromMeetingID: predecessorMeetingID,
					OriginalMeetingID:    *clone.OriginalMeetingID,
				}, now)
				if err != nil {
					return err
				}
				activities = append(activities, activity)
			}
			if err := txActivities.CreateMultiple(ctx, activities); err != nil {
				return err
			}
		}

		return txMeetings.SetCarryoverCount(ctx, newMeetingID, len(clones))
	})
	if err != nil {
		e.opts.observer.CarryoverCompleted(0, err)
		return nil, NewServiceError(carryoverComponent, "carry_over", "failed to carry over cards", err)
	}

	e.opts.observer.CarryoverCompleted(len(clones), nil)
	log.Info("carried over unresolved cards", slog.Int("count", len(clones)))

	if len(clones) > 0 {
		e.opts.emit(ctx, log, events.TypeCardsCarriedOver, events.CardsCarriedOverPayload{
			MeetingID:         newMeetingID,
			PreviousMeetingID: predecessorMeetingID,
			Count:             len(clones),
		})
	}

	return clones, nil
}
