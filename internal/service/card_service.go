package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
)

const cardComponent = "card_service"

// ComparisonInvalidator drops cached comparisons affected by a card edit.
type ComparisonInvalidator interface {
	Invalidate(ctx context.Context, meeting *domain.Meeting)
}

// StatusChange is a requested status transition.
type StatusChange struct {
	Status        domain.Status
	BlockedReason string
	BlockedBy     string
}

// CardService provides the card edits made by people and the read views
// derived from a card's history.
type CardService struct {
	tx          store.Transactor
	cards       store.CardStore
	meetings    store.MeetingStore
	activities  store.ActivityStore
	params      *lifecycle.Params
	invalidator ComparisonInvalidator
	logger      *slog.Logger
	opts        options
}

// NewCardService creates a CardService. invalidator may be nil.
// It returns an error if any of the required dependencies are nil.
func NewCardService(
	tx store.Transactor,
	cardStore store.CardStore,
	meetingStore store.MeetingStore,
	activityStore store.ActivityStore,
	params *lifecycle.Params,
	invalidator ComparisonInvalidator,
	logger *slog.Logger,
	opts ...Option,
) (*CardService, error) {
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

	return &CardService{
		tx:          tx,
		cards:       cardStore,
		meetings:    meetingStore,
		activities:  activityStore,
		params:      params,
		invalidator: invalidator,
		logger:      logger.With(slog.String("component", cardComponent)),
		opts:        buildOptions(opts),
	}, nil
}

// GetCard returns a card whose meeting is owned by userID.
func (s *CardService) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, _, err := s.ownedCard(ctx, "get_card", userID, cardID)
	return card, err
}

// UpdateStatus moves a card into a new status. The time spent in the old
// status is added to its counter and a status_change activity is recorded.
// Requesting the current status is a no-op.
func (s *CardService) UpdateStatus(
	ctx context.Context,
	userID, cardID uuid.UUID,
	change StatusChange,
) (*domain.Card, error) {
	if !change.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status "+string(change.Status), domain.ErrInvalidStatus)
	}

	_, meeting, err := s.ownedCard(ctx, "update_status", userID, cardID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("card_id", cardID.String()))
	now := s.opts.now()

	var updated *domain.Card
	changed := false
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txCards := s.cards.WithTx(tx)

		// Re-read inside the transaction so the elapsed time is credited
		// against the stored status clock.
		card, err := txCards.GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		updated = card

		oldStatus := card.Status
		elapsed := lifecycle.ComputeTimeInStatus(card.CurrentStatusSince, now, s.params)
		if !card.TransitionTo(change.Status, now, change.BlockedReason, change.BlockedBy) {
			return nil
		}
		changed = true

		if err := txCards.UpdateStatus(ctx, card); err != nil {
			return err
		}

		activity, err := domain.NewCardActivity(card.ID, domain.ActivityStatusChange, domain.StatusChangeMetadata{
			OldStatus:     oldStatus,
			NewStatus:     card.Status,
			HoursInStatus: float64(elapsed.Minutes) / 60,
			BlockedReason: card.BlockedReason,
		}, now)
		if err != nil {
			return err
		}
		return s.activities.WithTx(tx).Create(ctx, activity)
	})
	if err != nil {
		log.Error("failed to update card status", redact.ErrorAttr(err))
		return nil, s.wrapCardError("update_status", "failed to update status", err)
	}

	if changed {
		log.Info("card status changed", slog.String("status", string(updated.Status)))
		s.invalidate(ctx, meeting)
		s.refreshSeries(ctx, log, meeting)
	}
	return updated, nil
}

// UpdatePriority records a priority chosen by a person. It clears the
// automatic flag and records a priority_change activity with automated=false.
func (s *CardService) UpdatePriority(
	ctx context.Context,
	userID, cardID uuid.UUID,
	priority domain.Priority,
) (*domain.Card, error) {
	if !priority.Valid() {
		return nil, domain.NewValidationError("priority", "unknown priority", domain.ErrInvalidPriority)
	}

	_, meeting, err := s.ownedCard(ctx, "update_priority", userID, cardID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("card_id", cardID.String()))
	now := s.opts.now()

	var updated *domain.Card
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txCards := s.cards.WithTx(tx)

		card, err := txCards.GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		updated = card

		oldPriority := card.Priority
		card.SetPriorityManually(priority, now)
		if err := txCards.UpdatePriority(ctx, card); err != nil {
			return err
		}

		activity, err := domain.NewCardActivity(card.ID, domain.ActivityPriorityChange, domain.PriorityChangeMetadata{
			Automated:   false,
			OldPriority: oldPriority,
			NewPriority: priority,
		}, now)
		if err != nil {
			return err
		}
		return s.activities.WithTx(tx).Create(ctx, activity)
	})
	if err != nil {
		log.Error("failed to update card priority", redact.ErrorAttr(err))
		return nil, s.wrapCardError("update_priority", "failed to update priority", err)
	}

	log.Info("card priority set", slog.String("priority", priority.String()))
	s.invalidate(ctx, meeting)
	return updated, nil
}

// TimeInStatus reports how long a card has been in its current status.
func (s *CardService) TimeInStatus(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (lifecycle.TimeInStatus, error) {
	card, _, err := s.ownedCard(ctx, "time_in_status", userID, cardID)
	if err != nil {
		return lifecycle.TimeInStatus{}, err
	}
	return lifecycle.ComputeTimeInStatus(card.CurrentStatusSince, s.opts.now(), s.params), nil
}

// Lineage returns the chain of cards a card was carried over from, starting
// with the card itself and ending with the card that first introduced the
// item.
func (s *CardService) Lineage(ctx context.Context, userID, cardID uuid.UUID) ([]*domain.Card, error) {
	card, _, err := s.ownedCard(ctx, "lineage", userID, cardID)
	if err != nil {
		return nil, err
	}

	chain, err := lifecycle.ResolveLineage(ctx, card, s.cards.GetByID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("lineage walk ended early",
			slog.String("card_id", cardID.String()),
			slog.Int("depth", len(chain)),
			redact.ErrorAttr(err))
		if store.IsNotFoundError(err) {
			// A deleted ancestor ends the chain.
			return chain, nil
		}
		return nil, NewServiceError(cardComponent, "lineage", "failed to resolve lineage", err)
	}
	return chain, nil
}

// ownedCard loads a card and its meeting, checking that userID owns the meeting.
func (s *CardService) ownedCard(
	ctx context.Context,
	operation string,
	userID, cardID uuid.UUID,
) (*domain.Card, *domain.Meeting, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, nil, s.wrapCardError(operation, "failed to load card", err)
	}

	meeting, err := s.meetings.GetByID(ctx, card.MeetingID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil, NewServiceError(cardComponent, operation, "meeting lookup", ErrMeetingNotFound)
		}
		return nil, nil, NewServiceError(cardComponent, operation, "failed to load meeting", err)
	}
	if meeting.UserID != userID {
		return nil, nil, NewServiceError(cardComponent, operation, "card lookup", ErrNotOwned)
	}
	return card, meeting, nil
}

func (s *CardService) wrapCardError(operation, message string, err error) error {
	if store.IsNotFoundError(err) {
		return NewServiceError(cardComponent, operation, "card lookup", ErrCardNotFound)
	}
	return NewServiceError(cardComponent, operation, message, err)
}

func (s *CardService) invalidate(ctx context.Context, meeting *domain.Meeting) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, meeting)
	}
}

// refreshSeries recomputes the aggregates of the meeting's series. A failure
// leaves the previous averages in place until the next refresh.
func (s *CardService) refreshSeries(ctx context.Context, log *slog.Logger, meeting *domain.Meeting) {
	if s.opts.refresher == nil || meeting.SeriesID == nil {
		return
	}
	if _, err := s.opts.refresher.RefreshAggregates(ctx, *meeting.SeriesID); err != nil {
		log.Warn("series aggregates not refreshed after status change",
			slog.String("series_id", meeting.SeriesID.String()),
			redact.ErrorAttr(err))
	}
}
