package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
)

const meetingComponent = "meeting_service"

// CardInput is a proposed card delivered with a new meeting.
// Zero values for Status and Priority mean ToDo and medium.
type CardInput struct {
	Type           string
	Summary        string
	Owner          string
	Status         domain.Status
	Priority       domain.Priority
	DueDate        *time.Time
	Context        string
	InvolvedPeople []string
	BlockedReason  string
	BlockedBy      string
}

// CreateMeetingInput is a meeting and its extracted cards.
type CreateMeetingInput struct {
	UserID uuid.UUID
	Title  string
	Date   time.Time
	Cards  []CardInput
}

// CreateMeetingResult is the meeting as stored after the pipeline ran.
// Series is nil for meetings that are not recurring or could not be linked.
type CreateMeetingResult struct {
	Meeting     *domain.Meeting
	Series      *domain.MeetingSeries
	Cards       []*domain.Card
	CarriedOver []*domain.Card
}

// MeetingService creates meetings and serves their series views.
type MeetingService struct {
	tx         store.Transactor
	meetings   store.MeetingStore
	series     store.SeriesStore
	cards      store.CardStore
	activities store.ActivityStore
	linker     *SeriesLinker
	carryover  *CarryoverEngine
	logger     *slog.Logger
	opts       options
}

// NewMeetingService creates a MeetingService.
// It returns an error if any of the required dependencies are nil.
func NewMeetingService(
	tx store.Transactor,
	meetingStore store.MeetingStore,
	seriesStore store.SeriesStore,
	cardStore store.CardStore,
	activityStore store.ActivityStore,
	linker *SeriesLinker,
	carryover *CarryoverEngine,
	logger *slog.Logger,
	opts ...Option,
) (*MeetingService, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if meetingStore == nil {
		return nil, domain.NewValidationError("meetingStore", "cannot be nil", domain.ErrValidation)
	}
	if seriesStore == nil {
		return nil, domain.NewValidationError("seriesStore", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if activityStore == nil {
		return nil, domain.NewValidationError("activityStore", "cannot be nil", domain.ErrValidation)
	}
	if linker == nil {
		return nil, domain.NewValidationError("linker", "cannot be nil", domain.ErrValidation)
	}
	if carryover == nil {
		return nil, domain.NewValidationError("carryover", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MeetingService{
		tx:         tx,
		meetings:   meetingStore,
		series:     seriesStore,
		cards:      cardStore,
		activities: activityStore,
		linker:     linker,
		carryover:  carryover,
		logger:     logger.With(slog.String("component", meetingComponent)),
		opts:       buildOptions(opts),
	}, nil
}

// CreateMeeting stores a meeting with its cards and then runs the
// meeting-created pipeline: recurrence detection, series linking and
// carryover from the predecessor. Only the initial write can fail the call.
// Linking and carryover failures are logged and leave the meeting unlinked
// or with a carryover count of zero.
func (s *MeetingService) CreateMeeting(ctx context.Context, in CreateMeetingInput) (*CreateMeetingResult, error) {
	now := s.opts.now()

	meeting, err := domain.NewMeeting(in.UserID, in.Title, in.Date, now)
	if err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("meeting_id", meeting.ID.String()),
	)

	cards, err := buildCards(meeting.ID, in.Cards, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.meetings.WithTx(tx).Create(ctx, meeting); err != nil {
			return err
		}
		if len(cards) == 0 {
			return nil
		}
		if err := s.cards.WithTx(tx).CreateMultiple(ctx, cards); err != nil {
			return err
		}

		activities := make([]*domain.CardActivity, 0, len(cards))
		for _, card := range cards {
			activity, err := domain.NewCardActivity(card.ID, domain.ActivityCreated, nil, now)
			if err != nil {
				return err
			}
			activities = append(activities, activity)
		}
		return s.activities.WithTx(tx).CreateMultiple(ctx, activities)
	})
	if err != nil {
		log.Error("failed to create meeting", redact.ErrorAttr(err))
		return nil, NewServiceError(meetingComponent, "create_meeting", "failed to store meeting", err)
	}

	log.Info("meeting created", slog.Int("card_count", len(cards)))
	result := &CreateMeetingResult{Meeting: meeting, Cards: cards}

	detection := lifecycle.DetectRecurrence(meeting.Title)
	s.opts.observer.MeetingLinked(detection.IsRecurring)
	if !detection.IsRecurring {
		return result, nil
	}

	link, err := s.linker.Link(ctx, meeting, detection)
	if err != nil {
		log.Error("series linking failed, meeting left unlinked", redact.ErrorAttr(err))
		return result, nil
	}
	result.Series = link.Series

	if link.Predecessor == nil {
		return result, nil
	}

	carried, err := s.carryover.CarryOver(ctx, meeting.ID, link.Predecessor.ID)
	if err != nil {
		log.Error("carryover failed, continuing without carried cards", redact.ErrorAttr(err))
		return result, nil
	}
	meeting.CarryoverCount = len(carried)
	result.CarriedOver = carried
	if len(carried) == 0 {
		return result, nil
	}

	series, err := s.linker.RefreshAggregates(ctx, link.Series.ID)
	if err != nil {
		log.Warn("series aggregates not refreshed after carryover", redact.ErrorAttr(err))
		return result, nil
	}
	result.Series = series

	return result, nil
}

// GetMeeting returns a meeting owned by userID.
func (s *MeetingService) GetMeeting(ctx context.Context, userID, meetingID uuid.UUID) (*domain.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewServiceError(meetingComponent, "get_meeting", "meeting lookup", ErrMeetingNotFound)
		}
		return nil, NewServiceError(meetingComponent, "get_meeting", "failed to load meeting", err)
	}
	if meeting.UserID != userID {
		return nil, NewServiceError(meetingComponent, "get_meeting", "meeting lookup", ErrNotOwned)
	}
	return meeting, nil
}

// ListCards returns the cards of a meeting owned by userID.
func (s *MeetingService) ListCards(ctx context.Context, userID, meetingID uuid.UUID) ([]*domain.Card, error) {
	if _, err := s.GetMeeting(ctx, userID, meetingID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, NewServiceError(meetingComponent, "list_cards", "failed to load cards", err)
	}
	return cards, nil
}

// ListSeries returns the series of userID, most recently met first.
func (s *MeetingService) ListSeries(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error) {
	series, err := s.series.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError(meetingComponent, "list_series", "failed to load series", err)
	}
	return series, nil
}

// ListSeriesMeetings returns the meetings of a series owned by userID in
// series order.
func (s *MeetingService) ListSeriesMeetings(
	ctx context.Context,
	userID, seriesID uuid.UUID,
) ([]*domain.Meeting, error) {
	series, err := s.series.GetByID(ctx, seriesID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewServiceError(meetingComponent, "list_series_meetings", "series lookup", ErrSeriesNotFound)
		}
		return nil, NewServiceError(meetingComponent, "list_series_meetings", "failed to load series", err)
	}
	if series.UserID != userID {
		return nil, NewServiceError(meetingComponent, "list_series_meetings", "series lookup", ErrNotOwned)
	}

	meetings, err := s.meetings.ListBySeries(ctx, seriesID)
	if err != nil {
		return nil, NewServiceError(meetingComponent, "list_series_meetings", "failed to load meetings", err)
	}
	return meetings, nil
}

// buildCards turns proposed cards into new rows of meetingID.
func buildCards(meetingID uuid.UUID, inputs []CardInput, now time.Time) ([]*domain.Card, error) {
	cards := make([]*domain.Card, 0, len(inputs))
	for i, in := range inputs {
		card, err := domain.NewCard(meetingID, in.Type, in.Summary, now)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}

		card.Owner = in.Owner
		card.DueDate = in.DueDate
		card.Context = in.Context
		card.InvolvedPeople = in.InvolvedPeople
		if in.Priority != 0 {
			card.Priority = in.Priority
		}
		if in.Status != "" {
			card.TransitionTo(in.Status, now, in.BlockedReason, in.BlockedBy)
		}

		if err := card.Validate(); err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}
