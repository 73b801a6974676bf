package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
	"github.com/phrazzld/cadence-api/internal/store"
)

const comparisonComponent = "comparison_service"

// ComparisonCache stores computed comparisons keyed by the current meeting.
// The redis package provides the production implementation.
type ComparisonCache interface {
	// Get returns the cached comparison for meetingID, reporting false on a miss.
	Get(ctx context.Context, meetingID uuid.UUID) (*lifecycle.Comparison, bool, error)

	// Set stores the comparison for meetingID.
	Set(ctx context.Context, meetingID uuid.UUID, comparison *lifecycle.Comparison) error

	// Invalidate drops the cached comparisons of the given meetings.
	Invalidate(ctx context.Context, meetingIDs ...uuid.UUID) error
}

// noopCache never holds anything.
type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*lifecycle.Comparison, bool, error) {
	return nil, false, nil
}
func (noopCache) Set(context.Context, uuid.UUID, *lifecycle.Comparison) error { return nil }
func (noopCache) Invalidate(context.Context, ...uuid.UUID) error               { return nil }

// ComparisonService compares a meeting with the previous meeting of its series.
type ComparisonService struct {
	meetings store.MeetingStore
	cards    store.CardStore
	cache    ComparisonCache
	params   *lifecycle.Params
	logger   *slog.Logger
	opts     options
}

// NewComparisonService creates a ComparisonService. cache may be nil, in
// which case every comparison is computed from the store.
func NewComparisonService(
	meetingStore store.MeetingStore,
	cardStore store.CardStore,
	cache ComparisonCache,
	params *lifecycle.Params,
	logger *slog.Logger,
	opts ...Option,
) (*ComparisonService, error) {
	if meetingStore == nil {
		return nil, domain.NewValidationError("meetingStore", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if cache == nil {
		cache = noopCache{}
	}
	if params == nil {
		params = lifecycle.NewDefaultParams()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ComparisonService{
		meetings: meetingStore,
		cards:    cardStore,
		cache:    cache,
		params:   params,
		logger:   logger.With(slog.String("component", comparisonComponent)),
		opts:     buildOptions(opts),
	}, nil
}

// Compare diffs meetingID against its predecessor. It returns
// ErrMeetingNotFound, ErrNotOwned when userID does not own the meeting, and
// ErrNoPredecessor when the meeting has no previous meeting to compare with.
func (s *ComparisonService) Compare(
	ctx context.Context,
	userID, meetingID uuid.UUID,
) (*lifecycle.Comparison, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("meeting_id", meetingID.String()),
	)

	current, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewServiceError(comparisonComponent, "compare", "meeting lookup", ErrMeetingNotFound)
		}
		return nil, NewServiceError(comparisonComponent, "compare", "failed to load meeting", err)
	}
	if current.UserID != userID {
		return nil, NewServiceError(comparisonComponent, "compare", "meeting lookup", ErrNotOwned)
	}

	cached, ok, err := s.cache.Get(ctx, meetingID)
	if err != nil {
		log.Warn("comparison cache read failed", redact.ErrorAttr(err))
	} else if ok {
		s.opts.observer.ComparisonServed(true)
		return cached, nil
	}

	if current.PreviousMeetingID == nil {
		return nil, NewServiceError(comparisonComponent, "compare", "meeting lookup", ErrNoPredecessor)
	}
	previous, err := s.meetings.GetByID(ctx, *current.PreviousMeetingID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewServiceError(comparisonComponent, "compare", "previous meeting lookup", ErrNoPredecessor)
		}
		return nil, NewServiceError(comparisonComponent, "compare", "failed to load previous meeting", err)
	}

	currentCards, err := s.cards.ListByMeeting(ctx, current.ID)
	if err != nil {
		return nil, NewServiceError(comparisonComponent, "compare", "failed to load cards", err)
	}
	previousCards, err := s.cards.ListByMeeting(ctx, previous.ID)
	if err != nil {
		return nil, NewServiceError(comparisonComponent, "compare", "failed to load previous cards", err)
	}

	comparison := lifecycle.Compare(
		lifecycle.MeetingSnapshot{Meeting: current, Cards: currentCards},
		lifecycle.MeetingSnapshot{Meeting: previous, Cards: previousCards},
		s.params,
	)

	if err := s.cache.Set(ctx, meetingID, comparison); err != nil {
		log.Warn("comparison cache write failed", redact.ErrorAttr(err))
	}
	s.opts.observer.ComparisonServed(false)

	log.Debug("computed meeting comparison",
		slog.String("previous_meeting_id", previous.ID.String()),
		slog.Int("insights", len(comparison.Insights)))

	return comparison, nil
}

// Invalidate drops cached comparisons that include meeting. A meeting's
// cards appear in its own comparison and in its successor's.
func (s *ComparisonService) Invalidate(ctx context.Context, meeting *domain.Meeting) {
	ids := []uuid.UUID{meeting.ID}
	if meeting.NextMeetingID != nil {
		ids = append(ids, *meeting.NextMeetingID)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("comparison cache invalidation failed",
			slog.String("meeting_id", meeting.ID.String()),
			redact.ErrorAttr(err))
	}
}
