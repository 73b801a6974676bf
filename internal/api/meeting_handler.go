package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/service"
)

// MeetingService is the subset of the meeting service the handlers use.
type MeetingService interface {
	CreateMeeting(ctx context.Context, in service.CreateMeetingInput) (*service.CreateMeetingResult, error)
	GetMeeting(ctx context.Context, userID, meetingID uuid.UUID) (*domain.Meeting, error)
	ListCards(ctx context.Context, userID, meetingID uuid.UUID) ([]*domain.Card, error)
	ListSeries(ctx context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error)
	ListSeriesMeetings(ctx context.Context, userID, seriesID uuid.UUID) ([]*domain.Meeting, error)
}

// ComparisonService compares a meeting with its predecessor.
type ComparisonService interface {
	Compare(ctx context.Context, userID, meetingID uuid.UUID) (*lifecycle.Comparison, error)
}

// MeetingHandler handles meeting and series HTTP requests.
type MeetingHandler struct {
	meetings    MeetingService
	comparisons ComparisonService
	logger      *slog.Logger
}

// NewMeetingHandler creates a new MeetingHandler.
func NewMeetingHandler(
	meetings MeetingService,
	comparisons ComparisonService,
	logger *slog.Logger,
) *MeetingHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for MeetingHandler")
	}
	return &MeetingHandler{
		meetings:    meetings,
		comparisons: comparisons,
		logger:      logger.With(slog.String("component", "meeting_handler")),
	}
}

// CreateMeeting handles POST /api/meetings. The meeting is linked to its
// series and receives carried over cards before the response is written.
func (h *MeetingHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateMeetingRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	in := service.CreateMeetingInput{
		UserID: userID,
		Title:  req.Title,
		Date:   req.Date,
		Cards:  make([]service.CardInput, 0, len(req.Cards)),
	}
	for _, cardReq := range req.Cards {
		card, err := cardReq.toInput()
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		in.Cards = append(in.Cards, card)
	}

	result, err := h.meetings.CreateMeeting(r.Context(), in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create meeting")
		return
	}

	log.Debug("meeting created",
		slog.String("meeting_id", result.Meeting.ID.String()),
		slog.Int("cards", len(result.Cards)),
		slog.Int("carried_over", len(result.CarriedOver)))

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateMeetingResponse{
		Meeting:     result.Meeting,
		Series:      result.Series,
		Cards:       nonNil(result.Cards),
		CarriedOver: nonNil(result.CarriedOver),
	})
}

// GetMeeting handles GET /api/meetings/{id}.
func (h *MeetingHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, meetingID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	meeting, err := h.meetings.GetMeeting(r.Context(), userID, meetingID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get meeting")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, meeting)
}

// ListCards handles GET /api/meetings/{id}/cards.
func (h *MeetingHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, meetingID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	cards, err := h.meetings.ListCards(r.Context(), userID, meetingID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CardsResponse{
		MeetingID: meetingID.String(),
		Cards:     nonNil(cards),
	})
}

// Compare handles GET /api/meetings/{id}/comparison.
func (h *MeetingHandler) Compare(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, meetingID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	comparison, err := h.comparisons.Compare(r.Context(), userID, meetingID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compare meetings")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, comparison)
}

// ListSeries handles GET /api/series.
func (h *MeetingHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, ok := handleUserID(w, r, log)
	if !ok {
		return
	}

	series, err := h.meetings.ListSeries(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list series")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SeriesListResponse{Series: nonNil(series)})
}

// ListSeriesMeetings handles GET /api/series/{id}/meetings.
func (h *MeetingHandler) ListSeriesMeetings(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, seriesID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	meetings, err := h.meetings.ListSeriesMeetings(r.Context(), userID, seriesID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list series meetings")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SeriesMeetingsResponse{
		SeriesID: seriesID.String(),
		Meetings: nonNil(meetings),
	})
}
