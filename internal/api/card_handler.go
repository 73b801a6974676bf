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

// CardService is the subset of the card service the handlers use.
type CardService interface {
	UpdateStatus(ctx context.Context, userID, cardID uuid.UUID, change service.StatusChange) (*domain.Card, error)
	UpdatePriority(ctx context.Context, userID, cardID uuid.UUID, priority domain.Priority) (*domain.Card, error)
	TimeInStatus(ctx context.Context, userID, cardID uuid.UUID) (lifecycle.TimeInStatus, error)
	Lineage(ctx context.Context, userID, cardID uuid.UUID) ([]*domain.Card, error)
}

// CardHandler handles card HTTP requests.
type CardHandler struct {
	cards  CardService
	logger *slog.Logger
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cards CardService, logger *slog.Logger) *CardHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CardHandler")
	}
	return &CardHandler{
		cards:  cards,
		logger: logger.With(slog.String("component", "card_handler")),
	}
}

// UpdateStatus handles PATCH /api/cards/{id}/status.
func (h *CardHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	card, err := h.cards.UpdateStatus(r.Context(), userID, cardID, service.StatusChange{
		Status:        status,
		BlockedReason: req.BlockedReason,
		BlockedBy:     req.BlockedBy,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update card status")
		return
	}

	log.Debug("card status updated",
		slog.String("card_id", cardID.String()),
		slog.String("status", string(card.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// UpdatePriority handles PATCH /api/cards/{id}/priority. A priority set
// here is manual and clears the automatic escalation flag.
func (h *CardHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdatePriorityRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	card, err := h.cards.UpdatePriority(r.Context(), userID, cardID, priority)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update card priority")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// TimeInStatus handles GET /api/cards/{id}/time-in-status.
func (h *CardHandler) TimeInStatus(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	tis, err := h.cards.TimeInStatus(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get time in status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TimeInStatusResponse{
		CardID:       cardID.String(),
		TimeInStatus: tis,
	})
}

// Lineage handles GET /api/cards/{id}/lineage.
func (h *CardHandler) Lineage(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	lineage, err := h.cards.Lineage(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card lineage")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LineageResponse{
		CardID:  cardID.String(),
		Lineage: nonNil(lineage),
	})
}
