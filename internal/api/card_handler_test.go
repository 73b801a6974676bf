package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCard(t *testing.T) *domain.Card {
	t.Helper()
	card, err := domain.NewCard(uuid.New(), "action_item", "Draft the rollout plan", meetingDate)
	require.NoError(t, err)
	return card
}

func TestUpdateStatus(t *testing.T) {
	userID := uuid.New()
	card := newTestCard(t)
	path := "/api/cards/" + card.ID.String() + "/status"

	tests := []struct {
		name            string
		body            any
		serviceErr      error
		expectedStatus  int
		expectedChange  *service.StatusChange
		expectedMessage string
	}{
		{
			name:           "canonical status",
			body:           map[string]string{"status": "InProgress"},
			expectedStatus: http.StatusOK,
			expectedChange: &service.StatusChange{Status: domain.StatusInProgress},
		},
		{
			name:           "label with blocker",
			body:           map[string]string{"status": "blocked", "blocked_reason": "waiting on vendor", "blocked_by": "Acme"},
			expectedStatus: http.StatusOK,
			expectedChange: &service.StatusChange{
				Status:        domain.StatusBlocked,
				BlockedReason: "waiting on vendor",
				BlockedBy:     "Acme",
			},
		},
		{
			name:            "missing status",
			body:            map[string]string{},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid Status: required field",
		},
		{
			name:            "unknown status",
			body:            map[string]string{"status": "Archived"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid status",
		},
		{
			name:            "unknown field",
			body:            map[string]string{"status": "Done", "priority": "high"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid request format",
		},
		{
			name:            "card not found",
			body:            map[string]string{"status": "Done"},
			serviceErr:      service.ErrCardNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "Card not found",
		},
		{
			name:            "concurrent edit",
			body:            map[string]string{"status": "Done"},
			serviceErr:      store.ErrConflict,
			expectedStatus:  http.StatusConflict,
			expectedMessage: "Resource was modified concurrently, retry the request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestHandlers()
			var got *service.StatusChange
			th.cards.UpdateStatusFn = func(_ context.Context, gotUser, gotCard uuid.UUID, change service.StatusChange) (*domain.Card, error) {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, card.ID, gotCard)
				got = &change
				if tt.serviceErr != nil {
					return nil, tt.serviceErr
				}
				updated := *card
				updated.Status = change.Status
				return &updated, nil
			}

			rr := th.do(t, http.MethodPatch, path, userID, tt.body)

			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedChange != nil {
				assert.Equal(t, tt.expectedChange, got)
				assert.Equal(t, tt.expectedChange.Status, decodeBody[domain.Card](t, rr).Status)
			}
			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, decodeBody[shared.ErrorResponse](t, rr).Error)
			}
		})
	}
}

func TestUpdatePriority(t *testing.T) {
	userID := uuid.New()
	card := newTestCard(t)
	path := "/api/cards/" + card.ID.String() + "/priority"

	t.Run("manual priority", func(t *testing.T) {
		th := newTestHandlers()
		th.cards.UpdatePriorityFn = func(_ context.Context, _, _ uuid.UUID, priority domain.Priority) (*domain.Card, error) {
			updated := *card
			updated.Priority = priority
			updated.PriorityAutoUpdated = false
			return &updated, nil
		}

		rr := th.do(t, http.MethodPatch, path, userID, map[string]string{"priority": "urgent"})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"priority":"urgent"`)
		assert.Contains(t, rr.Body.String(), `"priority_auto_updated":false`)
	})

	t.Run("invalid priority", func(t *testing.T) {
		th := newTestHandlers()

		rr := th.do(t, http.MethodPatch, path, userID, map[string]string{"priority": "critical"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid Priority: invalid value", decodeBody[shared.ErrorResponse](t, rr).Error)
	})

	t.Run("card of another user", func(t *testing.T) {
		th := newTestHandlers()
		th.cards.DefaultError = service.ErrNotOwned

		rr := th.do(t, http.MethodPatch, path, userID, map[string]string{"priority": "low"})

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestTimeInStatus(t *testing.T) {
	th := newTestHandlers()
	cardID := uuid.New()
	th.cards.TimeInStatusResult = lifecycle.TimeInStatus{
		Days:    3,
		Hours:   2,
		Display: "3 days",
		Urgency: lifecycle.UrgencyStale,
		IsStale: true,
	}

	rr := th.do(t, http.MethodGet, "/api/cards/"+cardID.String()+"/time-in-status", uuid.New(), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[map[string]any](t, rr)
	assert.Equal(t, cardID.String(), body["card_id"])
	assert.Equal(t, "3 days", body["display"])
	assert.Equal(t, string(lifecycle.UrgencyStale), body["urgency"])
	assert.Equal(t, true, body["is_stale"])
}

func TestLineage(t *testing.T) {
	userID := uuid.New()
	original := newTestCard(t)
	copied := *original
	copied.ID = uuid.New()
	copied.CarriedOver = true
	copied.SourceCardID = &original.ID

	th := newTestHandlers()
	th.cards.LineageResult = []*domain.Card{&copied, original}

	rr := th.do(t, http.MethodGet, "/api/cards/"+copied.ID.String()+"/lineage", userID, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[LineageResponse](t, rr)
	require.Len(t, body.Lineage, 2)
	assert.Equal(t, copied.ID, body.Lineage[0].ID)
	assert.Equal(t, original.ID, body.Lineage[1].ID)
}

func TestCardRoutesRejectInvalidIDs(t *testing.T) {
	th := newTestHandlers()
	userID := uuid.New()

	for _, path := range []string{
		"/api/cards/123/time-in-status",
		"/api/cards/123/lineage",
	} {
		rr := th.do(t, http.MethodGet, path, userID, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.Equal(t, "Invalid id: has invalid format", decodeBody[shared.ErrorResponse](t, rr).Error)
	}
}
