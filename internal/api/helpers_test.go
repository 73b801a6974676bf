package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/mocks"
	"github.com/stretchr/testify/require"
)

type testHandlers struct {
	meetings    *mocks.MockMeetingService
	comparisons *mocks.MockComparisonService
	cards       *mocks.MockCardService
	escalator   *mocks.MockEscalator
}

func newTestHandlers() *testHandlers {
	return &testHandlers{
		meetings:    &mocks.MockMeetingService{},
		comparisons: &mocks.MockComparisonService{},
		cards:       &mocks.MockCardService{},
		escalator:   &mocks.MockEscalator{},
	}
}

// router mounts the handlers on the same paths the server uses.
func (th *testHandlers) router() http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mh := NewMeetingHandler(th.meetings, th.comparisons, log)
	ch := NewCardHandler(th.cards, log)
	jh := NewJobHandler(th.escalator, log)

	r := chi.NewRouter()
	r.Post("/api/meetings", mh.CreateMeeting)
	r.Get("/api/meetings/{id}", mh.GetMeeting)
	r.Get("/api/meetings/{id}/cards", mh.ListCards)
	r.Get("/api/meetings/{id}/comparison", mh.Compare)
	r.Get("/api/series", mh.ListSeries)
	r.Get("/api/series/{id}/meetings", mh.ListSeriesMeetings)
	r.Patch("/api/cards/{id}/status", ch.UpdateStatus)
	r.Patch("/api/cards/{id}/priority", ch.UpdatePriority)
	r.Get("/api/cards/{id}/time-in-status", ch.TimeInStatus)
	r.Get("/api/cards/{id}/lineage", ch.Lineage)
	r.Post("/api/jobs/escalate", jh.Escalate)
	return r
}

// do serves a request as userID. uuid.Nil sends it unauthenticated.
func (th *testHandlers) do(t *testing.T, method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != uuid.Nil {
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	th.router().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
