package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/service"
)

// Escalator runs one escalation pass over all open cards.
type Escalator interface {
	Run(ctx context.Context) *service.EscalationReport
}

// JobHandler exposes background jobs for manual triggering.
type JobHandler struct {
	escalator Escalator
	logger    *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(escalator Escalator, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}
	return &JobHandler{
		escalator: escalator,
		logger:    logger.With(slog.String("component", "job_handler")),
	}
}

// Escalate handles POST /api/jobs/escalate. The run is synchronous and the
// response carries the counts of the report.
func (h *JobHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)

	if _, ok := handleUserID(w, r, log); !ok {
		return
	}

	report := h.escalator.Run(r.Context())
	log.Info("manual escalation run finished",
		slog.Int("success", report.Success()),
		slog.Int("failed", report.Failed()),
		slog.Int("skipped", report.Skipped()))

	shared.RespondWithJSON(w, r, http.StatusOK, NewEscalationResponse(report))
}
