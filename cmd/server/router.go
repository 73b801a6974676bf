package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cadence-api/internal/api"
	apiMiddleware "github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// routeDeps are the collaborators the router mounts.
type routeDeps struct {
	meetings       api.MeetingService
	comparisons    api.ComparisonService
	cards          api.CardService
	escalator      api.Escalator
	verifier       apiMiddleware.TokenVerifier
	gatherer       prometheus.Gatherer
	allowedOrigins []string
}

// setupRouter creates the application router from the application's services.
func (app *application) setupRouter() http.Handler {
	return newRouter(app, routeDeps{
		meetings:       app.meetingService,
		comparisons:    app.comparisonService,
		cards:          app.cardService,
		escalator:      app.escalator,
		verifier:       app.verifier,
		gatherer:       app.registry,
		allowedOrigins: app.config.Server.AllowedOrigins,
	})
}

// newRouter creates and configures the router with all routes and middleware.
func newRouter(app *application, deps routeDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(chimiddleware.Recoverer)

	meetingHandler := api.NewMeetingHandler(deps.meetings, deps.comparisons, app.logger)
	cardHandler := api.NewCardHandler(deps.cards, app.logger)
	jobHandler := api.NewJobHandler(deps.escalator, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.verifier)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/meetings", meetingHandler.CreateMeeting)
		r.Get("/meetings/{id}", meetingHandler.GetMeeting)
		r.Get("/meetings/{id}/cards", meetingHandler.ListCards)
		r.Get("/meetings/{id}/comparison", meetingHandler.Compare)

		r.Patch("/cards/{id}/status", cardHandler.UpdateStatus)
		r.Patch("/cards/{id}/priority", cardHandler.UpdatePriority)
		r.Get("/cards/{id}/time-in-status", cardHandler.TimeInStatus)
		r.Get("/cards/{id}/lineage", cardHandler.Lineage)

		r.Get("/series", meetingHandler.ListSeries)
		r.Get("/series/{id}/meetings", meetingHandler.ListSeriesMeetings)

		r.Post("/jobs/escalate", jobHandler.Escalate)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{}))

	origins := deps.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{apiMiddleware.TraceHeader},
		MaxAge:         86400,
	}).Handler(r)
}
