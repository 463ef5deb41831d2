// Package api exposes the assistant over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hawkaii/raahi-assistant/internal/assistant"
)

// Readiness reports whether the runtime finished wiring its dependencies.
type Readiness interface {
	Ready() bool
}

// Handlers holds the HTTP layer's dependencies.
type Handlers struct {
	orchestrator *assistant.Orchestrator
	ready        Readiness
	log          *slog.Logger
}

func NewHandlers(orchestrator *assistant.Orchestrator, ready Readiness, log *slog.Logger) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		ready:        ready,
		log:          log.With(slog.String("component", "api")),
	}
}

// Router builds the full route tree.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/assistant", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/query-with-audio", h.QueryWithAudio)
		r.Get("/audio/{cacheKey}", h.Audio)
		r.Delete("/session/{sessionID}", h.DeleteSession)
	})

	return r
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Ready handles GET /readyz.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ready != nil && !h.ready.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"starting"}`))
		return
	}
	w.Write([]byte(`{"status":"ready"}`))
}
