package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"repolens/internal/clone"
	"repolens/internal/events"
	"repolens/internal/explore"
	"repolens/internal/github"
	"repolens/internal/identity"
	"repolens/internal/store"
)

// Server exposes the exploration core over HTTP: metadata lookups that
// trigger background work, blocking on-demand exploration, and live event
// streams per repository.
type Server struct {
	Bus      *events.Bus
	Clones   *clone.Orchestrator
	Explorer *explore.Service
	Store    store.ExplorationStore
	GitHub   *github.Client
}

// Router builds the HTTP handler with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/repos/{owner}/{repo}", func(r chi.Router) {
		r.Get("/", s.handleRepo)
		r.Post("/explore", s.handleExplore)
		r.Get("/exploration/{mode}", s.handleStoredExploration)
		r.Get("/events", s.handleEventsSSE)
		r.Get("/events/ws", s.handleEventsWS)
	})

	return r
}

func identityFromRequest(r *http.Request) (identity.Identity, error) {
	return identity.New(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
