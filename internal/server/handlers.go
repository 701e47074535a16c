package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"repolens/internal/explore"
)

// handleRepo serves the metadata snapshot and kicks off background work:
// the clone, and a first-pass exploration when no recent record exists.
func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	meta := map[string]json.RawMessage{}
	fetch := func(name string, f func() (json.RawMessage, error)) {
		data, err := f()
		if err != nil {
			// Metadata lookups degrade independently; the snapshot
			// just omits the failed field.
			log.Warn().Err(err).Str("repo", id.Key()).Str("field", name).Msg("metadata fetch failed")
			return
		}
		meta[name] = data
	}
	fetch("info", func() (json.RawMessage, error) { return s.GitHub.GetRepoInfo(ctx, id) })
	fetch("contributors", func() (json.RawMessage, error) { return s.GitHub.GetContributors(ctx, id) })
	fetch("key_files", func() (json.RawMessage, error) { return s.GitHub.GetKeyFiles(ctx, id) })
	fetch("stats", func() (json.RawMessage, error) { return s.GitHub.GetStats(ctx, id) })
	fetch("icon", func() (json.RawMessage, error) { return s.GitHub.GetIcon(ctx, id) })

	if len(meta) > 0 {
		if basic, err := json.Marshal(meta); err == nil {
			if err := s.Store.SaveBasic(id, basic); err != nil {
				log.Warn().Err(err).Str("repo", id.Key()).Msg("basic snapshot write failed")
			}
		}
	}

	s.Clones.InBackground(id)
	if !s.Store.HasRecent(id, explore.FirstPass.Name, explore.DefaultMaxAgeHours) {
		s.Explorer.ExploreInBackground(id, explore.FirstPass)
	}

	respondJSON(w, http.StatusOK, meta)
}

// handleExplore runs (or reuses) an exploration for a named mode and blocks
// until the result is available.
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	modeName := r.URL.Query().Get("mode")
	if modeName == "" {
		modeName = explore.General.Name
	}
	mode, ok := explore.ModeByName(modeName)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown mode: "+modeName)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	result, err := s.Explorer.Explore(r.Context(), id, mode, force)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleStoredExploration serves the durable record for (identity, mode).
func (s *Server) handleStoredExploration(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	modeName := chi.URLParam(r, "mode")
	if _, ok := explore.ModeByName(modeName); !ok {
		respondError(w, http.StatusBadRequest, "unknown mode: "+modeName)
		return
	}
	rec, ok, err := s.Store.Load(id, modeName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no exploration stored for "+id.Key()+"/"+modeName)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
