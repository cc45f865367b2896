package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"morphogen/internal/artifact"
	"morphogen/internal/evolution"
	"morphogen/internal/store"
)

type artifactResponse struct {
	artifact.Artifact
	Properties artifact.Properties `json:"properties"`
}

type evolutionResponse struct {
	ArtifactID uint64            `json:"artifact_id"`
	Artifact   artifact.Artifact `json:"artifact"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.version,
	})
}

// status handles GET /api/v1/status
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Stats())
}

// listArtifacts handles GET /api/v1/artifacts
func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	all := s.engine.Artifacts()
	out := make([]artifactResponse, len(all))
	for i, a := range all {
		out[i] = artifactResponse{Artifact: a, Properties: artifact.PropertiesOf(a.Genome)}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"artifacts": out, "total": len(out)})
}

// getArtifact handles GET /api/v1/artifacts/{id}
func (s *Server) getArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	a, err := s.engine.Artifact(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, artifactResponse{Artifact: a, Properties: artifact.PropertiesOf(a.Genome)})
}

// getProperties handles GET /api/v1/artifacts/{id}/properties
func (s *Server) getProperties(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	p, err := s.engine.Properties(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// getLineage handles GET /api/v1/artifacts/{id}/lineage
func (s *Server) getLineage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	anc, err := s.engine.Lineage(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if anc == nil {
		anc = []artifact.Artifact{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"artifact_id": id, "ancestors": anc})
}

// getMetadata handles GET /api/v1/artifacts/{id}/metadata
func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	md, err := s.engine.Metadata(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, md)
}

// getEvents handles GET /api/v1/artifacts/{id}/events
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.respondError(w, http.StatusNotImplemented, "event journal is disabled")
		return
	}
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	if _, err := s.engine.Artifact(id); err != nil {
		s.respondEngineError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	evs, err := s.journal.Events(r.Context(), store.EventQuery{ArtifactID: id, Limit: limit})
	if err != nil {
		s.logger.Error("Failed to read journal", zap.Uint64("artifact_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"artifact_id": id, "events": evs})
}

// interact handles POST /api/v1/artifacts/{id}/interactions
func (s *Server) interact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}
	out, err := s.engine.Interact(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if !s.checkpoint(w, r) {
		return
	}
	status := http.StatusOK
	if out.Offspring != 0 {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, out)
}

// evolve handles POST /api/v1/evolutions
func (s *Server) evolve(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.Evolve()
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if !s.checkpoint(w, r) {
		return
	}
	a, _ := s.engine.Artifact(id)
	s.respondJSON(w, http.StatusCreated, evolutionResponse{ArtifactID: id, Artifact: a})
}

// getGeneration handles GET /api/v1/generations/{gen}
func (s *Server) getGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := strconv.ParseUint(chi.URLParam(r, "gen"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid generation")
		return
	}
	ids := s.engine.Generation(gen)
	if ids == nil {
		ids = []uint64{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"generation": gen, "artifact_ids": ids})
}

// checkpoint runs the persister. The change is already committed in memory,
// so a failure is reported as unavailable rather than rolled back.
func (s *Server) checkpoint(w http.ResponseWriter, r *http.Request) bool {
	if s.persist == nil {
		return true
	}
	if err := s.persist(r.Context()); err != nil {
		s.logger.Error("Failed to persist state", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "state could not be persisted")
		return false
	}
	return true
}

func (s *Server) artifactID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		s.respondError(w, http.StatusBadRequest, "invalid artifact id")
		return 0, false
	}
	return id, true
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("Engine operation failed", zap.Error(err))
	case errors.Is(err, evolution.ErrInsufficientPopulation):
		// After genesis this means the seeded population cannot breed.
		if st := s.engine.Stats(); st.Seeded {
			s.logger.Error("Population too small to evolve",
				zap.Uint64("total_supply", st.TotalSupply),
				zap.Int("genesis_count", st.GenesisCount),
				zap.Error(err))
		}
	}
	s.respondError(w, status, err.Error())
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, evolution.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, evolution.ErrCadenceNotReached):
		return http.StatusConflict
	case errors.Is(err, evolution.ErrInsufficientPopulation):
		return http.StatusPreconditionFailed
	case errors.Is(err, evolution.ErrAlreadySeeded), errors.Is(err, evolution.ErrInvalidGenesisCount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
