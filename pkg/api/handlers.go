package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	f, verr := filterstate.ParseStrictWithLimits(r.URL.Query(), s.limits)
	if verr != nil {
		s.writeValidationError(w, verr)
		return
	}

	page, err := s.executor.Execute(r.Context(), f)
	if err != nil {
		logger.Errorf("search failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Search failed", "Could not execute the search")
		return
	}

	response := SearchResponse{
		Artifacts: page.Items,
		Pagination: Pagination{
			Page:       page.Page,
			Limit:      page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
		Degraded: page.Degraded,
		Ignored:  page.Ignored,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) artifactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Artifact id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}

	artifact, err := s.store.GetArtifact(id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Artifact not found", "No artifact with that id")
		return
	}
	if err != nil {
		logger.Errorf("loading artifact %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load artifact", "Could not load the artifact")
		return
	}

	images, err := s.store.ImagesForArtifact(id)
	if err != nil {
		logger.Errorf("loading images for artifact %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load artifact", "Could not load the artifact's images")
		return
	}

	s.writeJSON(w, http.StatusOK, catalog.Enrich(*artifact, images))
}

func (s *Server) HandleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var artifact catalog.Artifact
	if err := json.NewDecoder(r.Body).Decode(&artifact); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", "Request body must be a JSON artifact")
		return
	}
	if artifact.Title == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid artifact", "Title is required")
		return
	}

	if _, err := s.store.CreateArtifact(&artifact); err != nil {
		logger.Errorf("creating artifact: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create artifact", "Could not store the artifact")
		return
	}
	s.updateIndex(artifact)

	created, err := s.store.GetArtifact(artifact.ID)
	if err != nil {
		logger.Errorf("reloading artifact %d: %v", artifact.ID, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to create artifact", "Could not reload the artifact")
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) HandleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}

	var artifact catalog.Artifact
	if err := json.NewDecoder(r.Body).Decode(&artifact); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", "Request body must be a JSON artifact")
		return
	}
	if artifact.Title == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid artifact", "Title is required")
		return
	}
	artifact.ID = id

	err := s.store.UpdateArtifact(&artifact)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Artifact not found", "No artifact with that id")
		return
	}
	if err != nil {
		logger.Errorf("updating artifact %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to update artifact", "Could not store the artifact")
		return
	}
	s.updateIndex(artifact)

	updated, err := s.store.GetArtifact(id)
	if err != nil {
		logger.Errorf("reloading artifact %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to update artifact", "Could not reload the artifact")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) HandleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.artifactID(w, r)
	if !ok {
		return
	}

	err := s.store.DeleteArtifact(id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Artifact not found", "No artifact with that id")
		return
	}
	if err != nil {
		logger.Errorf("deleting artifact %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete artifact", "Could not delete the artifact")
		return
	}

	if s.engine != nil {
		if err := s.engine.Delete(id); err != nil {
			logger.Warnf("removing artifact %d from index: %v", id, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// updateIndex keeps the engine in step with a write. Index errors are logged,
// not returned: the catalog row is the source of truth and the index can be
// rebuilt.
func (s *Server) updateIndex(artifact catalog.Artifact) {
	if s.engine == nil {
		return
	}
	if err := s.engine.Index(artifact); err != nil {
		logger.Warnf("indexing artifact %d: %v", artifact.ID, err)
	}
}

func (s *Server) HandleCultures(w http.ResponseWriter, r *http.Request) {
	s.handleValues(w, s.store.DistinctCultures)
}

func (s *Server) HandleMaterials(w http.ResponseWriter, r *http.Request) {
	s.handleValues(w, s.store.DistinctMaterials)
}

func (s *Server) HandlePeriods(w http.ResponseWriter, r *http.Request) {
	s.handleValues(w, s.store.DistinctPeriods)
}

func (s *Server) handleValues(w http.ResponseWriter, load func() ([]string, error)) {
	values, err := load()
	if err != nil {
		logger.Errorf("loading facet values: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load values", "Could not load the facet values")
		return
	}
	s.writeJSON(w, http.StatusOK, ValuesResponse{Values: values, Count: len(values)})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
