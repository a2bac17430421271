// Package api serves the JSON API for the artifact catalog.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/engine"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/log"
	"github.com/ebalza/reliquary/pkg/search"
)

var logger = log.ForComponent("api")

// Server handles API requests. The engine is nil when full-text search is
// disabled; the write handlers then skip index maintenance and the executor
// answers from the catalog listing.
type Server struct {
	store    *catalog.Store
	executor *search.Executor
	engine   *engine.Engine
	limits   filterstate.Limits
}

// NewServer builds a server. limits carries the configured pagination
// bounds; the zero value falls back to the filterstate defaults.
func NewServer(store *catalog.Store, executor *search.Executor, eng *engine.Engine, limits filterstate.Limits) *Server {
	return &Server{
		store:    store,
		executor: executor,
		engine:   eng,
		limits:   limits,
	}
}

// Handler returns the server's routes wrapped in the standard middleware
// chain: request id, CORS, gzip.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return gzhttp.GzipHandler(CorsMiddleware(RequestIDMiddleware(mux)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// writeValidationError renders a 400 naming every offending field.
func (s *Server) writeValidationError(w http.ResponseWriter, verr *filterstate.ValidationError) {
	response := ValidationErrorResponse{
		Error:   "Invalid parameters",
		Message: verr.Error(),
		Fields:  verr.Fields,
	}
	s.writeJSON(w, http.StatusBadRequest, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware tags each request with an id that is echoed in the
// response and attached to debug logs.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Debugf("request %s: %s %s", id, r.Method, r.URL.Path)

		next.ServeHTTP(w, r)
	})
}
