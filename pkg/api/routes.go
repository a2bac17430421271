package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API routes with method-specific routing
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/artifacts/{id}", s.HandleGetArtifact)
	mux.HandleFunc("POST /api/artifacts", s.HandleCreateArtifact)
	mux.HandleFunc("PUT /api/artifacts/{id}", s.HandleUpdateArtifact)
	mux.HandleFunc("DELETE /api/artifacts/{id}", s.HandleDeleteArtifact)
	mux.HandleFunc("GET /api/cultures", s.HandleCultures)
	mux.HandleFunc("GET /api/materials", s.HandleMaterials)
	mux.HandleFunc("GET /api/periods", s.HandlePeriods)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
