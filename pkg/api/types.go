package api

import (
	"time"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Fields  []filterstate.FieldError `json:"fields"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type SearchResponse struct {
	Artifacts  []catalog.EnrichedArtifact `json:"artifacts"`
	Pagination Pagination                 `json:"pagination"`
	Degraded   bool                       `json:"degraded,omitempty"`
	Ignored    []string                   `json:"ignoredFilters,omitempty"`
}

type ValuesResponse struct {
	Values []string `json:"values"`
	Count  int      `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
