// Package catalog holds the artifact domain model and its SQLite-backed
// store. The catalog database is the system of record; the search engine
// index is always derived from it.
package catalog

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced artifact or image does not exist.
var ErrNotFound = errors.New("not found")

// Artifact is a catalogued physical or archival object. DateStart/DateEnd
// are signed years (negative = BCE) spanning the object's dating.
type Artifact struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Culture     string    `json:"culture"`
	Period      string    `json:"period"`
	Site        string    `json:"site"`
	Region      string    `json:"region"`
	Materials   []string  `json:"materials"`
	Tags        []string  `json:"tags"`
	DateStart   int       `json:"dateStart"`
	DateEnd     int       `json:"dateEnd"`
	HasModel    bool      `json:"has3dModel"`
	ModelURL    string    `json:"modelUrl,omitempty"`
	ModelType   string    `json:"modelType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Image is one photograph of an artifact. Images are displayed in SortOrder;
// at most one image per artifact is flagged primary.
type Image struct {
	ID         int64  `json:"id"`
	ArtifactID int64  `json:"artifactId"`
	URL        string `json:"url"`
	Primary    bool   `json:"primary"`
	SortOrder  int    `json:"sortOrder"`
}

// EnrichedArtifact is an artifact joined with its image URLs at query time.
// PrimaryImageURL is the first image flagged primary, else the first image
// in sort order, else empty.
type EnrichedArtifact struct {
	Artifact
	ImageURLs       []string `json:"imageUrls"`
	PrimaryImageURL string   `json:"primaryImageUrl,omitempty"`
}

// Enrich joins an artifact with its images. The images must already be in
// their defined sort order (ImagesForArtifact guarantees this).
func Enrich(a Artifact, images []Image) EnrichedArtifact {
	enriched := EnrichedArtifact{Artifact: a, ImageURLs: make([]string, 0, len(images))}
	for _, img := range images {
		enriched.ImageURLs = append(enriched.ImageURLs, img.URL)
		if img.Primary && enriched.PrimaryImageURL == "" {
			enriched.PrimaryImageURL = img.URL
		}
	}
	if enriched.PrimaryImageURL == "" && len(enriched.ImageURLs) > 0 {
		enriched.PrimaryImageURL = enriched.ImageURLs[0]
	}
	return enriched
}

// Stats summarizes the catalog for the stats command.
type Stats struct {
	Artifacts int
	Images    int
	Cultures  int
	Materials int
	Tags      int
	WithModel int
	Oldest    *int
	Newest    *int
}
