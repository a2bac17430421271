// Package engine wraps the bleve full-text index for the artifact catalog.
// The index is always derived from the catalog database and can be rebuilt
// from it at any time; losing the index loses no data. An Engine is a
// capability handed to the search executor, a deployment without full-text
// search simply never constructs one.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/log"
	"github.com/ebalza/reliquary/pkg/query"
)

var logger = log.ForComponent("engine")

// rebuildBatchSize bounds memory during a full reindex.
const rebuildBatchSize = 500

// Engine owns one bleve index of the artifact catalog.
type Engine struct {
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it with the artifact mapping when it
// does not exist yet.
func Open(path string) (*Engine, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		logger.Infof("creating search index at %s", path)
		index, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index at %s: %w", path, err)
	}
	return &Engine{index: index, path: path}, nil
}

// Path returns the index location on disk.
func (e *Engine) Path() string {
	return e.path
}

func (e *Engine) Close() error {
	return e.index.Close()
}

// document is the indexed shape of an artifact. Field names here must match
// the constants in pkg/query; bleve maps struct fields by their json tags.
type document struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	TitleSort   string   `json:"title_sort"`
	Description string   `json:"description"`
	Culture     string   `json:"culture"`
	Period      string   `json:"period"`
	Site        string   `json:"site"`
	Materials   []string `json:"materials"`
	Tags        []string `json:"tags"`
	DateStart   int      `json:"date_start"`
	DateEnd     int      `json:"date_end"`
	HasModel    bool     `json:"has_model"`
}

func toDocument(a catalog.Artifact) document {
	return document{
		ID:          a.ID,
		Title:       a.Title,
		TitleSort:   strings.ToLower(a.Title),
		Description: a.Description,
		Culture:     a.Culture,
		Period:      a.Period,
		Site:        a.Site,
		Materials:   a.Materials,
		Tags:        a.Tags,
		DateStart:   a.DateStart,
		DateEnd:     a.DateEnd,
		HasModel:    a.HasModel,
	}
}

// buildMapping defines how artifact fields are analyzed. Title and
// description get full-text analysis; the categorical fields are keyword so
// facet terms match exactly; title_sort is a case-folded keyword copy of the
// title used only for A-Z ordering, matching the case-insensitive collation
// of the catalog listing.
func buildMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	analyzed := bleve.NewTextFieldMapping()
	analyzed.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(query.FieldTitle, analyzed)
	docMapping.AddFieldMappingsAt(query.FieldDescription, analyzed)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(query.FieldTitleSort, exact)
	docMapping.AddFieldMappingsAt(query.FieldCulture, exact)
	docMapping.AddFieldMappingsAt(query.FieldPeriod, exact)
	docMapping.AddFieldMappingsAt(query.FieldSite, exact)
	docMapping.AddFieldMappingsAt(query.FieldMaterials, exact)
	docMapping.AddFieldMappingsAt(query.FieldTags, exact)

	numeric := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt(query.FieldID, numeric)
	docMapping.AddFieldMappingsAt(query.FieldDateStart, numeric)
	docMapping.AddFieldMappingsAt(query.FieldDateEnd, numeric)

	boolean := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt(query.FieldHasModel, boolean)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// DocID returns the index document id for an artifact id.
func DocID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseDocID converts an index hit id back to an artifact id.
func ParseDocID(docID string) (int64, error) {
	return strconv.ParseInt(docID, 10, 64)
}

// Index adds or replaces one artifact in the index.
func (e *Engine) Index(a catalog.Artifact) error {
	if err := e.index.Index(DocID(a.ID), toDocument(a)); err != nil {
		return fmt.Errorf("indexing artifact %d: %w", a.ID, err)
	}
	return nil
}

// Delete removes one artifact from the index. Deleting an absent document is
// not an error.
func (e *Engine) Delete(id int64) error {
	if err := e.index.Delete(DocID(id)); err != nil {
		return fmt.Errorf("removing artifact %d from index: %w", id, err)
	}
	return nil
}

// Rebuild reindexes every artifact in the store in batches and returns how
// many documents were written. Existing documents are overwritten; callers
// that need to drop documents of deleted artifacts should remove the index
// directory and Open it fresh first.
func (e *Engine) Rebuild(store *catalog.Store) (int, error) {
	batch := e.index.NewBatch()
	count := 0

	err := store.ForEachArtifact(func(a catalog.Artifact) error {
		if err := batch.Index(DocID(a.ID), toDocument(a)); err != nil {
			return fmt.Errorf("batching artifact %d: %w", a.ID, err)
		}
		count++
		if batch.Size() >= rebuildBatchSize {
			if err := e.index.Batch(batch); err != nil {
				return fmt.Errorf("writing index batch: %w", err)
			}
			batch.Reset()
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	if batch.Size() > 0 {
		if err := e.index.Batch(batch); err != nil {
			return count, fmt.Errorf("writing final index batch: %w", err)
		}
	}

	logger.Infof("reindexed %d artifacts", count)
	return count, nil
}

// Search runs a compiled request against the index.
func (e *Engine) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return e.index.Search(req)
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() (uint64, error) {
	return e.index.DocCount()
}
