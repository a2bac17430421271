// Package search executes compiled filter states against the catalog. The
// executor prefers the full-text engine and degrades to a plain catalog
// listing when the engine is absent or failing; a degraded response says so
// instead of pretending the filters were applied.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/engine"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/log"
	"github.com/ebalza/reliquary/pkg/query"
)

// ErrBackendUnavailable marks an engine failure. The executor handles it by
// degrading to the fallback; it only escapes when the fallback fails too.
var ErrBackendUnavailable = errors.New("search backend unavailable")

// Engine is the index capability the executor needs. *engine.Engine
// implements it; tests substitute failing stubs.
type Engine interface {
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)
}

// ResultPage is one page of search results.
type ResultPage struct {
	Items      []catalog.EnrichedArtifact `json:"items"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"pageSize"`
	Total      int                        `json:"total"`
	TotalPages int                        `json:"totalPages"`

	// Degraded is set when the engine was configured but failed and this
	// page came from the fallback instead.
	Degraded bool `json:"degraded,omitempty"`
	// Ignored names the filters the answering backend could not honor.
	Ignored []string `json:"ignoredFilters,omitempty"`
}

// Executor runs searches against the catalog, using the engine when one was
// provided.
type Executor struct {
	store  *catalog.Store
	engine Engine
	logger *log.Logger
}

// New returns an executor without full-text search; every request uses the
// catalog listing.
func New(store *catalog.Store) *Executor {
	return NewWithEngine(store, nil)
}

// NewWithEngine returns an executor backed by the full-text engine.
func NewWithEngine(store *catalog.Store, engine Engine) *Executor {
	return &Executor{
		store:  store,
		engine: engine,
		logger: log.ForComponent("search"),
	}
}

// Execute runs one search. Engine failures degrade to the fallback for this
// request only; the next request tries the engine again.
func (e *Executor) Execute(ctx context.Context, f filterstate.FilterState) (*ResultPage, error) {
	f = f.Normalize()

	d := query.Compile(f, e.engine != nil)
	if d.Mode == query.ModeEngine {
		page, err := e.executeEngine(ctx, f, d.Engine)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, ErrBackendUnavailable) {
			return nil, err
		}
		e.logger.Warnf("degrading to catalog listing: %v", err)
		d = query.Compile(f, false)
		page, err = e.executeFallback(ctx, f, d.Fallback)
		if err != nil {
			return nil, err
		}
		page.Degraded = true
		return page, nil
	}

	return e.executeFallback(ctx, f, d.Fallback)
}

func (e *Executor) executeEngine(ctx context.Context, f filterstate.FilterState, req *bleve.SearchRequest) (*ResultPage, error) {
	res, err := e.engine.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := engine.ParseDocID(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("parsing hit id %q: %w", hit.ID, err)
		}
		ids = append(ids, id)
	}

	byID, err := e.store.GetArtifactsByIDs(ids)
	if err != nil {
		return nil, err
	}

	// Preserve hit order. A hit missing from the catalog means the index is
	// stale; skip it rather than failing the page.
	artifacts := make([]catalog.Artifact, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			e.logger.Warnf("indexed artifact %d missing from catalog, reindex recommended", id)
			continue
		}
		artifacts = append(artifacts, *a)
	}

	items, err := e.enrich(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	return newResultPage(f, items, int(res.Total)), nil
}

func (e *Executor) executeFallback(ctx context.Context, f filterstate.FilterState, fb query.Fallback) (*ResultPage, error) {
	artifacts, err := e.store.ListArtifacts(fb.Sort, fb.Descending, fb.Limit, fb.Offset)
	if err != nil {
		return nil, err
	}
	total, err := e.store.CountArtifacts()
	if err != nil {
		return nil, err
	}

	items, err := e.enrich(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	page := newResultPage(f, items, total)
	page.Ignored = fb.Ignored
	return page, nil
}

// enrich joins each artifact with its images. Lookups fan out concurrently,
// one per artifact so the bound is the page size, and land in indexed slots
// so the output keeps the input order.
func (e *Executor) enrich(ctx context.Context, artifacts []catalog.Artifact) ([]catalog.EnrichedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]catalog.EnrichedArtifact, len(artifacts))
	errs := make([]error, len(artifacts))

	var wg sync.WaitGroup
	for i, a := range artifacts {
		wg.Add(1)
		go func(i int, a catalog.Artifact) {
			defer wg.Done()
			images, err := e.store.ImagesForArtifact(a.ID)
			if err != nil {
				errs[i] = fmt.Errorf("loading images for artifact %d: %w", a.ID, err)
				return
			}
			items[i] = catalog.Enrich(a, images)
		}(i, a)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func newResultPage(f filterstate.FilterState, items []catalog.EnrichedArtifact, total int) *ResultPage {
	totalPages := 0
	if total > 0 {
		totalPages = (total + f.PageSize - 1) / f.PageSize
	}
	if items == nil {
		items = []catalog.EnrichedArtifact{}
	}
	return &ResultPage{
		Items:      items,
		Page:       f.Page,
		PageSize:   f.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
