// Package query compiles a FilterState into an executable search request.
// The compiler targets two backends with very different capabilities: the
// bleve full-text engine, which honors every filter, and the relational
// fallback, which only sorts and paginates. Callers receive an opaque
// Descriptor and hand it to the executor; the descriptor records which
// filters the chosen backend had to ignore so degradation is visible, never
// silent.
package query

import (
	"github.com/blevesearch/bleve/v2"
	searchquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
)

// Index field names. These must match the document mapping the engine
// registers for artifacts.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldTitleSort   = "title_sort"
	FieldDescription = "description"
	FieldCulture     = "culture"
	FieldPeriod      = "period"
	FieldSite        = "site"
	FieldMaterials   = "materials"
	FieldTags        = "tags"
	FieldDateStart   = "date_start"
	FieldDateEnd     = "date_end"
	FieldHasModel    = "has_model"
)

// Mode selects the backend a Descriptor targets.
type Mode int

const (
	ModeEngine Mode = iota
	ModeFallback
)

// Fallback describes a relational listing: one whitelisted sort column,
// offset/limit pagination, nothing else. Ignored names every filter of the
// originating state the fallback cannot honor.
type Fallback struct {
	Sort       catalog.SortField
	Descending bool
	Limit      int
	Offset     int
	Ignored    []string
}

// Descriptor is a compiled search request for exactly one backend.
type Descriptor struct {
	Mode     Mode
	Engine   *bleve.SearchRequest
	Fallback Fallback
}

// Ignored returns the filters the descriptor's backend will not honor. Empty
// for engine descriptors.
func (d Descriptor) Ignored() []string {
	if d.Mode == ModeFallback {
		return d.Fallback.Ignored
	}
	return nil
}

// Compile turns a filter state into a request for the engine when it is
// available, or for the relational fallback otherwise.
func Compile(f filterstate.FilterState, engineAvailable bool) Descriptor {
	f = f.Normalize()
	if engineAvailable {
		return Descriptor{Mode: ModeEngine, Engine: compileEngine(f)}
	}
	return Descriptor{Mode: ModeFallback, Fallback: compileFallback(f)}
}

// textFields are the fields a free-text term matches against, with title and
// description weighted above the categorical fields.
var textFields = []struct {
	name  string
	boost float64
}{
	{FieldTitle, 3},
	{FieldDescription, 2},
	{FieldCulture, 1},
	{FieldPeriod, 1},
	{FieldMaterials, 1},
	{FieldSite, 1},
	{FieldTags, 1},
}

func compileEngine(f filterstate.FilterState) *bleve.SearchRequest {
	var clauses []searchquery.Query

	if f.Query != "" {
		matches := make([]searchquery.Query, 0, len(textFields))
		for _, field := range textFields {
			m := bleve.NewMatchQuery(f.Query)
			m.SetField(field.name)
			m.SetBoost(field.boost)
			m.SetFuzziness(1)
			matches = append(matches, m)
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(matches...))
	}

	// Values within a facet are OR'd; facets AND against each other by
	// joining the enclosing conjunction.
	for _, facet := range []struct {
		field  string
		values []string
	}{
		{FieldCulture, f.Cultures},
		{FieldMaterials, f.Materials},
		{FieldTags, f.Tags},
	} {
		if len(facet.values) == 0 {
			continue
		}
		terms := make([]searchquery.Query, 0, len(facet.values))
		for _, v := range facet.values {
			t := bleve.NewTermQuery(v)
			t.SetField(facet.field)
			terms = append(terms, t)
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(terms...))
	}

	if !f.IsDefaultDateRange() {
		// Contained-within semantics: the artifact's entire dating must
		// fall inside the requested window, so its start bounds from
		// below and its end bounds from above.
		inclusive := true
		start := float64(f.DateStart)
		end := float64(f.DateEnd)

		fromStart := bleve.NewNumericRangeInclusiveQuery(&start, nil, &inclusive, nil)
		fromStart.SetField(FieldDateStart)
		clauses = append(clauses, fromStart)

		toEnd := bleve.NewNumericRangeInclusiveQuery(nil, &end, nil, &inclusive)
		toEnd.SetField(FieldDateEnd)
		clauses = append(clauses, toEnd)
	}

	if f.HasModel {
		b := bleve.NewBoolFieldQuery(true)
		b.SetField(FieldHasModel)
		clauses = append(clauses, b)
	}

	if f.Site != "" {
		t := bleve.NewTermQuery(f.Site)
		t.SetField(FieldSite)
		clauses = append(clauses, t)
	}

	var q searchquery.Query
	if len(clauses) == 0 {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewConjunctionQuery(clauses...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = f.PageSize
	req.From = (f.Page - 1) * f.PageSize
	req.SortBy(engineSort(f))
	return req
}

// engineSort returns the bleve sort order for a state. Every ordering
// carries an ascending id tie-break so pagination is stable across requests.
func engineSort(f filterstate.FilterState) []string {
	switch f.Sort {
	case filterstate.SortDateAsc:
		return []string{FieldDateStart, FieldID}
	case filterstate.SortDateDesc:
		return []string{"-" + FieldDateStart, FieldID}
	case filterstate.SortTitleAZ:
		return []string{FieldTitleSort, FieldID}
	default:
		if f.Query == "" {
			// Relevance is meaningless without a query term; fall back
			// to newest-first.
			return []string{"-" + FieldID}
		}
		return []string{"-_score", FieldID}
	}
}

func compileFallback(f filterstate.FilterState) Fallback {
	fb := Fallback{
		Limit:  f.PageSize,
		Offset: (f.Page - 1) * f.PageSize,
	}

	switch f.Sort {
	case filterstate.SortDateAsc:
		fb.Sort = catalog.SortByDateStart
	case filterstate.SortDateDesc:
		fb.Sort, fb.Descending = catalog.SortByDateStart, true
	case filterstate.SortTitleAZ:
		fb.Sort = catalog.SortByTitle
	default:
		fb.Sort, fb.Descending = catalog.SortByID, true
	}

	if f.Query != "" {
		fb.Ignored = append(fb.Ignored, "query")
	}
	if len(f.Cultures) > 0 {
		fb.Ignored = append(fb.Ignored, "cultures")
	}
	if len(f.Materials) > 0 {
		fb.Ignored = append(fb.Ignored, "materials")
	}
	if len(f.Tags) > 0 {
		fb.Ignored = append(fb.Ignored, "tags")
	}
	if !f.IsDefaultDateRange() {
		fb.Ignored = append(fb.Ignored, "dateRange")
	}
	if f.HasModel {
		fb.Ignored = append(fb.Ignored, "has3dModel")
	}
	if f.Site != "" {
		fb.Ignored = append(fb.Ignored, "site")
	}

	return fb
}
