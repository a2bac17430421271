package engine

import (
	"path/filepath"
	"testing"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/query"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "index.bleve"))
	if err != nil {
		t.Fatalf("opening test index: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("closing test index: %v", err)
		}
	})
	return e
}

func testArtifacts() []catalog.Artifact {
	return []catalog.Artifact{
		{
			ID: 1, Title: "Bronze Axe Head", Description: "Votive axe head",
			Culture: "Roman", Period: "Imperial", Site: "Pompeii",
			Materials: []string{"bronze"}, Tags: []string{"weapon"},
			DateStart: -100, DateEnd: 100, HasModel: true,
		},
		{
			ID: 2, Title: "Clay Amphora", Description: "Storage vessel for wine",
			Culture: "Greek", Period: "Classical", Site: "Athens",
			Materials: []string{"clay"}, Tags: []string{"vessel"},
			DateStart: -450, DateEnd: -400,
		},
		{
			ID: 3, Title: "Iron Axe", Description: "Woodworking axe",
			Culture: "Roman", Period: "Republican", Site: "Ostia",
			Materials: []string{"iron"}, Tags: []string{"tool", "weapon"},
			DateStart: -800, DateEnd: -100,
		},
		// Same date_start as artifact 2, for the ordering tie-break.
		{
			ID: 4, Title: "Silver Mirror", Description: "Hand mirror with engraved back",
			Culture: "Etruscan", Period: "Archaic", Site: "Tarquinia",
			Materials: []string{"silver"}, Tags: []string{"toiletry"},
			DateStart: -450, DateEnd: -350,
		},
	}
}

func indexAll(t *testing.T, e *Engine) {
	t.Helper()
	for _, a := range testArtifacts() {
		if err := e.Index(a); err != nil {
			t.Fatalf("indexing artifact %d: %v", a.ID, err)
		}
	}
}

func hitIDs(t *testing.T, e *Engine, f filterstate.FilterState) []int64 {
	t.Helper()
	d := query.Compile(f, true)
	res, err := e.Search(d.Engine)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := ParseDocID(hit.ID)
		if err != nil {
			t.Fatalf("parsing hit id %q: %v", hit.ID, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestTextSearch(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	ids := hitIDs(t, e, filterstate.Default().SetQuery("axe"))
	if len(ids) != 2 {
		t.Fatalf("query 'axe' matched %v, want artifacts 1 and 3", ids)
	}
	for _, id := range ids {
		if id != 1 && id != 3 {
			t.Errorf("unexpected hit %d", id)
		}
	}
}

func TestFacetFilterIsExact(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	ids := hitIDs(t, e, filterstate.Default().ToggleFacet(filterstate.FacetCultures, "Roman"))
	if len(ids) != 2 {
		t.Fatalf("culture Roman matched %v, want artifacts 1 and 3", ids)
	}

	// Facet terms are keyword-analyzed, a lowercase term must not match.
	ids = hitIDs(t, e, filterstate.Default().ToggleFacet(filterstate.FacetCultures, "roman"))
	if len(ids) != 0 {
		t.Fatalf("lowercase culture term matched %v, want no hits", ids)
	}
}

func TestFacetsCombine(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	f := filterstate.Default().
		ToggleFacet(filterstate.FacetCultures, "Roman").
		ToggleFacet(filterstate.FacetMaterials, "bronze")
	ids := hitIDs(t, e, f)
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("Roman AND bronze matched %v, want [1]", ids)
	}
}

func TestDateRangeContainedWithin(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	// Only artifact 1 (-100..100) is fully contained in -200..200. Artifact 3
	// starts at -800 and must not match even though its range overlaps.
	ids := hitIDs(t, e, filterstate.Default().SetDateRange(-200, 200))
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("date range -200..200 matched %v, want [1]", ids)
	}
}

func TestModelFlagAndSite(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	ids := hitIDs(t, e, filterstate.Default().SetFlag(true))
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("has3dModel matched %v, want [1]", ids)
	}

	ids = hitIDs(t, e, filterstate.Default().SetSite("Athens"))
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("site Athens matched %v, want [2]", ids)
	}
}

func TestSortOrders(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	// Artifacts 2 and 4 share date_start -450; the id tie-break must keep
	// them in ascending id order under both date sorts.
	tests := []struct {
		name string
		sort filterstate.Sort
		want []int64
	}{
		{"date ascending with id tie-break", filterstate.SortDateAsc, []int64{3, 2, 4, 1}},
		{"date descending with id tie-break", filterstate.SortDateDesc, []int64{1, 2, 4, 3}},
		{"alphabetical", filterstate.SortTitleAZ, []int64{1, 2, 3, 4}},
		{"relevance without query is newest first", filterstate.SortRelevance, []int64{4, 3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := hitIDs(t, e, filterstate.Default().SetSort(tt.sort))
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range tt.want {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestDeleteAndDocCount(t *testing.T) {
	e := newTestEngine(t)
	indexAll(t, e)

	count, err := e.DocCount()
	if err != nil {
		t.Fatalf("doc count: %v", err)
	}
	if count != 4 {
		t.Fatalf("doc count = %d, want 4", count)
	}

	if err := e.Delete(2); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	count, err = e.DocCount()
	if err != nil {
		t.Fatalf("doc count: %v", err)
	}
	if count != 3 {
		t.Fatalf("doc count after delete = %d, want 3", count)
	}
}

func TestSortAlphabeticalIgnoresCase(t *testing.T) {
	e := newTestEngine(t)
	for _, a := range []catalog.Artifact{
		{ID: 1, Title: "alpha vessel", DateStart: -100, DateEnd: 100},
		{ID: 2, Title: "Beta Urn", DateStart: -100, DateEnd: 100},
	} {
		if err := e.Index(a); err != nil {
			t.Fatalf("indexing artifact %d: %v", a.ID, err)
		}
	}

	// Raw byte order would put "Beta Urn" before "alpha vessel"; the sort
	// key is case-folded so the order matches the catalog's NOCASE listing.
	ids := hitIDs(t, e, filterstate.Default().SetSort(filterstate.SortTitleAZ))
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("alphabetical order = %v, want [1 2]", ids)
	}
}
