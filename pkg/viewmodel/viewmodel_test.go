package viewmodel

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/search"
)

func resultPage(total, page, pageSize int) *search.ResultPage {
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	items := []catalog.EnrichedArtifact{}
	n := total - (page-1)*pageSize
	if n > pageSize {
		n = pageSize
	}
	for i := 0; i < n; i++ {
		items = append(items, catalog.EnrichedArtifact{
			Artifact: catalog.Artifact{ID: int64((page-1)*pageSize + i + 1)},
		})
	}
	return &search.ResultPage{
		Items: items, Page: page, PageSize: pageSize,
		Total: total, TotalPages: totalPages,
	}
}

func TestStatesAreMutuallyExclusive(t *testing.T) {
	b := NewBuilder("/search")
	f := filterstate.Default()

	tests := []struct {
		name string
		page *search.ResultPage
		err  error
		want string
	}{
		{"error", resultPage(5, 1, 12), errors.New("boom"), "error"},
		{"empty", resultPage(0, 1, 12), nil, "empty"},
		{"results", resultPage(5, 1, 12), nil, "results"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := b.Build(f, tt.page, tt.err)
			states := map[string]bool{
				"error":   m.HasError,
				"empty":   m.IsEmpty,
				"results": m.HasResults,
			}
			for name, active := range states {
				if name == tt.want && !active {
					t.Errorf("expected %s state", name)
				}
				if name != tt.want && active {
					t.Errorf("state %s active alongside %s", name, tt.want)
				}
			}
		})
	}
}

func TestErrorNeverRendersAsZeroResults(t *testing.T) {
	b := NewBuilder("/search")
	m := b.Build(filterstate.Default(), nil, errors.New("engine down"))

	if !m.HasError || m.IsEmpty {
		t.Fatal("an error must render the error state, not an empty result list")
	}
	if m.ErrorMessage == "" {
		t.Error("error state needs a message")
	}
	if len(m.Items) != 0 {
		t.Errorf("error state carries no items, got %d", len(m.Items))
	}
}

func TestChips(t *testing.T) {
	b := NewBuilder("/search")
	f := filterstate.Default().
		SetQuery("axe").
		ToggleFacet(filterstate.FacetCultures, "Roman").
		ToggleFacet(filterstate.FacetMaterials, "bronze").
		SetDateRange(-500, 200).
		SetFlag(true).
		SetSite("Pompeii")

	m := b.Build(f, resultPage(3, 1, 12), nil)
	if len(m.Chips) != 6 {
		t.Fatalf("got %d chips, want one per active filter: %+v", len(m.Chips), m.Chips)
	}

	labels := make([]string, len(m.Chips))
	for i, c := range m.Chips {
		labels[i] = c.Label
	}
	want := []string{
		`Search: "axe"`,
		"Culture: Roman",
		"Material: Bronze",
		"Dated 500 BCE to 200 CE",
		"Has 3D model",
		"Site: Pompeii",
	}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("chip labels = %v, want %v", labels, want)
	}
}

func TestChipRemovalDropsOnlyItsFilter(t *testing.T) {
	b := NewBuilder("/search")
	f := filterstate.Default().
		SetQuery("axe").
		ToggleFacet(filterstate.FacetCultures, "Roman").
		SetPage(3)

	m := b.Build(f, resultPage(40, 3, 12), nil)

	var cultureChip *Chip
	for i := range m.Chips {
		if m.Chips[i].Label == "Culture: Roman" {
			cultureChip = &m.Chips[i]
		}
	}
	if cultureChip == nil {
		t.Fatalf("no culture chip in %+v", m.Chips)
	}

	u, err := url.Parse(cultureChip.RemoveURL)
	if err != nil {
		t.Fatalf("parsing remove url: %v", err)
	}
	removed := filterstate.Parse(u.Query())
	if removed.FacetSelected(filterstate.FacetCultures, "Roman") {
		t.Error("remove link still selects the culture")
	}
	if removed.Query != "axe" {
		t.Errorf("remove link dropped the query too: %+v", removed)
	}
	if removed.Page != 1 {
		t.Errorf("removing a filter must return to page 1, got %d", removed.Page)
	}
}

func TestSortLinks(t *testing.T) {
	b := NewBuilder("/search")
	f := filterstate.Default().SetQuery("axe").SetSort(filterstate.SortDateAsc)
	m := b.Build(f, resultPage(3, 1, 12), nil)

	if len(m.Sorts) != 4 {
		t.Fatalf("got %d sort links, want 4", len(m.Sorts))
	}
	for _, s := range m.Sorts {
		if s.Active != (s.Sort == filterstate.SortDateAsc) {
			t.Errorf("sort %s active=%v", s.Sort, s.Active)
		}
		if !strings.Contains(s.URL, "query=axe") {
			t.Errorf("sort link %s lost the query: %s", s.Sort, s.URL)
		}
	}
}

func TestPageSequence(t *testing.T) {
	tests := []struct {
		name       string
		current    int
		totalPages int
		want       []int // 0 marks an ellipsis
	}{
		{"single page has no controls", 1, 1, nil},
		{"no results", 1, 0, nil},
		{"few pages listed in full", 2, 7, []int{1, 2, 3, 4, 5, 6, 7}},
		{"middle of a long run", 5, 10, []int{1, 0, 4, 5, 6, 0, 10}},
		{"near the start", 2, 10, []int{1, 2, 3, 0, 10}},
		{"at the start", 1, 10, []int{1, 2, 0, 10}},
		{"near the end", 9, 10, []int{1, 0, 8, 9, 10}},
		{"at the end", 10, 10, []int{1, 0, 9, 10}},
	}

	b := NewBuilder("/search")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := b.pageSequence(filterstate.Default().SetPage(tt.current), tt.current, tt.totalPages)
			var got []int
			for _, item := range items {
				if item.Ellipsis {
					got = append(got, 0)
				} else {
					got = append(got, item.Number)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sequence = %v, want %v", got, tt.want)
			}

			prev := 0
			for _, item := range items {
				if item.Ellipsis {
					continue
				}
				if item.Number <= prev {
					t.Errorf("page numbers not strictly increasing: %v", got)
				}
				prev = item.Number
				if item.Current != (item.Number == tt.current) {
					t.Errorf("page %d current=%v", item.Number, item.Current)
				}
			}
		})
	}
}

func TestPageLinksKeepFilters(t *testing.T) {
	b := NewBuilder("/search")
	f := filterstate.Default().SetQuery("axe").SetPage(5)
	m := b.Build(f, resultPage(120, 5, 12), nil)

	for _, item := range m.Pages {
		if item.Ellipsis {
			continue
		}
		u, err := url.Parse(item.URL)
		if err != nil {
			t.Fatalf("parsing page url: %v", err)
		}
		state := filterstate.Parse(u.Query())
		if state.Query != "axe" {
			t.Errorf("page %d link lost the query", item.Number)
		}
		if state.Page != item.Number {
			t.Errorf("page %d link points at page %d", item.Number, state.Page)
		}
	}
}

func TestDegradationSurfaces(t *testing.T) {
	b := NewBuilder("/search")
	page := resultPage(3, 1, 12)
	page.Degraded = true
	page.Ignored = []string{"cultures"}

	m := b.Build(filterstate.Default().ToggleFacet(filterstate.FacetCultures, "Roman"), page, nil)
	if !m.Degraded {
		t.Error("degradation flag lost")
	}
	if !reflect.DeepEqual(m.Ignored, []string{"cultures"}) {
		t.Errorf("ignored = %v", m.Ignored)
	}
}
