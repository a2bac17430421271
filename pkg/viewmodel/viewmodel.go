// Package viewmodel shapes a search result for rendering. Every control on
// the search page is a link produced here by applying one state transition
// and re-serializing, so the page never needs client-side state.
package viewmodel

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/search"
)

// Chip is one active filter with a link that removes just that filter.
type Chip struct {
	Label     string
	RemoveURL string
}

// SortLink is one entry of the sort selector.
type SortLink struct {
	Label  string
	Sort   filterstate.Sort
	URL    string
	Active bool
}

// PageItem is one pagination control: a numbered page link or an ellipsis
// gap.
type PageItem struct {
	Number   int
	Ellipsis bool
	Current  bool
	URL      string
}

// Model is everything the search page template needs. Exactly one of
// HasError, IsEmpty and HasResults is true: an error never masquerades as
// zero results.
type Model struct {
	State filterstate.FilterState

	HasError     bool
	ErrorMessage string
	IsEmpty      bool
	HasResults   bool

	Items      []catalog.EnrichedArtifact
	Total      int
	Page       int
	TotalPages int
	Degraded   bool
	Ignored    []string

	Chips    []Chip
	ResetURL string
	Sorts    []SortLink
	Pages    []PageItem
}

// Builder renders models for one mount point.
type Builder struct {
	basePath string
	caser    cases.Caser
}

// NewBuilder returns a builder whose links point at basePath, e.g. "/search".
func NewBuilder(basePath string) *Builder {
	return &Builder{
		basePath: basePath,
		caser:    cases.Title(language.English),
	}
}

func (b *Builder) href(f filterstate.FilterState) string {
	if q := f.EncodeQuery(); q != "" {
		return b.basePath + "?" + q
	}
	return b.basePath
}

var sortLabels = []struct {
	sort  filterstate.Sort
	label string
}{
	{filterstate.SortRelevance, "Relevance"},
	{filterstate.SortDateAsc, "Oldest first"},
	{filterstate.SortDateDesc, "Newest first"},
	{filterstate.SortTitleAZ, "A to Z"},
}

// Build assembles the model for one executed search. A non-nil err wins over
// everything: the result page is ignored and the model carries only the
// error state plus the controls needed to recover (reset link, chips).
func (b *Builder) Build(f filterstate.FilterState, page *search.ResultPage, err error) Model {
	f = f.Normalize()
	m := Model{
		State:    f,
		Chips:    b.chips(f),
		ResetURL: b.href(f.Reset()),
	}

	for _, s := range sortLabels {
		m.Sorts = append(m.Sorts, SortLink{
			Label:  s.label,
			Sort:   s.sort,
			URL:    b.href(f.SetSort(s.sort)),
			Active: f.Sort == s.sort,
		})
	}

	if err != nil {
		m.HasError = true
		m.ErrorMessage = "Search is temporarily unavailable. Try again in a moment."
		return m
	}

	m.Total = page.Total
	m.Page = page.Page
	m.TotalPages = page.TotalPages
	m.Degraded = page.Degraded
	m.Ignored = page.Ignored

	if page.Total == 0 {
		m.IsEmpty = true
		return m
	}

	m.HasResults = true
	m.Items = page.Items
	m.Pages = b.pageSequence(f, page.Page, page.TotalPages)
	return m
}

// chips emits one removable chip per non-default filter field.
func (b *Builder) chips(f filterstate.FilterState) []Chip {
	var chips []Chip

	if f.Query != "" {
		chips = append(chips, Chip{
			Label:     fmt.Sprintf("Search: %q", f.Query),
			RemoveURL: b.href(f.SetQuery("")),
		})
	}
	for _, facet := range []struct {
		facet filterstate.Facet
		label string
	}{
		{filterstate.FacetCultures, "Culture"},
		{filterstate.FacetMaterials, "Material"},
		{filterstate.FacetTags, "Tag"},
	} {
		for _, v := range f.FacetValues(facet.facet) {
			chips = append(chips, Chip{
				Label:     facet.label + ": " + b.caser.String(v),
				RemoveURL: b.href(f.ToggleFacet(facet.facet, v)),
			})
		}
	}
	if !f.IsDefaultDateRange() {
		chips = append(chips, Chip{
			Label:     fmt.Sprintf("Dated %s to %s", FormatYear(f.DateStart), FormatYear(f.DateEnd)),
			RemoveURL: b.href(f.SetDateRange(filterstate.DefaultDateStart, filterstate.DefaultDateEnd)),
		})
	}
	if f.HasModel {
		chips = append(chips, Chip{
			Label:     "Has 3D model",
			RemoveURL: b.href(f.SetFlag(false)),
		})
	}
	if f.Site != "" {
		chips = append(chips, Chip{
			Label:     "Site: " + f.Site,
			RemoveURL: b.href(f.SetSite("")),
		})
	}
	return chips
}

// FormatYear renders a signed year for humans.
func FormatYear(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}

// pageSequence builds the pagination controls. Up to seven pages are listed
// in full; beyond that the sequence is the first page, an ellipsis where
// pages are skipped, up to three pages centered on the current one, and the
// last page. One page or less needs no controls at all.
func (b *Builder) pageSequence(f filterstate.FilterState, current, totalPages int) []PageItem {
	if totalPages <= 1 {
		return nil
	}

	numbers := pageNumbers(current, totalPages)
	items := make([]PageItem, 0, len(numbers)+2)
	prev := 0
	for _, n := range numbers {
		if n > prev+1 {
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{
			Number:  n,
			Current: n == current,
			URL:     b.href(f.SetPage(n)),
		})
		prev = n
	}
	return items
}

// pageNumbers returns the strictly increasing page numbers to display.
func pageNumbers(current, totalPages int) []int {
	if totalPages <= 7 {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	start := current - 1
	end := current + 1
	if start < 2 {
		start = 2
	}
	if end > totalPages-1 {
		end = totalPages - 1
	}

	pages := []int{1}
	for n := start; n <= end; n++ {
		pages = append(pages, n)
	}
	return append(pages, totalPages)
}
