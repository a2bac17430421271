package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/engine"
	"github.com/ebalza/reliquary/pkg/filterstate"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return store
}

func seedCatalog(t *testing.T, store *catalog.Store) {
	t.Helper()
	artifacts := []catalog.Artifact{
		{
			Title: "Bronze Axe Head", Description: "Votive axe head",
			Culture: "Roman", Period: "Imperial", Site: "Pompeii",
			Materials: []string{"bronze"}, Tags: []string{"weapon"},
			DateStart: -100, DateEnd: 100, HasModel: true,
		},
		{
			Title: "Clay Amphora", Description: "Storage vessel for wine",
			Culture: "Greek", Period: "Classical", Site: "Athens",
			Materials: []string{"clay"}, Tags: []string{"vessel"},
			DateStart: -450, DateEnd: -400,
		},
		{
			Title: "Iron Axe", Description: "Woodworking axe",
			Culture: "Roman", Period: "Republican", Site: "Ostia",
			Materials: []string{"iron"}, Tags: []string{"tool", "weapon"},
			DateStart: -800, DateEnd: -100,
		},
	}
	for i := range artifacts {
		if _, err := store.CreateArtifact(&artifacts[i]); err != nil {
			t.Fatalf("seeding artifact %q: %v", artifacts[i].Title, err)
		}
	}

	// Artifact 1 gets three images; the second one is flagged primary.
	images := []catalog.Image{
		{ArtifactID: 1, URL: "https://img.example/axe-front.jpg", SortOrder: 1},
		{ArtifactID: 1, URL: "https://img.example/axe-detail.jpg", Primary: true, SortOrder: 2},
		{ArtifactID: 1, URL: "https://img.example/axe-back.jpg", SortOrder: 3},
		{ArtifactID: 2, URL: "https://img.example/amphora.jpg", SortOrder: 1},
	}
	for i := range images {
		if _, err := store.AddImage(&images[i]); err != nil {
			t.Fatalf("seeding image %q: %v", images[i].URL, err)
		}
	}
}

func newTestEngine(t *testing.T, store *catalog.Store) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(filepath.Join(t.TempDir(), "index.bleve"))
	if err != nil {
		t.Fatalf("opening test index: %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Errorf("closing test index: %v", err)
		}
	})
	if _, err := eng.Rebuild(store); err != nil {
		t.Fatalf("building test index: %v", err)
	}
	return eng
}

func TestExecuteEngine(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	exec := NewWithEngine(store, newTestEngine(t, store))

	f := filterstate.Default().
		SetQuery("axe").
		ToggleFacet(filterstate.FacetCultures, "Roman")
	page, err := exec.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("executing: %v", err)
	}

	if page.Degraded {
		t.Error("engine-served page must not be marked degraded")
	}
	if len(page.Ignored) != 0 {
		t.Errorf("engine honors every filter, got ignored %v", page.Ignored)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("got %d items, total %d, want 2 Roman axes", len(page.Items), page.Total)
	}
	if page.TotalPages != 1 {
		t.Errorf("totalPages = %d, want 1", page.TotalPages)
	}
	for _, item := range page.Items {
		if item.Culture != "Roman" {
			t.Errorf("hit %d has culture %q, want Roman", item.ID, item.Culture)
		}
	}
}

func TestExecuteEngineEnrichment(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	exec := NewWithEngine(store, newTestEngine(t, store))

	page, err := exec.Execute(context.Background(), filterstate.Default().SetFlag(true))
	if err != nil {
		t.Fatalf("executing: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("got %d items, want the single modeled artifact", len(page.Items))
	}

	item := page.Items[0]
	wantURLs := []string{
		"https://img.example/axe-front.jpg",
		"https://img.example/axe-detail.jpg",
		"https://img.example/axe-back.jpg",
	}
	if len(item.ImageURLs) != len(wantURLs) {
		t.Fatalf("image urls = %v, want %v", item.ImageURLs, wantURLs)
	}
	for i := range wantURLs {
		if item.ImageURLs[i] != wantURLs[i] {
			t.Errorf("image url %d = %q, want %q", i, item.ImageURLs[i], wantURLs[i])
		}
	}
	if item.PrimaryImageURL != "https://img.example/axe-detail.jpg" {
		t.Errorf("primary image = %q, want the flagged one", item.PrimaryImageURL)
	}
}

func TestExecuteFallback(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	exec := New(store)

	f := filterstate.Default().SetQuery("axe")
	page, err := exec.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("executing: %v", err)
	}

	// No engine configured: not a degradation, but the ignored filters are
	// reported.
	if page.Degraded {
		t.Error("fallback without a configured engine must not be marked degraded")
	}
	if len(page.Ignored) != 1 || page.Ignored[0] != "query" {
		t.Errorf("ignored = %v, want [query]", page.Ignored)
	}

	if page.Total != 3 {
		t.Errorf("total = %d, want the real row count 3", page.Total)
	}
	// relevance degrades to newest first
	if len(page.Items) != 3 || page.Items[0].ID != 3 {
		t.Fatalf("expected newest-first listing, got %v", itemIDs(page))
	}
	if page.Items[0].Tags == nil {
		t.Error("fallback items should carry their tags")
	}
}

func TestExecuteFallbackPagination(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	exec := New(store)

	f := filterstate.Default().SetSort(filterstate.SortDateAsc)
	f.PageSize = 2
	f = f.SetPage(2)

	page, err := exec.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("executing: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Errorf("total %d pages %d, want 3 rows over 2 pages", page.Total, page.TotalPages)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 1 {
		t.Fatalf("page 2 = %v, want the latest-starting artifact [1]", itemIDs(page))
	}
}

type failingEngine struct{}

func (failingEngine) Search(*bleve.SearchRequest) (*bleve.SearchResult, error) {
	return nil, errors.New("index corrupted")
}

func TestExecuteDegradesOnEngineFailure(t *testing.T) {
	store := newTestStore(t)
	seedCatalog(t, store)
	exec := NewWithEngine(store, failingEngine{})

	f := filterstate.Default().ToggleFacet(filterstate.FacetCultures, "Roman")
	page, err := exec.Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("a failing engine should degrade, not error: %v", err)
	}

	if !page.Degraded {
		t.Error("page served by the fallback after an engine failure must be marked degraded")
	}
	if len(page.Ignored) != 1 || page.Ignored[0] != "cultures" {
		t.Errorf("ignored = %v, want [cultures]", page.Ignored)
	}
	if page.Total != 3 {
		t.Errorf("total = %d, want the unfiltered count 3", page.Total)
	}
}

func TestEmptyCatalog(t *testing.T) {
	store := newTestStore(t)
	exec := New(store)

	page, err := exec.Execute(context.Background(), filterstate.Default())
	if err != nil {
		t.Fatalf("executing: %v", err)
	}
	if page.Total != 0 || page.TotalPages != 0 {
		t.Errorf("empty catalog: total %d pages %d, want 0/0", page.Total, page.TotalPages)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("items should be an empty slice, got %v", page.Items)
	}
}

func itemIDs(page *ResultPage) []int64 {
	ids := make([]int64, len(page.Items))
	for i, item := range page.Items {
		ids[i] = item.ID
	}
	return ids
}
