package cmd

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/search"
)

func newTestUI(t *testing.T) (*webUI, *http.ServeMux) {
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

	ui, err := newWebUI(store, search.New(store), filterstate.Limits{})
	if err != nil {
		t.Fatalf("creating web ui: %v", err)
	}
	mux := http.NewServeMux()
	ui.RegisterRoutes(mux)
	return ui, mux
}

func seedUI(t *testing.T, ui *webUI) {
	t.Helper()
	artifacts := []catalog.Artifact{
		{Title: "Bronze Axe Head", Culture: "Roman", Materials: []string{"bronze"}, DateStart: -100, DateEnd: 100},
		{Title: "Clay Amphora", Culture: "Greek", Materials: []string{"clay"}, DateStart: -450, DateEnd: -400},
	}
	for i := range artifacts {
		if _, err := ui.store.CreateArtifact(&artifacts[i]); err != nil {
			t.Fatalf("seeding artifact: %v", err)
		}
	}
}

func get(t *testing.T, mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchPageRenders(t *testing.T) {
	ui, mux := newTestUI(t)
	seedUI(t, ui)

	rec := get(t, mux, "/search")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Bronze Axe Head", "Clay Amphora", "2 artifacts", "Cultures"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSearchPageEmptyState(t *testing.T) {
	_, mux := newTestUI(t)

	body := get(t, mux, "/search").Body.String()
	if !strings.Contains(body, "No artifacts found") {
		t.Error("empty catalog should render the empty state")
	}
}

func TestSearchPageChips(t *testing.T) {
	ui, mux := newTestUI(t)
	seedUI(t, ui)

	body := get(t, mux, "/search?cultures=Roman&query=axe").Body.String()
	for _, want := range []string{"Culture: Roman", "Clear all"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing chip %q", want)
		}
	}
}

func TestRootRedirectsToSearch(t *testing.T) {
	_, mux := newTestUI(t)

	rec := get(t, mux, "/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/search" {
		t.Errorf("status %d location %q, want redirect to /search", rec.Code, rec.Header().Get("Location"))
	}
}
