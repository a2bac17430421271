package cmd

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/log"
	"github.com/ebalza/reliquary/pkg/search"
	"github.com/ebalza/reliquary/pkg/viewmodel"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var webLogger = log.ForComponent("web")

// webUI renders the server-side search page. Every control on the page is a
// link or a GET form, so the URL query string carries the whole search state.
type webUI struct {
	store    *catalog.Store
	executor *search.Executor
	builder  *viewmodel.Builder
	limits   filterstate.Limits
	tmpl     *template.Template
}

func newWebUI(store *catalog.Store, executor *search.Executor, limits filterstate.Limits) (*webUI, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": viewmodel.FormatYear,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &webUI{
		store:    store,
		executor: executor,
		builder:  viewmodel.NewBuilder("/search"),
		limits:   limits,
		tmpl:     tmpl,
	}, nil
}

func (ui *webUI) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search", http.StatusFound)
	})
	mux.HandleFunc("GET /search", ui.handleSearchPage)
}

type facetOption struct {
	Label    string
	URL      string
	Selected bool
}

type facetGroup struct {
	Title   string
	Options []facetOption
}

// hiddenParam preserves one non-form filter across a form submit.
type hiddenParam struct {
	Name  string
	Value string
}

type searchPageData struct {
	viewmodel.Model
	Facets    []facetGroup
	DateStart string
	DateEnd   string
	Hidden    []hiddenParam
}

func (ui *webUI) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	f := filterstate.ParseWithLimits(r.URL.Query(), ui.limits)

	page, err := ui.executor.Execute(r.Context(), f)
	if err != nil {
		webLogger.Errorf("search failed: %v", err)
	}
	model := ui.builder.Build(f, page, err)

	data := searchPageData{
		Model:  model,
		Facets: ui.facetGroups(f),
		Hidden: hiddenParams(f),
	}
	if !f.IsDefaultDateRange() {
		data.DateStart = formatInt(f.DateStart)
		data.DateEnd = formatInt(f.DateEnd)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.tmpl.ExecuteTemplate(w, "search.html", data); err != nil {
		webLogger.Errorf("rendering search page: %v", err)
	}
}

// facetGroups loads the facet catalogs and turns each value into a toggle
// link. A failing catalog lookup drops its group from the sidebar instead of
// failing the page.
func (ui *webUI) facetGroups(f filterstate.FilterState) []facetGroup {
	var groups []facetGroup

	for _, def := range []struct {
		title string
		facet filterstate.Facet
		load  func() ([]string, error)
	}{
		{"Cultures", filterstate.FacetCultures, ui.store.DistinctCultures},
		{"Materials", filterstate.FacetMaterials, ui.store.DistinctMaterials},
		{"Tags", filterstate.FacetTags, ui.store.DistinctTags},
	} {
		values, err := def.load()
		if err != nil {
			webLogger.Warnf("loading %s facet: %v", def.title, err)
			continue
		}
		if len(values) == 0 {
			continue
		}

		group := facetGroup{Title: def.title}
		for _, v := range values {
			group.Options = append(group.Options, facetOption{
				Label:    v,
				URL:      href(f.ToggleFacet(def.facet, v)),
				Selected: f.FacetSelected(def.facet, v),
			})
		}
		groups = append(groups, group)
	}
	return groups
}

// hiddenParams carries every serialized filter the search form has no input
// for, so submitting the form keeps the rest of the state.
func hiddenParams(f filterstate.FilterState) []hiddenParam {
	formFields := map[string]bool{
		"query":     true,
		"dateStart": true,
		"dateEnd":   true,
		"page":      true, // a new submit always starts at page 1
	}

	values := f.Serialize()
	var hidden []hiddenParam
	for _, name := range []string{"cultures", "materials", "tags", "has3dModel", "site", "sort", "limit"} {
		if formFields[name] || !values.Has(name) {
			continue
		}
		hidden = append(hidden, hiddenParam{Name: name, Value: values.Get(name)})
	}
	return hidden
}

func href(f filterstate.FilterState) string {
	if q := f.EncodeQuery(); q != "" {
		return "/search?" + q
	}
	return "/search"
}

func formatInt(v int) string {
	return fmt.Sprintf("%d", v)
}
