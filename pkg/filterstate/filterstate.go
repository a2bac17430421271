// Package filterstate models the active search criteria for the artifact
// catalog. A FilterState round-trips to the URL query string: the query
// string is the only durable representation of a search, which keeps every
// result page bookmarkable and shareable.
//
// Serialization omits default-valued fields, so the default state encodes as
// the empty query string, and parsing tolerates any malformed deep link by
// falling back to defaults per field. The API boundary uses ParseStrict
// instead, which collects validation errors rather than correcting them.
package filterstate

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Defaults and bounds. The date range sentinel pair means "unbounded" for
// this domain and is never serialized.
const (
	DefaultDateStart = -3000
	DefaultDateEnd   = 2000
	DefaultPageSize  = 12
	MaxPageSize      = 100
)

// Limits carries deployment-configured pagination bounds. Zero fields fall
// back to the package defaults, so Limits{} behaves like DefaultLimits().
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the package default pagination bounds.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

// normalized fills in zero fields and keeps the configured maximum within
// the package ceiling, which Normalize enforces regardless.
func (l Limits) normalized() Limits {
	if l.DefaultPageSize < 1 {
		l.DefaultPageSize = DefaultPageSize
	}
	if l.MaxPageSize < 1 || l.MaxPageSize > MaxPageSize {
		l.MaxPageSize = MaxPageSize
	}
	if l.DefaultPageSize > l.MaxPageSize {
		l.DefaultPageSize = l.MaxPageSize
	}
	return l
}

// Clamp bounds a requested page size: non-positive values get the default,
// oversized values get the maximum.
func (l Limits) Clamp(size int) int {
	l = l.normalized()
	if size < 1 {
		return l.DefaultPageSize
	}
	if size > l.MaxPageSize {
		return l.MaxPageSize
	}
	return size
}

// Sort enumerates the supported result orderings.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortDateAsc   Sort = "date_asc"
	SortDateDesc  Sort = "date_desc"
	SortTitleAZ   Sort = "az"
)

// ParseSort validates a sort parameter value.
func ParseSort(s string) (Sort, bool) {
	switch Sort(s) {
	case SortRelevance, SortDateAsc, SortDateDesc, SortTitleAZ:
		return Sort(s), true
	}
	return "", false
}

// Facet names a multi-valued filter dimension.
type Facet string

const (
	FacetCultures  Facet = "cultures"
	FacetMaterials Facet = "materials"
	FacetTags      Facet = "tags"
)

// FilterState is the canonical representation of one committed search.
// Facet slices are kept sorted, deduplicated and free of empty strings;
// values within a facet are OR'd, facets are AND'd against each other.
type FilterState struct {
	Query     string
	Cultures  []string
	Materials []string
	Tags      []string
	DateStart int
	DateEnd   int
	HasModel  bool
	Site      string
	Sort      Sort
	Page      int
	PageSize  int
}

// Default returns the state every search starts from.
func Default() FilterState {
	return FilterState{
		DateStart: DefaultDateStart,
		DateEnd:   DefaultDateEnd,
		Sort:      SortRelevance,
		Page:      1,
		PageSize:  DefaultPageSize,
	}
}

// IsDefaultDateRange reports whether the date range is the unbounded
// sentinel pair.
func (f FilterState) IsDefaultDateRange() bool {
	return f.DateStart == DefaultDateStart && f.DateEnd == DefaultDateEnd
}

// HasFilters reports whether any restriction beyond sort and pagination is
// active.
func (f FilterState) HasFilters() bool {
	return f.Query != "" || len(f.Cultures) > 0 || len(f.Materials) > 0 ||
		len(f.Tags) > 0 || !f.IsDefaultDateRange() || f.HasModel || f.Site != ""
}

// FacetValues returns the selection for the named facet.
func (f FilterState) FacetValues(facet Facet) []string {
	switch facet {
	case FacetCultures:
		return f.Cultures
	case FacetMaterials:
		return f.Materials
	case FacetTags:
		return f.Tags
	}
	return nil
}

// FacetSelected reports whether value is selected in the named facet.
func (f FilterState) FacetSelected(facet Facet, value string) bool {
	for _, v := range f.FacetValues(facet) {
		if v == value {
			return true
		}
	}
	return false
}

// normalizeSet sorts, deduplicates and drops empty tokens.
func normalizeSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize clamps out-of-range values and canonicalizes the facet sets.
// Parse and the transition methods always return normalized states; this is
// exposed so callers constructing a FilterState by hand get the same
// guarantees.
func (f FilterState) Normalize() FilterState {
	f.Query = strings.TrimSpace(f.Query)
	f.Site = strings.TrimSpace(f.Site)
	f.Cultures = normalizeSet(f.Cultures)
	f.Materials = normalizeSet(f.Materials)
	f.Tags = normalizeSet(f.Tags)
	if f.DateStart > f.DateEnd {
		f.DateStart, f.DateEnd = DefaultDateStart, DefaultDateEnd
	}
	if _, ok := ParseSort(string(f.Sort)); !ok {
		f.Sort = SortRelevance
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// splitList normalizes a multi-valued parameter that may arrive comma-joined,
// repeated, or both. Empty tokens are discarded.
func splitList(raw []string) []string {
	var values []string
	for _, v := range raw {
		values = append(values, strings.Split(v, ",")...)
	}
	return normalizeSet(values)
}

// Parse hydrates a FilterState from URL query parameters using the package
// default pagination bounds. It never fails: malformed numeric fields fall
// back to their defaults, unknown parameters are ignored, and an inverted
// date range is replaced by the unbounded default. A bad deep link degrades
// to a broader search, not an error page.
func Parse(values url.Values) FilterState {
	return ParseWithLimits(values, Limits{})
}

// ParseWithLimits is Parse with deployment-configured pagination bounds: the
// configured default page size applies when the limit parameter is absent,
// and the configured maximum caps it.
func ParseWithLimits(values url.Values, limits Limits) FilterState {
	limits = limits.normalized()
	f := Default()
	f.PageSize = limits.DefaultPageSize

	f.Query = strings.TrimSpace(values.Get("query"))
	f.Site = strings.TrimSpace(values.Get("site"))
	f.Cultures = splitList(values["cultures"])
	f.Materials = splitList(values["materials"])
	f.Tags = splitList(values["tags"])

	if v := values.Get("dateStart"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.DateStart = parsed
		}
	}
	if v := values.Get("dateEnd"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.DateEnd = parsed
		}
	}
	if f.DateStart > f.DateEnd {
		f.DateStart, f.DateEnd = DefaultDateStart, DefaultDateEnd
	}

	// Only the literal "true" enables the flag.
	f.HasModel = values.Get("has3dModel") == "true"

	if parsed, ok := ParseSort(values.Get("sort")); ok {
		f.Sort = parsed
	}
	if v := values.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			f.Page = parsed
		}
	}
	if v := values.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			f.PageSize = parsed
		}
	}
	f.PageSize = limits.Clamp(f.PageSize)

	return f
}

// FieldError names one rejected parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected parameter of a request so the
// response can name all offending fields at once.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid search parameters: " + strings.Join(names, ", ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ParseStrict hydrates a FilterState for the API boundary using the package
// default pagination bounds. Unlike Parse it rejects malformed or
// out-of-range values instead of correcting them; the returned
// ValidationError lists every offending field.
func ParseStrict(values url.Values) (FilterState, *ValidationError) {
	return ParseStrictWithLimits(values, Limits{})
}

// ParseStrictWithLimits is ParseStrict with deployment-configured pagination
// bounds; a limit beyond the configured maximum is rejected, not clamped.
func ParseStrictWithLimits(values url.Values, limits Limits) (FilterState, *ValidationError) {
	limits = limits.normalized()
	f := Default()
	f.PageSize = limits.DefaultPageSize
	verr := &ValidationError{}

	f.Query = strings.TrimSpace(values.Get("query"))
	f.Site = strings.TrimSpace(values.Get("site"))
	f.Cultures = splitList(values["cultures"])
	f.Materials = splitList(values["materials"])
	f.Tags = splitList(values["tags"])
	f.HasModel = values.Get("has3dModel") == "true"

	if v := values.Get("dateStart"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.DateStart = parsed
		} else {
			verr.add("dateStart", "must be an integer year")
		}
	}
	if v := values.Get("dateEnd"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.DateEnd = parsed
		} else {
			verr.add("dateEnd", "must be an integer year")
		}
	}
	if f.DateStart > f.DateEnd {
		verr.add("dateStart", "must not be greater than dateEnd")
		verr.add("dateEnd", "must not be less than dateStart")
	}

	if v := values.Get("sort"); v != "" {
		if parsed, ok := ParseSort(v); ok {
			f.Sort = parsed
		} else {
			verr.add("sort", fmt.Sprintf("must be one of %s, %s, %s, %s",
				SortRelevance, SortDateAsc, SortDateDesc, SortTitleAZ))
		}
	}
	if v := values.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			f.Page = parsed
		} else {
			verr.add("page", "must be a positive integer")
		}
	}
	if v := values.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 && parsed <= limits.MaxPageSize {
			f.PageSize = parsed
		} else {
			verr.add("limit", fmt.Sprintf("must be an integer between 1 and %d", limits.MaxPageSize))
		}
	}

	if len(verr.Fields) > 0 {
		return f, verr
	}
	return f, nil
}

// Serialize converts the state back to URL query parameters. Default-valued
// fields are omitted so that parse(serialize(s)) == s.Normalize() and the
// default state serializes to nothing. Facet sets are comma-joined.
func (f FilterState) Serialize() url.Values {
	values := url.Values{}

	if f.Query != "" {
		values.Set("query", f.Query)
	}
	if len(f.Cultures) > 0 {
		values.Set("cultures", strings.Join(f.Cultures, ","))
	}
	if len(f.Materials) > 0 {
		values.Set("materials", strings.Join(f.Materials, ","))
	}
	if len(f.Tags) > 0 {
		values.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.DateStart != DefaultDateStart {
		values.Set("dateStart", strconv.Itoa(f.DateStart))
	}
	if f.DateEnd != DefaultDateEnd {
		values.Set("dateEnd", strconv.Itoa(f.DateEnd))
	}
	if f.HasModel {
		values.Set("has3dModel", "true")
	}
	if f.Site != "" {
		values.Set("site", f.Site)
	}
	if f.Sort != SortRelevance {
		values.Set("sort", string(f.Sort))
	}
	if f.Page != 1 {
		values.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize != DefaultPageSize {
		values.Set("limit", strconv.Itoa(f.PageSize))
	}

	return values
}

// EncodeQuery returns the serialized state as a query string (no leading
// "?").
func (f FilterState) EncodeQuery() string {
	return f.Serialize().Encode()
}

// Transitions. Each returns a new state; the receiver is never mutated, so
// states double as immutable keys for link generation. Every transition
// except SetPage resets pagination to the first page: a changed filter makes
// the old page offset meaningless.

func cloneSet(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func (f FilterState) clone() FilterState {
	f.Cultures = cloneSet(f.Cultures)
	f.Materials = cloneSet(f.Materials)
	f.Tags = cloneSet(f.Tags)
	return f
}

// ToggleFacet adds value to the facet's selection if absent, removes it if
// present.
func (f FilterState) ToggleFacet(facet Facet, value string) FilterState {
	out := f.clone()
	value = strings.TrimSpace(value)
	if value == "" {
		return out
	}

	toggle := func(set []string) []string {
		for i, v := range set {
			if v == value {
				return normalizeSet(append(set[:i], set[i+1:]...))
			}
		}
		return normalizeSet(append(set, value))
	}

	switch facet {
	case FacetCultures:
		out.Cultures = toggle(out.Cultures)
	case FacetMaterials:
		out.Materials = toggle(out.Materials)
	case FacetTags:
		out.Tags = toggle(out.Tags)
	default:
		return out
	}
	out.Page = 1
	return out
}

// SetQuery replaces the free-text term.
func (f FilterState) SetQuery(query string) FilterState {
	out := f.clone()
	out.Query = strings.TrimSpace(query)
	out.Page = 1
	return out
}

// SetDateRange replaces the date window. An inverted range restores the
// unbounded default.
func (f FilterState) SetDateRange(start, end int) FilterState {
	out := f.clone()
	if start > end {
		start, end = DefaultDateStart, DefaultDateEnd
	}
	out.DateStart, out.DateEnd = start, end
	out.Page = 1
	return out
}

// SetFlag sets the has-3D-model restriction.
func (f FilterState) SetFlag(hasModel bool) FilterState {
	out := f.clone()
	out.HasModel = hasModel
	out.Page = 1
	return out
}

// SetSite replaces the excavation site restriction.
func (f FilterState) SetSite(site string) FilterState {
	out := f.clone()
	out.Site = strings.TrimSpace(site)
	out.Page = 1
	return out
}

// SetSort replaces the result ordering.
func (f FilterState) SetSort(s Sort) FilterState {
	out := f.clone()
	if _, ok := ParseSort(string(s)); ok {
		out.Sort = s
	}
	out.Page = 1
	return out
}

// SetPage moves to another page of the same search. This is the only
// transition that preserves the page number it is given.
func (f FilterState) SetPage(page int) FilterState {
	out := f.clone()
	if page < 1 {
		page = 1
	}
	out.Page = page
	return out
}

// Reset restores all defaults. The state is rebuilt, not patched.
func (f FilterState) Reset() FilterState {
	return Default()
}

// Equal compares two states field by field.
func (f FilterState) Equal(other FilterState) bool {
	return f.EncodeQuery() == other.EncodeQuery()
}
