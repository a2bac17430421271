package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/viewmodel"
)

var (
	resultTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	resultMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	degradedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the artifact catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Free-text query",
			},
			&cli.StringSliceFlag{
				Name:  "culture",
				Usage: "Filter by culture. Can be used multiple times",
			},
			&cli.StringSliceFlag{
				Name:  "material",
				Usage: "Filter by material. Can be used multiple times",
			},
			&cli.StringSliceFlag{
				Name:  "tag",
				Usage: "Filter by tag. Can be used multiple times",
			},
			&cli.StringFlag{
				Name:  "site",
				Usage: "Filter by excavation site",
			},
			&cli.IntFlag{
				Name:  "date-start",
				Usage: "Earliest year of the dating window (negative = BCE)",
				Value: filterstate.DefaultDateStart,
			},
			&cli.IntFlag{
				Name:  "date-end",
				Usage: "Latest year of the dating window",
				Value: filterstate.DefaultDateEnd,
			},
			&cli.BoolFlag{
				Name:  "has-model",
				Usage: "Only artifacts with a 3D model",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort order: relevance, date_asc, date_desc, az",
				Value: string(filterstate.SortRelevance),
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Results per page",
				Value: filterstate.DefaultPageSize,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchCatalog(ctx, c)
		},
	}
}

func searchCatalog(ctx context.Context, c *cli.Command) error {
	sort, ok := filterstate.ParseSort(c.String("sort"))
	if !ok {
		return fmt.Errorf("unknown sort order %q", c.String("sort"))
	}

	f := filterstate.FilterState{
		Query:     c.String("query"),
		Cultures:  c.StringSlice("culture"),
		Materials: c.StringSlice("material"),
		Tags:      c.StringSlice("tag"),
		Site:      c.String("site"),
		DateStart: c.Int("date-start"),
		DateEnd:   c.Int("date-end"),
		HasModel:  c.Bool("has-model"),
		Sort:      sort,
		Page:      c.Int("page"),
		PageSize:  c.Int("limit"),
	}.Normalize()

	a, err := openApp(c.String("config"))
	if err != nil {
		return err
	}
	defer a.Close()

	// The configured pagination bounds win over the flag default.
	limits := a.limits()
	if !c.IsSet("limit") {
		f.PageSize = 0
	}
	f.PageSize = limits.Clamp(f.PageSize)

	page, err := a.executor().Execute(ctx, f)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if page.Degraded {
		fmt.Println(degradedStyle.Render("Search engine unavailable, showing an unfiltered catalog listing."))
	}
	if len(page.Ignored) > 0 {
		fmt.Println(degradedStyle.Render("Ignored filters: " + strings.Join(page.Ignored, ", ")))
	}

	if page.Total == 0 {
		fmt.Println("No artifacts found")
		return nil
	}

	for i, item := range page.Items {
		n := (page.Page-1)*page.PageSize + i + 1
		fmt.Printf("%d. %s\n", n, resultTitleStyle.Render(item.Title))
		fmt.Printf("   %s\n", resultMetaStyle.Render(describeArtifact(item.Artifact)))
	}
	fmt.Printf("\nPage %d of %d (%d artifacts)\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func describeArtifact(a catalog.Artifact) string {
	parts := []string{}
	if a.Culture != "" {
		parts = append(parts, a.Culture)
	}
	if a.Period != "" {
		parts = append(parts, a.Period)
	}
	if a.Site != "" {
		parts = append(parts, a.Site)
	}
	parts = append(parts, fmt.Sprintf("%s to %s",
		viewmodel.FormatYear(a.DateStart), viewmodel.FormatYear(a.DateEnd)))
	if len(a.Materials) > 0 {
		parts = append(parts, strings.Join(a.Materials, ", "))
	}
	if a.HasModel {
		parts = append(parts, "3D model")
	}
	return strings.Join(parts, " | ")
}
