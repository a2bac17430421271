package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/viewmodel"
)

var (
	statsTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	statsLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Width(18)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog and index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(c.String("config"))
		},
	}
}

// showStats displays catalog statistics
func showStats(configPath string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	fmt.Println(statsTitleStyle.Render("Reliquary Catalog"))
	fmt.Println(statsBoxStyle.Render(formatStats(stats)))

	if a.engine != nil {
		docs, err := a.engine.DocCount()
		if err != nil {
			return fmt.Errorf("getting index stats: %w", err)
		}
		line := statsLabelStyle.Render("Indexed") + fmt.Sprintf("%d documents", docs)
		if int(docs) != stats.Artifacts {
			line += " (out of step with the catalog, run 'reliquary index')"
		}
		fmt.Println(statsBoxStyle.Render(line))
	}

	return nil
}

func formatStats(stats *catalog.Stats) string {
	var b strings.Builder
	rows := []struct {
		label string
		value string
	}{
		{"Artifacts", fmt.Sprintf("%d", stats.Artifacts)},
		{"Images", fmt.Sprintf("%d", stats.Images)},
		{"Cultures", fmt.Sprintf("%d", stats.Cultures)},
		{"Materials", fmt.Sprintf("%d", stats.Materials)},
		{"Tags", fmt.Sprintf("%d", stats.Tags)},
		{"With 3D model", fmt.Sprintf("%d", stats.WithModel)},
	}
	if stats.Oldest != nil && stats.Newest != nil {
		rows = append(rows, struct {
			label string
			value string
		}{"Dated", fmt.Sprintf("%s to %s",
			viewmodel.FormatYear(*stats.Oldest), viewmodel.FormatYear(*stats.Newest))})
	}

	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(statsLabelStyle.Render(row.label))
		b.WriteString(row.value)
	}
	return b.String()
}
