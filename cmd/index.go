package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/config"
	"github.com/ebalza/reliquary/pkg/engine"
)

// IndexCommand creates the index command
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Rebuild the search index from the catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "fresh",
				Usage: "Delete the existing index first so documents of removed artifacts are dropped",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return rebuildIndex(c.String("config"), c.Bool("fresh"))
		},
	}
}

func rebuildIndex(configPath string, fresh bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Engine.Enabled {
		return fmt.Errorf("search engine is disabled in the configuration")
	}

	store, err := catalog.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close catalog: %v\n", err)
		}
	}()

	if fresh {
		if err := os.RemoveAll(cfg.IndexPath); err != nil {
			return fmt.Errorf("removing existing index: %w", err)
		}
	}

	eng, err := engine.Open(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("opening search index: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			fmt.Printf("Warning: failed to close search index: %v\n", err)
		}
	}()

	count, err := eng.Rebuild(store)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("Indexed %d artifacts into %s\n", count, cfg.IndexPath)
	return nil
}
