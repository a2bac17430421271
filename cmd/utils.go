package cmd

import (
	"fmt"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/config"
	"github.com/ebalza/reliquary/pkg/engine"
	"github.com/ebalza/reliquary/pkg/filterstate"
	"github.com/ebalza/reliquary/pkg/search"
)

// app bundles the components a command needs: config, catalog store and,
// when enabled, the search engine.
type app struct {
	cfg    *config.Config
	store  *catalog.Store
	engine *engine.Engine
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := catalog.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	a := &app{cfg: cfg, store: store}
	if cfg.Engine.Enabled {
		eng, err := engine.Open(cfg.IndexPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening search index: %w", err)
		}
		a.engine = eng
	}
	return a, nil
}

func (a *app) Close() {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			fmt.Printf("Warning: failed to close search index: %v\n", err)
		}
	}
	if err := a.store.Close(); err != nil {
		fmt.Printf("Warning: failed to close catalog: %v\n", err)
	}
}

// limits exposes the configured pagination bounds; zero config values fall
// back to the filterstate defaults.
func (a *app) limits() filterstate.Limits {
	return filterstate.Limits{
		DefaultPageSize: a.cfg.Search.DefaultPageSize,
		MaxPageSize:     a.cfg.Search.MaxPageSize,
	}
}

// executor returns a search executor for the opened components.
func (a *app) executor() *search.Executor {
	if a.engine != nil {
		return search.NewWithEngine(a.store, a.engine)
	}
	return search.New(a.store)
}
