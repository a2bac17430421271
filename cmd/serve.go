package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzhttp"
	"github.com/urfave/cli/v3"

	"github.com/ebalza/reliquary/pkg/api"
	"github.com/ebalza/reliquary/pkg/log"
)

var serveLogger = log.ForComponent("serve")

// reindexQuiet is how long the catalog database must stay unchanged after an
// external write before the engine is rebuilt.
const reindexQuiet = 2 * time.Second

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search page and the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address, overrides the configured host and port",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func serve(ctx context.Context, configPath, listen string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	executor := a.executor()

	mux := http.NewServeMux()
	apiServer := api.NewServer(a.store, executor, a.engine, a.limits())
	apiServer.RegisterRoutes(mux)

	ui, err := newWebUI(a.store, executor, a.limits())
	if err != nil {
		return fmt.Errorf("setting up web ui: %w", err)
	}
	ui.RegisterRoutes(mux)

	if listen == "" {
		listen = net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port)
	}
	server := &http.Server{
		Addr:    listen,
		Handler: gzhttp.GzipHandler(api.CorsMiddleware(api.RequestIDMiddleware(mux))),
	}

	serverErr := make(chan error, 1)
	go func() {
		serveLogger.Infof("listening on http://%s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Watch the catalog database so writes from another process (imports,
	// a second instance) schedule a reindex once the file goes quiet.
	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if a.engine != nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			serveLogger.Warnf("failed to create database watcher: %v", err)
		} else {
			defer func() {
				if err := watcher.Close(); err != nil {
					serveLogger.Warnf("failed to close database watcher: %v", err)
				}
			}()
			if err := watcher.Add(a.cfg.DatabasePath); err != nil {
				serveLogger.Warnf("failed to watch database %s: %v", a.cfg.DatabasePath, err)
			} else {
				serveLogger.Infof("watching catalog database for changes: %s", a.cfg.DatabasePath)
				watchEvents = make(chan fsnotify.Event, 16)
				watchErrors = make(chan error, 1)
				go forwardWatcher(watcher, watchEvents, watchErrors)
			}
		}
	}

	reindex := time.NewTimer(0)
	if !reindex.Stop() {
		<-reindex.C
	}

	for {
		select {
		case err := <-serverErr:
			return fmt.Errorf("server failed: %w", err)
		case <-sigCh:
			fmt.Println("\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			return nil
		case event := <-watchEvents:
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				// Debounce: every write pushes the rebuild out again.
				if !reindex.Stop() {
					select {
					case <-reindex.C:
					default:
					}
				}
				reindex.Reset(reindexQuiet)
			}
		case err := <-watchErrors:
			serveLogger.Warnf("database watcher error: %v", err)
		case <-reindex.C:
			serveLogger.Infof("catalog database changed, rebuilding search index")
			if count, err := a.engine.Rebuild(a.store); err != nil {
				serveLogger.Errorf("rebuilding index: %v", err)
			} else {
				serveLogger.Infof("reindexed %d artifacts", count)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func forwardWatcher(watcher *fsnotify.Watcher, events chan<- fsnotify.Event, errs chan<- error) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			select {
			case events <- event:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			default:
			}
		}
	}
}
