// Package application wires configuration, storage and review use cases into
// one handle shared by the CLI and the MCP server.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/choplin/mdreview/internal/config"
	"github.com/choplin/mdreview/internal/database"
	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/events"
	"github.com/choplin/mdreview/internal/filesystem"
	"github.com/choplin/mdreview/internal/git"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/redisstore"
	"github.com/choplin/mdreview/internal/services"
	"github.com/choplin/mdreview/internal/usecase"
)

// App holds the collaborators for one review root.
type App struct {
	Root    string
	Author  string
	Config  config.Config
	Bus     *events.Bus
	Threads *services.ThreadService
	Review  *usecase.Review
	Log     *slog.Logger

	closers []func() error
}

// Options overrides parts of the wiring.
type Options struct {
	// Source replaces the on-disk document reader.
	Source docref.Source
	// Store replaces the configured backend.
	Store services.Store
}

// Open builds an App rooted at root using cfg's backend.
func Open(ctx context.Context, cfg config.Config, root string, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}

	app := &App{
		Root:   root,
		Config: cfg,
		Bus:    events.NewBus(),
		Log:    log,
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = app.openStore(ctx)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	source := opts.Source
	if source == nil {
		source = docref.NewFileSource(root)
	}

	app.Author = git.ResolveAuthor(root, cfg.Author)
	app.Threads = services.NewThreadService(store, app.Bus, cfg.Origin, log)
	app.Review = usecase.NewReview(source, markdown.NewSectionCache(), app.Threads, log)

	unsubscribe := app.Bus.Subscribe(func(c events.Change) {
		if c.Origin != cfg.Origin {
			log.Info("comments changed by another writer", "doc", c.Doc, "origin", c.Origin)
		}
	})
	app.closers = append(app.closers, func() error {
		unsubscribe()
		return nil
	})

	return app, nil
}

func (a *App) openStore(ctx context.Context) (services.Store, error) {
	switch a.Config.Backend {
	case config.BackendSQLite:
		dbCtx, err := database.CreateDatabase("")
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		a.closers = append(a.closers, func() error { return database.CloseDatabase(dbCtx) })
		return database.NewStore(dbCtx, a.Log), nil

	case config.BackendRedis:
		store, err := redisstore.NewStore(a.Config.RedisURL, a.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		stop, err := store.Watch(ctx, a.Bus)
		if err != nil {
			return nil, err
		}
		// Runs before store.Close because closers unwind in reverse.
		a.closers = append(a.closers, func() error {
			stop()
			return nil
		})
		return store, nil

	default:
		return filesystem.New(a.Config.ResolveSidecarDir(a.Root), a.Log), nil
	}
}

// Resolve maps a file path to a document identity under the App's root.
func (a *App) Resolve(file string) (string, error) {
	ref, err := docref.Resolve(file, docref.Options{Root: a.Root})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Close releases backend resources in reverse order of acquisition.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
