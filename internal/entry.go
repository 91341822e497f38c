// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mediacheck/internal/api"
	"github.com/starford/mediacheck/internal/apperr"
	"github.com/starford/mediacheck/internal/collection"
	"github.com/starford/mediacheck/internal/i18n"
	"github.com/starford/mediacheck/internal/latex"
	"github.com/starford/mediacheck/internal/mcpserver"
	"github.com/starford/mediacheck/internal/media"
	"github.com/starford/mediacheck/internal/mediadb"
	"github.com/starford/mediacheck/internal/noteservice"
	"github.com/starford/mediacheck/internal/sse"
	"github.com/starford/mediacheck/internal/storage"
)

// App holds the wired components shared by every command.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Folder   *storage.FS
	Store    *collection.DB
	MediaDB  *mediadb.DB
	Builder  *latex.Builder
	Renderer *latex.Renderer
	Checker  *media.Checker
	Broker   *sse.Broker
	Service  *noteservice.Service

	version string
}

// New wires the application from the given options.
func New(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("collection_path", cfg.Collection.Path),
		slog.String("media_dir", cfg.Media.Dir),
		slog.String("nfc_policy", cfg.Media.NFCPolicy),
		slog.Bool("latex_build", cfg.Latex.Build),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Collection.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	folder, err := storage.NewFS(cfg.Media.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, err := collection.Open(cfg.Collection.Path)
	if err != nil {
		return nil, fmt.Errorf("init collection: %w", err)
	}

	if cfg.Collection.NoteTypesFile != "" {
		types, err := collection.LoadNoteTypes(cfg.Collection.NoteTypesFile)
		if err == nil {
			err = collection.Seed(ctx, store, types)
		}
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("seed note types: %w", err)
		}
		logger.Info("Note types seeded", slog.Int("count", len(types)))
	}

	mdb, err := mediadb.Open(cfg.Collection.MediaDBPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init media db: %w", err)
	}

	builder := latex.NewBuilder(folder,
		latex.WithBinaries(cfg.Latex.Latex, cfg.Latex.Dvipng, cfg.Latex.Dvisvgm),
		latex.WithTimeout(cfg.Latex.Timeout),
		latex.WithLogger(logger),
	)
	rendererOpts := []latex.RendererOption{latex.WithRendererLogger(logger)}
	if !cfg.Latex.Build {
		rendererOpts = append(rendererOpts, latex.WithBuildDisabled())
	}
	renderer := latex.NewRenderer(folder, builder, rendererOpts...)

	checker, err := media.NewChecker(store, folder, renderer,
		media.WithMetaStore(mdb),
		media.WithTranslator(i18n.New(cfg.App.Language)),
		media.WithLogger(logger),
		media.WithIncludeRemote(cfg.Media.IncludeRemote),
		media.WithClearFixedTags(cfg.Latex.ClearFixedTags),
		media.WithMaxPasses(cfg.Media.MaxPasses),
		media.WithNFCPolicy(media.NFCPolicy(cfg.Media.NFCPolicy)),
		media.WithPatterns(cfg.Media.ReferencePatterns),
	)
	if err != nil {
		mdb.Close()
		store.Close()
		return nil, fmt.Errorf("init checker: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)
	svc := noteservice.NewService(store, checker, renderer,
		noteservice.WithLockFile(cfg.Collection.LockPath()),
		noteservice.WithPublisher(broker),
		noteservice.WithLogger(logger),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Folder:   folder,
		Store:    store,
		MediaDB:  mdb,
		Builder:  builder,
		Renderer: renderer,
		Checker:  checker,
		Broker:   broker,
		Service:  svc,
		version:  app.version,
	}, nil
}

// Close releases every resource held by the application.
func (a *App) Close() error {
	a.Broker.Close()
	return errors.Join(a.MediaDB.Close(), a.Store.Close())
}

// ServeMCP runs the MCP server on stdin/stdout.
func (a *App) ServeMCP() error {
	a.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(a.Service, a.version).ServeStdio()
}

// Run starts the HTTP server and the media folder watcher with the given
// options and blocks until a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	a, err := New(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

// Serve runs the HTTP server and the folder watcher. Every settled burst of
// folder changes triggers a media check; results reach SSE clients.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	apiRouter := api.NewRouter(a.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, a.Broker)
	handler := api.NewServer(apiRouter, a.Folder.Root(),
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: handler,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Folder changes request a check; requests made while one is pending collapse.
	checkReq := make(chan struct{}, 1)
	checkReq <- struct{}{}
	requestCheck := func(names []string) {
		logger.Debug("media folder changed", slog.Int("files", len(names)))
		a.Broker.Publish(sse.Event{Type: sse.EventMediaChanged, Data: sse.FolderChange{Files: names}})
		select {
		case checkReq <- struct{}{}:
		default:
		}
	}

	g.Go(func() error {
		return media.Watch(gCtx, a.Folder.Root(), cfg.Media.WatchDebounce, logger, requestCheck)
	})

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-checkReq:
				res, err := a.Service.Check(gCtx, nil)
				switch {
				case errors.Is(err, apperr.ErrLocked):
					logger.Info("check skipped, another check is running")
				case err != nil:
					logger.Error("background check failed", slog.String("error", err.Error()))
				default:
					logger.Info("background check done",
						slog.String("run", res.RunID),
						slog.Int("missing", len(res.Missing)),
						slog.Int("unused", len(res.Unused)))
				}
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the errgroup so the watcher and check loop exit after a signal.
var errShutdown = errors.New("shutdown requested")
