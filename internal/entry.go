// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/infobox/internal/api"
	"github.com/starford/infobox/internal/index"
	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/markdown"
	"github.com/starford/infobox/internal/mcpserver"
	"github.com/starford/infobox/internal/metrics"
	"github.com/starford/infobox/internal/noteservice"
	"github.com/starford/infobox/internal/sse"
	"github.com/starford/infobox/internal/storage"
)

// components holds the components shared by every command.
type components struct {
	cfg      *Config
	logger   *slog.Logger
	store    storage.Provider
	db       *index.DB
	svc      *noteservice.Service
	registry *prometheus.Registry
}

func (rt *components) Close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}

// bootstrap configures logging, opens the vault and the index, runs the
// initial sync, and wires the renderer into the note service.
func bootstrap(opts ...Option) (*components, error) {
	app := &application{logOutput: os.Stdout}

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
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("render_language", cfg.Render.Language),
		slog.Bool("metrics_enabled", cfg.Metrics.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path, index.WithInfoboxLanguage(cfg.Render.Language))
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Infobox renderer, optionally instrumented.
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
	}
	renderer := infobox.NewRenderer(
		infobox.WithLogger(logger),
		infobox.WithRecorder(recorder),
	)
	converter := markdown.NewConverter(markdown.NewExtension(renderer,
		markdown.WithLanguage(cfg.Render.Language),
		markdown.WithLogger(logger),
	))

	svc := noteservice.NewService(store, db,
		noteservice.WithRenderer(renderer),
		noteservice.WithConverter(converter),
		noteservice.WithLogger(logger),
		noteservice.WithChangeFunc(app.onChange),
	)

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		db:       db,
		svc:      svc,
		registry: registry,
	}, nil
}

// Run starts the HTTP server, the vault watcher, and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(sse.WithInvalidateWindow(500 * time.Millisecond))
	defer broker.Close()
	publish := func(c index.Change) {
		broker.PublishChange(c.Kind, c.Path, c.Stale)
	}

	rt, err := bootstrap(append(opts, withChangeFunc(publish))...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	// Build API router.
	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, rt.store)
	attachments := api.NewAttachmentHandler(rt.store)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Attachments are referenced by infobox images, so they are public.
	r.Get("/attachments/{filename}", attachments.ServeFile)

	if rt.registry != nil {
		r.Handle(cfg.Metrics.Path, metrics.HTTPHandler(rt.registry))
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watcher changes become note events plus infobox invalidations.
	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, cfg.Vault.Path, logger, publish)
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

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RenderNote writes the rendered HTML of one vault note to w.
func RenderNote(ctx context.Context, path string, w io.Writer, opts ...Option) error {
	rt, err := bootstrap(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := rt.svc.RenderNote(ctx, path)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	_, err = io.WriteString(w, out.HTML)
	return err
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	rt, err := bootstrap(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.store, rt.svc).ServeStdio()
}
