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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/classroom"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/saver"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workshop_path", cfg.Workshop.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure workshop directory exists.
	if err := os.MkdirAll(cfg.Workshop.Path, 0o755); err != nil {
		return fmt.Errorf("create workshop dir: %w", err)
	}

	// Initialize blob storage.
	blobs, err := storage.NewFS(cfg.Workshop.BlobsPath())
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite catalog.
	cat, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	defer cat.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.SSE.CatalogThrottle())
	defer broker.Close()

	// Build services.
	projects := projectstore.NewService(blobs, cat, broker, logger)
	packs := backpack.NewService(blobs, cat, logger)
	classes := classroom.NewService(cat, logger)
	sessions := session.NewManager(projects, logger,
		saver.WithAutosaveInterval(cfg.Save.AutosaveInterval()),
		saver.WithDeferThumbnails(cfg.Save.DeferThumbnails),
		saver.WithLogger(logger),
		saver.WithTelemetry(saver.NewLogTelemetry(logger)))
	sessions.SkipUnloadConfirm(cfg.Save.SkipUnloadConfirm)
	defer sessions.CloseAll()

	// Reconcile blob store against the catalog before serving.
	if n, rErr := library.Reconcile(cat, blobs, logger, nil); rErr != nil {
		logger.Warn("initial reconcile failed", slog.String("error", rErr.Error()))
	} else if n > 0 {
		logger.Info("reconciled asset library", slog.Int("changes", n))
	}

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(projects, packs).ServeStdio()
	}

	// Build API router.
	apiRouter := api.NewRouter(api.Deps{
		Sessions:  sessions,
		Projects:  projects,
		Blobs:     blobs,
		Backpack:  packs,
		Classroom: classes,
		Events:    broker,
		Publisher: broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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

	// Mount API routes under /api/v1.
	r.Mount("/api/v1", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the blob store for out-of-band asset changes.
	g.Go(func() error {
		if wErr := library.Watch(gCtx, cat, blobs, logger, func(kind, assetID string) {
			broker.Publish("library.changed", map[string]string{
				"kind":    kind,
				"assetId": assetID,
			})
		}); wErr != nil {
			logger.Warn("library watcher stopped", slog.String("error", wErr.Error()))
		}
		return nil
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
