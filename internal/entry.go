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
	"golang.org/x/sync/errgroup"

	"github.com/starford/netmount/internal/api"
	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/mcpserver"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/registry"
	"github.com/starford/netmount/internal/schema"
	"github.com/starford/netmount/internal/sse"
	"github.com/starford/netmount/internal/storageops"
	"github.com/starford/netmount/internal/storageservice"
)

// components is the storage stack shared by the HTTP and MCP front ends.
type components struct {
	registry *registry.Registry
	journal  *journal.DB
	broker   *sse.Broker
	service  *storageservice.Service
}

func (c *components) Close() {
	c.broker.Close()
	if err := c.journal.Close(); err != nil {
		slog.Warn("journal close failed", slog.String("error", err.Error()))
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	client, err := rc.NewClient(rc.Options{
		URL:       cfg.Backend.URL,
		User:      cfg.Backend.User,
		Password:  cfg.Backend.Password,
		Timeout:   cfg.Backend.Timeout,
		Retries:   cfg.Backend.Retries,
		RateLimit: cfg.Backend.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	catalog, err := schema.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load kind catalog: %w", err)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	if cfg.Journal.Keep > 0 {
		if n, err := db.Prune(ctx, cfg.Journal.Keep); err != nil {
			logger.Warn("journal prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("journal pruned", slog.Int64("removed", n))
		}
	}

	broker := sse.NewBroker()
	reg := registry.New(client, broker, logger)

	// The backend may come up after us; start with an empty list.
	if err := reg.Refresh(ctx); err != nil {
		logger.Warn("initial storage refresh failed", slog.String("error", err.Error()))
	}

	exec := storageops.New(client, catalog, reg,
		storageops.WithMountDir(cfg.Mount.Dir),
		storageops.WithLogger(logger),
	)

	return &components{
		registry: reg,
		journal:  db,
		broker:   broker,
		service:  storageservice.New(exec, reg, catalog, db, broker, logger),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend_url", cfg.Backend.URL),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comp, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comp.Close()

	apiRouter := api.NewRouter(comp.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, comp.broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := comp.service.Mounts(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"backend unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Refresh the storage list when the backend's config file is edited.
	if cfg.Backend.ConfigFile != "" {
		g.Go(func() error {
			if err := comp.registry.Watch(gCtx, cfg.Backend.ConfigFile); err != nil {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		// SSE streams end when the broker closes.
		comp.broker.Close()

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

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the storage tools over stdio. Logs go to stderr, stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	comp, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comp.Close()

	logger.Info("Starting MCP server", slog.String("backend_url", cfg.Backend.URL))
	return mcpserver.New(comp.service, app.version).ServeStdio()
}
