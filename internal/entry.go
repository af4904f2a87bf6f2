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

	"github.com/quipex/habit-button/internal/api"
	"github.com/quipex/habit-button/internal/mcpserver"
	"github.com/quipex/habit-button/internal/notify"
	"github.com/quipex/habit-button/internal/sse"
	"github.com/quipex/habit-button/internal/watch"
)

func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newJSONLogger(os.Stdout, cfg.App.LogLevel)
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("daily_folder", cfg.Habits.DailyFolder),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := NewRuntime(cfg, logger, app.clock)
	if err != nil {
		return err
	}
	defer rt.Close()

	// SSE broker. Group changes and widget lifecycle events are pushed to it.
	broker := sse.NewBroker(cfg.Events.GroupThrottle)
	defer broker.Close()
	unsubscribe := rt.Bus.OnAny(broker.PublishGroupEvent)
	defer unsubscribe()

	ctrl := rt.Controller(notify.Multi(notify.Log(logger), broker), broker)
	defer ctrl.Close()

	apiRouter := api.NewRouter(api.Services{
		Widgets:  ctrl,
		Groups:   rt.Aggregator,
		Registry: rt.Registry,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Document changes invalidate group scans and are forwarded to SSE.
	g.Go(func() error {
		err := watch.Watch(gCtx, rt.Store, cfg.Vault.Path, cfg.Events.WatchDebounce, logger, func(kind, path string) {
			if kind == watch.KindDeleted {
				rt.Aggregator.Forget(path)
			} else {
				rt.Tracker.MarkStale(path)
			}
			broker.PublishNoteEvent(kind, path)
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

// RunMCP serves the habit tools over stdio until ctx is cancelled or stdin
// closes. Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newJSONLogger(os.Stderr, cfg.App.LogLevel)
		slog.SetDefault(logger)
	}

	rt, err := NewRuntime(cfg, logger, app.clock)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcpserver.New(mcpserver.Deps{
		Vault:      rt.Store,
		Registry:   rt.Registry,
		Aggregator: rt.Aggregator,
		Collector:  rt.Collector,
		Settings:   cfg.Habits,
		Logger:     logger,
	})

	logger.Info("Starting MCP server", slog.String("vault_path", cfg.Vault.Path))
	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}
