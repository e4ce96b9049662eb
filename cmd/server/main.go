// Package main is the entrypoint for the vcflow processing server.
package main

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

	"github.com/sandeepmv/vcflow/internal/api"
	"github.com/sandeepmv/vcflow/internal/api/handler"
	mw "github.com/sandeepmv/vcflow/internal/api/middleware"
	"github.com/sandeepmv/vcflow/internal/api/response"
	"github.com/sandeepmv/vcflow/internal/cache"
	"github.com/sandeepmv/vcflow/internal/classify"
	"github.com/sandeepmv/vcflow/internal/config"
	"github.com/sandeepmv/vcflow/internal/export"
	"github.com/sandeepmv/vcflow/internal/metric"
	"github.com/sandeepmv/vcflow/internal/scheduler"
	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	slog.Info("config loaded", "watch_dir", cfg.Watcher.WatchDir, "output_dir", cfg.Export.OutputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build the processing pipeline
	pgStore := store.NewPostgresStore(pool)
	metrics := metric.New()
	classifier := classify.New(cfg.Watcher.EnvironmentPatterns)
	exporter := export.New(cfg.Export)

	fileWatcher, err := watcher.New(cfg.Watcher, pgStore, classifier, metrics, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fileWatcher.Close()

	sched := scheduler.New(cfg.Processor, pgStore, redisCache, exporter, fileWatcher, metrics, logger)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMinute),

		HealthHandler:      healthHandler(pgStore, redisCache),
		MetricsHandler:     metrics.Handler(),
		ProcessFileHandler: handler.NewProcessFileHandler(fileWatcher, pgStore),
		TriggerHandler:     handler.NewTriggerHandler(sched),
		ValidateHandler:    handler.NewValidateFileHandler(),
		GetJobHandler:      handler.NewGetJobHandler(pgStore),
		ListJobsHandler:    handler.NewListJobsHandler(pgStore),
		RetryJobHandler:    handler.NewRetryJobHandler(pgStore, redisCache),
		StatsHandler:       handler.NewStatsHandler(pgStore, redisCache),
	}
	router := api.NewRouter(deps)

	// 7. Start background loops
	errCh := make(chan error, 3)
	go func() {
		if err := fileWatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("watcher: %w", err)
		}
	}()
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	// Wait for shutdown signal or component failure
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
