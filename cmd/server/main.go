// Package main is the entrypoint for the textlens API server.
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

	"github.com/kmatsuda/textlens/internal/analysis"
	"github.com/kmatsuda/textlens/internal/api"
	"github.com/kmatsuda/textlens/internal/api/handler"
	mw "github.com/kmatsuda/textlens/internal/api/middleware"
	"github.com/kmatsuda/textlens/internal/cache"
	"github.com/kmatsuda/textlens/internal/config"
	"github.com/kmatsuda/textlens/internal/pool"
	"github.com/kmatsuda/textlens/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "store_backend", cfg.Store.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the token store
	tokenStore, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	slog.Info("token store ready", "backend", cfg.Store.Backend)

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Start the worker pool over the built-in engine
	engine := analysis.NewEngine()
	jobs := pool.New(engine, cfg.Pool.Workers, cfg.Pool.JobTimeout)
	jobs.Start(ctx)
	slog.Info("analysis engine initialized", "engine", engine.Name())

	// 5. Build router with dependencies
	auth := mw.NewAuth(tokenStore, cfg.Auth.AdminSecret)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin)

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		RootHandler:          handler.NewRootHandler(jobs, tokenStore),
		TokenizeHandler:      handler.NewTokenizeHandler(jobs, tokenStore),
		WordFrequencyHandler: handler.NewWordFrequencyHandler(jobs, tokenStore, redisCache),
		TokenRequestHandler:  handler.NewTokenRequestHandler(tokenStore),
		TokenDeleteHandler:   handler.NewTokenDeleteHandler(tokenStore),
		StatsHandler:         handler.NewStatsHandler(tokenStore),
	})

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// No write timeout: a request may legitimately wait in the admission
	// queue for an unbounded time before its job even starts executing.
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore connects the configured backend. Postgres runs the migration set;
// the SQLite store creates its schema inline on open.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil

	default:
		dbPool, err := store.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(cfg.URL, cfg.MigrationsDir); err != nil {
			dbPool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")
		return store.NewPostgresStore(dbPool), dbPool.Close, nil
	}
}
