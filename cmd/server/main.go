// Package main is the entrypoint for the KeyDesk API server.
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

	"github.com/aurovest/keydesk/internal/api"
	"github.com/aurovest/keydesk/internal/api/handler"
	mw "github.com/aurovest/keydesk/internal/api/middleware"
	"github.com/aurovest/keydesk/internal/cache"
	"github.com/aurovest/keydesk/internal/config"
	"github.com/aurovest/keydesk/internal/keys"
	"github.com/aurovest/keydesk/internal/metrics"
	"github.com/aurovest/keydesk/internal/platform"
	"github.com/aurovest/keydesk/internal/store"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

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
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "platform", cfg.Platform.BaseURL)

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

	// 5. Create platform client. The platform is probed at startup but a
	// failure is not fatal: the console must stay up when the platform is down.
	platformClient := platform.NewHTTPClient(cfg.Platform.BaseURL, cfg.Platform.ServiceToken, cfg.Platform.Timeout)
	if err := platformClient.Ready(ctx); err != nil {
		slog.Warn("platform not reachable at startup", "error", err)
	} else {
		slog.Info("platform connected")
	}

	// 6. Create store and key service
	pgStore := store.NewPostgresStore(pool)
	keyService := keys.NewService(platformClient, pgStore, redisCache)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:  handler.NewHealthHandler(pgStore, redisCache, platformClient),
		MetricsHandler: metrics.Handler(),

		GenerateHandler:   handler.NewGenerateHandler(keyService),
		ListKeysHandler:   handler.NewListKeysHandler(keyService),
		PoolHandler:       handler.NewPoolHandler(keyService),
		StatsHandler:      handler.NewStatsHandler(keyService),
		DistributeHandler: handler.NewDistributeHandler(keyService),
		AssignHandler:     handler.NewAssignHandler(keyService),
		AccountsHandler:   handler.NewAccountsHandler(keyService),
		ListBatches:       handler.NewListBatchesHandler(pgStore),
		GetBatch:          handler.NewGetBatchHandler(pgStore),

		CreateAPIKeyHandler: handler.NewCreateAPIKeyHandler(pgStore),
		ListAPIKeysHandler:  handler.NewListAPIKeysHandler(pgStore),
		RevokeAPIKeyHandler: handler.NewRevokeAPIKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
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
