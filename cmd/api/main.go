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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safestake/registry/internal/app"
	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/compliance"
	"github.com/safestake/registry/internal/guard"
	"github.com/safestake/registry/internal/handler"
	"github.com/safestake/registry/internal/infra"
	"github.com/safestake/registry/internal/metrics"
	"github.com/safestake/registry/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	verifier, err := auth.ParseVerifierKey(cfg.VerifierPublicKey)
	if err != nil {
		return fmt.Errorf("parse verifier key: %w", err)
	}

	// Store
	var store repository.ComplianceStore
	switch cfg.StoreBackend {
	case infra.StoreBackendMemory:
		store = repository.NewMemoryStore()
		logger.Warn("using in-memory compliance store; state is lost on restart")
	default:
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to postgres")
		store = repository.NewPostgresStore(pool)
	}

	// Initialize dependencies
	m := metrics.New(prometheus.DefaultRegisterer)
	engine := compliance.NewEngine(store, verifier, m, logger)
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccountExpiry, cfg.JWTPlatformExpiry)

	trusted, err := handler.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}

	r := app.NewRouter(app.RouterDeps{
		Engine:         engine,
		Health:         store.Ping,
		JWTMgr:         jwtMgr,
		RateLimiter:    guard.NewRateLimiter(cfg.RegisterRatePerSecond, cfg.RegisterBurst),
		TrustedProxies: trusted,
		Idempotency:    guard.NewIdempotencyGuard(24 * time.Hour),
		Metrics:        promhttp.Handler(),
		Logger:         logger,
		CORSOrigin:     cfg.CORSAllowedOrigins,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "store", cfg.StoreBackend, "verifier", verifier.PublicKey())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
