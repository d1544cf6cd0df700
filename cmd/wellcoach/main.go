package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"wellcoach/internal/api"
	"wellcoach/internal/config"
	"wellcoach/internal/observability"
	"wellcoach/internal/recommend"
	"wellcoach/internal/seed"
)

func main() {
	configPath := flag.String("config", os.Getenv("WELLCOACH_CONFIG"), "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (host:port); overrides config")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.NewLogger(observability.DefaultConfig()).Error("load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger := observability.NewLogger(cfg.Log)

	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			Release:          cfg.Version,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized", "environment", cfg.Sentry.Environment, "release", cfg.Version)
			sentryEnabled = true
		}
	}

	if *migrate != "" {
		os.Exit(runMigrationsCLI(logger, cfg, *migrate))
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open record store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	if cfg.Seed {
		if err := loadSeed(ctx, b, logger); err != nil {
			logger.Error("seed record store", "error", err)
			_ = b.store.Close()
			os.Exit(1)
		}
	}

	metrics := observability.NewMetrics(cfg.Metrics)
	if metrics != nil {
		logger.Info("metrics enabled", "namespace", cfg.Metrics.Namespace, "version", cfg.Metrics.Version)
	} else {
		logger.Info("metrics disabled")
	}

	proxies, err := api.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}
	if len(proxies.CIDRs) > 0 {
		logger.Info("trusted proxies configured", "count", len(proxies.CIDRs))
	}
	rateCfg := api.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		TrustedProxies:    proxies,
		Metrics:           metrics,
	}
	if !rateCfg.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	}

	svc := recommend.NewService(b.store, b.recs,
		recommend.WithLogger(logger),
		recommend.WithMetrics(metrics),
		recommend.WithAudit(b.audit),
	)

	mux := http.NewServeMux()
	srv := api.NewServer(mux, b.store, svc, logger, metrics, b.audit)
	srv.SetGenerationDefaults(api.GenerationDefaults{
		Limit:       cfg.Generation.Limit,
		AllLimit:    cfg.Generation.AllLimit,
		Concurrency: cfg.Generation.Concurrency,
	})
	srv.RegisterRoutes()

	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting -> actor
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.RateLimitMiddleware(rateCfg, logger.Slog()),
		api.ActorMiddleware(proxies),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Generating for every client against the hosted store can take a while.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("wellcoach listening", "addr", cfg.Addr, "driver", cfg.Storage.Driver)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := b.store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	} else {
		logger.Info("record store closed")
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func loadSeed(ctx context.Context, b *backend, logger observability.Logger) error {
	existing, err := b.store.ListClients(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("record store already populated; skipping seed", "clients", len(existing))
		return nil
	}
	f, err := seed.Default()
	if err != nil {
		return err
	}
	sum, err := seed.Load(ctx, b.store, f)
	if err != nil {
		return err
	}
	logger.Info("seeded demo data",
		"clients", sum.Clients,
		"resources", sum.Resources,
		"goals", sum.Goals,
		"interactions", sum.Interactions,
	)
	return nil
}

// runMigrationsCLI executes migration commands and returns the exit code.
func runMigrationsCLI(logger observability.Logger, cfg *config.Config, cmd string) int {
	switch cmd {
	case "up":
		// Opening a SQL store applies pending migrations.
		b, err := openBackend(context.Background(), cfg, logger)
		if err != nil {
			logger.Error("migrate up failed", "error", err)
			return 1
		}
		_ = b.store.Close()
		return runMigrationsCLI(logger, cfg, "status")
	case "status":
		status, err := migrationStatus(context.Background(), cfg)
		if err != nil {
			logger.Error("migrations status failed", "error", err)
			return 1
		}
		logger.Info("migrations status", "driver", cfg.Storage.Driver, "status", status)
		return 0
	default:
		logger.Warn("unknown migrate command", "command", cmd)
		return 2
	}
}
