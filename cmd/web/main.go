package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"superstore-dashboard/internal/config"
	"superstore-dashboard/internal/middleware"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/server"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/format"
)

const version = "1.0.0"

type app struct {
	handler   http.Handler
	dashboard *services.Dashboard
	metrics   *observability.Metrics
}

// newApp wires the dataset services, routes and middleware chain.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	formatter, err := format.New(cfg.Display.Locale, cfg.Display.Currency)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	loader := services.NewLoader(services.LoadOptions{
		DateLayouts:     cfg.Dataset.DateLayouts,
		SkipInvalidRows: cfg.Dataset.SkipInvalidRows,
	}, logger)
	cache := services.NewCache(loader.Load, logger,
		services.WithObserver(metrics),
		services.WithLoadTimeout(cfg.Dataset.LoadTimeout),
	)
	dashboard := services.NewDashboard(cache, cfg.Dataset.CSVFile, logger, metrics)

	srv := server.NewServer(dashboard, logger, server.Options{
		Title:     cfg.Display.Title,
		TableRows: cfg.Display.TableRows,
		Format:    formatter,
		Metrics:   metrics.Handler(),
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.Metrics(metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return &app{
		handler:   middlewareChain(srv),
		dashboard: dashboard,
		metrics:   metrics,
	}, nil
}

// warmUp loads the dataset once so that a bad file stops startup.
func (a *app) warmUp(ctx context.Context, timeout time.Duration) (*services.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.dashboard.Dataset(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	ds, err := a.warmUp(ctx, cfg.Dataset.LoadTimeout)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", cfg.Dataset.CSVFile, err)
	}
	logger.Info("dataset loaded successfully",
		"path", cfg.Dataset.CSVFile,
		"records", ds.Len(),
		"skipped_rows", ds.SkippedRows,
		"duration", time.Since(start),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	logger.Info("starting graceful server")
	return gracefulServer.ListenAndServe(ctx)
}
