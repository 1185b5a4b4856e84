package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atelier-market/atelier/internal/app"
	"github.com/atelier-market/atelier/internal/backend"
	jobmetrics "github.com/atelier-market/atelier/internal/jobs"
	"github.com/atelier-market/atelier/internal/observability"
	"github.com/atelier-market/atelier/internal/platform/cache"
	"github.com/atelier-market/atelier/internal/storefront"
	"github.com/atelier-market/atelier/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	policy, err := app.LoadPolicy(cfg)
	if err != nil {
		logger.Error("load route policy", slog.Any("error", err))
		os.Exit(1)
	}

	backendClient, err := backend.New(backend.Options{
		BaseURL:          cfg.BackendURL,
		ServiceToken:     cfg.BackendToken,
		Timeout:          cfg.BackendTimeout,
		RatePerSecond:    cfg.BackendRPS,
		Burst:            cfg.BackendBurst,
		FailureThreshold: cfg.BackendFailureThreshold,
		OpenTimeout:      cfg.BackendOpenTimeout,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	pages := storefront.NewPages(backendClient, cache.NewCache(redisClient, cfg.CacheTTL), logger)
	metrics := observability.NewMetrics()
	warmups := &jobs.WarmupJobs{
		Pages:   pages,
		Routes:  policy,
		Logger:  logger,
		Metrics: jobmetrics.NewMetrics(metrics.Registerer()),
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  warmups.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: jobs.NewCatalogWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
