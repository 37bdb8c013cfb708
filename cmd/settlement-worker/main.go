package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazario/bazario-backend/internal/cron"
	"github.com/bazario/bazario-backend/internal/disputes"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/settlement"
	"github.com/bazario/bazario-backend/internal/shops"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/metrics"
	"github.com/bazario/bazario-backend/pkg/migrate"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	walletSvc, err := wallet.NewService(dbClient, wallet.NewRepository(conn), events, cfg.Payouts, logg)
	exitOnError(logg, "wallet service", err)

	settlementSvc, err := settlement.NewService(
		dbClient,
		redisClient,
		orders.NewRepository(conn),
		listings.NewRepository(conn),
		shops.NewRepository(conn),
		disputes.NewRepository(conn),
		walletSvc,
		events,
		cfg.Settlement,
		jobMetrics,
		logg,
	)
	exitOnError(logg, "settlement service", err)

	releaseJob, err := cron.NewSettlementReleaseJob(settlementSvc)
	exitOnError(logg, "settlement release job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("settlement-worker"), cfg.Settlement.ReleaseInterval)
	exitOnError(logg, "worker lock", err)

	worker, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{releaseJob},
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Settlement.ReleaseInterval,
	})
	exitOnError(logg, "worker service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting settlement worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}

func exitOnError(logg *logger.Logger, what string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+what, err)
		os.Exit(1)
	}
}
