package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazario/bazario-backend/api/routes"
	"github.com/bazario/bazario-backend/internal/buybox"
	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/checkout"
	"github.com/bazario/bazario-backend/internal/disputes"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/internal/notifications"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	shopRepo := shops.NewRepository(conn)
	listingRepo := listings.NewRepository(conn)
	buyboxRepo := buybox.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	checkoutRepo := checkout.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	walletRepo := wallet.NewRepository(conn)
	disputeRepo := disputes.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)

	shopSvc, err := shops.NewService(dbClient, shopRepo, events)
	exitOnError(logg, "shops service", err)

	buyboxSvc, err := buybox.NewService(dbClient, buyboxRepo, cfg.BuyBox, logg)
	exitOnError(logg, "buybox service", err)

	listingSvc, err := listings.NewService(dbClient, listingRepo, shopRepo, buyboxSvc)
	exitOnError(logg, "listings service", err)

	cartSvc, err := cart.NewService(cartRepo, buyboxSvc)
	exitOnError(logg, "cart service", err)

	orderSvc, err := orders.NewService(orderRepo)
	exitOnError(logg, "orders service", err)

	checkoutSvc, err := checkout.NewService(
		dbClient, checkoutRepo, cartRepo, listingRepo, shopRepo, orderRepo,
		events, cfg.Checkout, logg,
	)
	exitOnError(logg, "checkout service", err)

	walletSvc, err := wallet.NewService(dbClient, walletRepo, events, cfg.Payouts, logg)
	exitOnError(logg, "wallet service", err)

	disputeSvc, err := disputes.NewService(disputeRepo, orderRepo)
	exitOnError(logg, "disputes service", err)

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	settlementSvc, err := settlement.NewService(
		dbClient, redisClient, orderRepo, listingRepo, shopRepo, disputeRepo,
		walletSvc, events, cfg.Settlement, jobMetrics, logg,
	)
	exitOnError(logg, "settlement service", err)

	notificationSvc, err := notifications.NewService(notificationRepo)
	exitOnError(logg, "notifications service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Shops:         shopSvc,
			Listings:      listingSvc,
			BuyBox:        buyboxSvc,
			Cart:          cartSvc,
			Checkout:      checkoutSvc,
			Orders:        orderSvc,
			Wallet:        walletSvc,
			Disputes:      disputeSvc,
			Settlement:    settlementSvc,
			Notifications: notificationSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnError(logg *logger.Logger, what string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+what, err)
		os.Exit(1)
	}
}
