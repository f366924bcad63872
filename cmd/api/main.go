package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmab/shop-backend/api/routes"
	"github.com/jmab/shop-backend/internal/cart"
	"github.com/jmab/shop-backend/internal/checkout"
	"github.com/jmab/shop-backend/internal/inventory"
	"github.com/jmab/shop-backend/internal/notifier"
	"github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/internal/refunds"
	"github.com/jmab/shop-backend/internal/users"
	paymongowebhook "github.com/jmab/shop-backend/internal/webhooks/paymongo"
	"github.com/jmab/shop-backend/pkg/config"
	"github.com/jmab/shop-backend/pkg/db"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/metrics"
	"github.com/jmab/shop-backend/pkg/migrate"
	"github.com/jmab/shop-backend/pkg/paymongo"
	"github.com/jmab/shop-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := paymongo.NewClient(
		cfg.Paymongo.SecretKey,
		cfg.Paymongo.WebhookSecret,
		paymongo.WithBaseURL(cfg.Paymongo.BaseURL),
		paymongo.WithTimeout(cfg.Paymongo.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	events := notifier.NewRedisNotifier(redisClient, cfg.Eventing.OrderEventsChannel, logg)

	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	inventoryRepo := inventory.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())

	checkoutService, err := checkout.NewService(
		cartRepo,
		orderRepo,
		inventoryRepo,
		userRepo,
		dbClient,
		gateway,
		checkout.URLs{Success: cfg.Checkout.SuccessURL, Cancel: cfg.Checkout.CancelURL},
		events,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orderRepo, inventoryRepo, dbClient, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(orderRepo, gateway, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymongowebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "paymongo-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := paymongowebhook.NewService(paymongowebhook.ServiceParams{
		OrdersRepo:        orderRepo,
		InventoryRepo:     inventoryRepo,
		TransactionRunner: dbClient,
		Guard:             webhookGuard,
		Events:            events,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

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
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			Database:        dbClient,
			Cache:           redisClient,
			CheckoutService: checkoutService,
			OrdersService:   ordersService,
			RefundsService:  refundsService,
			WebhookService:  webhookService,
			WebhookVerifier: gateway,
			Metrics:         orderMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
