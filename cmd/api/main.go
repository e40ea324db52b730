package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/davidbarrios/platerush-backend/api/routes"
	"github.com/davidbarrios/platerush-backend/internal/cart"
	checkoutsvc "github.com/davidbarrios/platerush-backend/internal/checkout"
	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/internal/orders"
	"github.com/davidbarrios/platerush-backend/internal/reconcile"
	"github.com/davidbarrios/platerush-backend/internal/wallet"
	"github.com/davidbarrios/platerush-backend/pkg/config"
	"github.com/davidbarrios/platerush-backend/pkg/db"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
	"github.com/davidbarrios/platerush-backend/pkg/metrics"
	"github.com/davidbarrios/platerush-backend/pkg/migrate"
	"github.com/davidbarrios/platerush-backend/pkg/redis"
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

	mpClient, err := mercadopago.NewClient(context.Background(), cfg.MercadoPago, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	walletRepo := wallet.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	walletSvc, err := wallet.NewService(walletRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(notificationsRepo, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:            ordersRepo,
		Tx:              dbClient,
		Payouts:         walletSvc,
		Notifier:        dispatcher,
		Gateway:         mpClient,
		Metrics:         paymentMetrics,
		Logger:          logg,
		SimulateRefunds: cfg.FeatureFlags.SimulateRefunds,
		Production:      cfg.App.IsProd(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	reconcileSvc, err := reconcile.NewService(reconcile.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Gateway:  mpClient,
		Cart:     cartRepo,
		Notifier: dispatcher,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	guard, err := reconcile.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkoutsvc.NewService(cartRepo, ordersRepo, dbClient, mpClient, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	hub := notifications.NewHub(logg)
	go hub.Bridge(bridgeCtx, redisClient)

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
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Gateway:    mpClient,
			Registry:   registry,
			Reconcile:  reconcileSvc,
			Guard:      guard,
			Checkout:   checkoutSvc,
			Orders:     ordersSvc,
			WalletRepo: walletRepo,
			Wallet:     walletSvc,
			Notifier:   dispatcher,
			Hub:        hub,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		stopBridge()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
