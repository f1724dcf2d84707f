package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/catalog"
	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/events"
	"marketplace-checkout/internal/httpclient"
	"marketplace-checkout/internal/httpserver"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/migrate"
	"marketplace-checkout/internal/payment"
	cartrepo "marketplace-checkout/internal/repository/cart"
	orderrepo "marketplace-checkout/internal/repository/order"
	"marketplace-checkout/internal/resilience"
	cartsvc "marketplace-checkout/internal/service/cart"
	ordersvc "marketplace-checkout/internal/service/order"
)

func main() {
	if err := run(); err != nil {
		slog.Error("checkout api stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "checkout-service", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		return err
	}

	m := metrics.New()
	readiness := []httpserver.ReadinessCheck{{Name: "postgres", Check: dbpool.Ping}}

	var cartCache cache.CartCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		rc := cache.NewRedisCache(rdb, cfg.CartCacheTTL)
		cartCache = rc
		readiness = append(readiness, httpserver.ReadinessCheck{Name: "redis", Check: rc.Ping})
		log.Info("cart cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CartCacheTTL.String())
	}

	var broker events.Broker = events.NopBroker{}
	if len(cfg.KafkaBrokers) > 0 {
		broker = events.NewKafkaBroker(cfg.KafkaBrokers)
		log.Info("event broker enabled", "brokers", cfg.KafkaBrokers, "exchange", cfg.EventsExchange)
	} else {
		log.Warn("no event broker configured, events are dropped")
	}
	publisher := events.NewPublisher(broker, cfg.EventsExchange, cfg.EventsSource, log, m)
	defer publisher.Close()

	execOpts := []resilience.Option{resilience.WithMetrics(m)}
	if cfg.BreakerEnabled {
		execOpts = append(execOpts, resilience.WithBreaker(resilience.BreakerSettings{
			FailureThreshold: uint32(max(cfg.BreakerFailures, 1)),
			OpenWindow:       cfg.BreakerOpenWindow,
		}))
	}
	exec := resilience.New(log, execOpts...)
	policy := resilience.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}

	catalogClient := catalog.NewClient(httpclient.New(cfg.CatalogBaseURL, cfg.HTTPClientTimeout), exec, policy)
	paymentClient := payment.NewClient(httpclient.New(cfg.PaymentsBaseURL, cfg.HTTPClientTimeout), exec, policy)
	readiness = append(readiness, httpserver.ReadinessCheck{Name: "catalog", Check: catalogClient.Ping})

	cartService := cartsvc.New(cartrepo.NewPostgres(dbpool), catalogClient, cartCache, log)
	orderService := ordersvc.New(ordersvc.Deps{
		Repo:     orderrepo.NewPostgres(dbpool),
		Cart:     cartService,
		Catalog:  catalogClient,
		Payments: paymentClient,
		Events:   publisher,
		Logger:   log,
		Metrics:  m,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, log, httpserver.Deps{
		CartSvc:      cartService,
		OrderSvc:     orderService,
		CheckoutMode: cfg.CheckoutMode,
		CORSOrigins:  cfg.CORSOrigins,
		Metrics:      m,
		Readiness:    readiness,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting checkout api", "checkout_mode", cfg.CheckoutMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
