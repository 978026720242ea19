package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog/cache"
	catalogrepo "github.com/fjod/go_storefront/internal/catalog/repository"
	catalogsvc "github.com/fjod/go_storefront/internal/catalog/service"
	"github.com/fjod/go_storefront/internal/checkout/publisher"
	checkoutrepo "github.com/fjod/go_storefront/internal/checkout/repository"
	checkoutsvc "github.com/fjod/go_storefront/internal/checkout/service"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/db"
	"github.com/fjod/go_storefront/internal/events"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/logging"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/payment/stripe"
	"github.com/fjod/go_storefront/internal/payment/stub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database setup
	conn, err := db.OpenAndMigrate(cfg.Database.Path)
	if err != nil {
		logger.Fatal("database_init_failed", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer conn.Close()
	logger.Info("database_ready", zap.String("path", cfg.Database.Path))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Catalog
	catalogCache, closeCache := newCatalogCache(ctx, cfg, logger)
	defer closeCache()
	catalog := catalogsvc.NewCatalogService(catalogrepo.NewRepository(conn), catalogCache, m)

	// Carts
	registry := cart.NewRegistry(
		cart.WithTTL(cfg.Session.IdleTTL),
		cart.WithCleanupInterval(cfg.Session.CleanupInterval),
		cart.WithObserver(cart.NewSessionLogger(logger, m)),
		cart.WithListener(cart.MutationCounter(m)),
	)
	defer registry.Close()

	// Checkout
	provider := payment.NewBreaker(newPaymentProvider(cfg, logger), payment.BreakerSettings{
		Name:                "payment-" + cfg.Payment.Provider,
		ConsecutiveFailures: cfg.Payment.BreakerFailures,
		OpenTimeout:         cfg.Payment.BreakerTimeout,
	}, logger, m)

	ledger := checkoutrepo.NewRepository(conn)
	checkout := checkoutsvc.NewCheckoutService(ledger, provider, m, checkoutsvc.Options{
		VerifyPayment: cfg.Payment.VerifyPayment,
	})

	var pub events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		logger.Info("kafka_publisher_enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		pub = events.NewLogPublisher(logger)
	}
	defer pub.Close()

	var wg sync.WaitGroup
	poller := publisher.NewOutboxPoller(ledger, pub, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	router := h.NewRouter(
		h.RouterConfig{
			Logger:         logger,
			Metrics:        m,
			Gatherer:       reg,
			RequestTimeout: cfg.RequestTimeout,
			Cookie: h.SessionCookie{
				Name:   cfg.Session.CookieName,
				Secure: cfg.Session.CookieSecure,
				MaxAge: cfg.Session.IdleTTL,
			},
		},
		h.NewProductHandler(catalog),
		h.NewCartHandler(catalog, registry),
		h.NewCheckoutHandler(catalog, registry, checkout, cfg.PublicBaseURL),
		h.NewOrdersHandler(checkout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http_server_starting", zap.String("addr", srv.Addr), zap.String("payment_provider", cfg.Payment.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_failed", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server_exited")
}

// newCatalogCache connects to Redis when configured. The catalog works
// without it, so an unreachable Redis only disables caching.
func newCatalogCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.CatalogCache, func()) {
	if cfg.Redis.Addr == "" {
		logger.Info("catalog_cache_disabled")
		return cache.NopCache{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis_unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return cache.NopCache{}, func() {}
	}
	logger.Info("redis_connected", zap.String("addr", cfg.Redis.Addr))

	return cache.NewRedisCache(client, cfg.Redis.TTL), func() { _ = client.Close() }
}

func newPaymentProvider(cfg *config.Config, logger *zap.Logger) payment.Provider {
	switch cfg.Payment.Provider {
	case config.ProviderStripe:
		return stripe.New(cfg.Payment.StripeSecretKey)
	default:
		logger.Warn("stub_payment_provider", zap.String("detail", "every checkout is approved without a charge"))
		return stub.New()
	}
}
