// Package app assembles the checkout services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"kart-checkout/internal/catalog"
	"kart-checkout/internal/config"
	"kart-checkout/internal/database"
	"kart-checkout/internal/gateway"
	"kart-checkout/internal/handler"
	"kart-checkout/internal/messaging"
	"kart-checkout/internal/repository"
	"kart-checkout/internal/router"
	"kart-checkout/internal/service"
	"kart-checkout/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the wired services and the resources they depend on.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Pool   *pgxpool.Pool

	Methods  repository.PaymentMethodRepository
	Catalog  *catalog.Catalog
	Gateways *gateway.Registry

	Carts    service.CartService
	Checkout service.CheckoutService
	Orders   service.OrderService
	Payments service.PaymentService

	metricsHandler http.Handler
	closers        []func(context.Context) error
}

// New connects to the database and the optional Redis and Kafka backends
// and wires every service. Close releases them in reverse order.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *App, err error) {
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise tracing: %w", err)
	}
	a.onClose(shutdownTracer)

	metricsHandler, mp, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise metrics: %w", err)
	}
	a.onClose(shutdownMeter)
	a.metricsHandler = metricsHandler

	metrics, err := telemetry.NewMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to register instruments: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise database: %w", err)
	}
	a.Pool = pool
	a.onClose(func(context.Context) error { pool.Close(); return nil })

	a.Methods = repository.NewPaymentMethodRepository(pool, logger)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.onClose(func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, catalog cache will fall through")
		}
		a.Methods = catalog.NewCachedRepository(a.Methods, rdb, cfg.Redis.CatalogTTL, logger)
	}
	a.Catalog = catalog.New(a.Methods, logger)

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("publishing status events to kafka")
	}
	a.onClose(func(context.Context) error { return publisher.Close() })

	client := gateway.NewHTTPClient(cfg.Payments.GatewayTimeout)
	a.Gateways = gateway.NewDefaultRegistry(cfg.Payments, cfg.Gateways, client, logger)

	carts := repository.NewCartRepository(pool, logger)
	orders := repository.NewOrderRepository(pool, logger)
	products := repository.NewProductRepository(pool, logger)
	customers := repository.NewCustomerRepository(pool, logger)
	payments := repository.NewPaymentRepository(pool, logger)

	a.Carts = service.NewCartService(carts, products, customers, logger)
	a.Orders = service.NewOrderService(orders, products, publisher, logger)
	a.Checkout = service.NewCheckoutService(service.CheckoutDeps{
		Carts:          carts,
		Orders:         orders,
		Customers:      customers,
		Payments:       payments,
		Catalog:        a.Catalog,
		Gateways:       a.Gateways,
		Publisher:      publisher,
		Metrics:        metrics,
		Currency:       cfg.Payments.Currency,
		GatewayTimeout: cfg.Payments.GatewayTimeout,
	}, logger)
	a.Payments = service.NewPaymentService(service.PaymentDeps{
		Orders:         orders,
		Payments:       payments,
		Catalog:        a.Catalog,
		Gateways:       a.Gateways,
		Publisher:      publisher,
		Metrics:        metrics,
		Currency:       cfg.Payments.Currency,
		GatewayTimeout: cfg.Payments.GatewayTimeout,
	}, logger)

	return a, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return router.New(router.Handlers{
		Carts:    handler.NewCartHandler(a.Carts, a.Logger),
		Orders:   handler.NewOrderHandler(a.Checkout, a.Orders, a.Payments, a.Logger),
		Payments: handler.NewPaymentHandler(a.Payments, a.Logger),
		Metrics:  a.metricsHandler,
		Gateways: a.Gateways.Codes(),
	}, a.Config.Auth.APIKey, a.Logger)
}

// SeedCatalog loads payment methods from path, S3 first when enabled.
func (a *App) SeedCatalog(ctx context.Context, path string) (int, error) {
	fileLoader := catalog.NewFileLoader(a.Logger)
	var s3Loader catalog.Loader
	if a.Config.S3.Enabled {
		l, err := catalog.NewS3Loader(ctx, a.Config.S3.Bucket, a.Config.S3.Region, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	}
	loader := catalog.NewFallbackLoader(s3Loader, fileLoader, a.Config.S3.Prefix, s3Loader != nil, a.Logger)
	return catalog.NewSeeder(loader, a.Methods, a.Logger).Seed(ctx, path)
}

// SeedDefaults upserts the built-in payment method catalog.
func (a *App) SeedDefaults(ctx context.Context) (int, error) {
	return catalog.NewSeeder(nil, a.Methods, a.Logger).Apply(ctx, catalog.DefaultMethods())
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
