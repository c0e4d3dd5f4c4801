package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikpour310/accountinox/internal/config"
	"github.com/nikpour310/accountinox/internal/event"
	"github.com/nikpour310/accountinox/internal/gateway"
	"github.com/nikpour310/accountinox/internal/gateway/mock"
	"github.com/nikpour310/accountinox/internal/gateway/zarinpal"
	"github.com/nikpour310/accountinox/internal/gateway/zibal"
	handler "github.com/nikpour310/accountinox/internal/handler/http"
	"github.com/nikpour310/accountinox/internal/repository/postgres"
	"github.com/nikpour310/accountinox/internal/service"
	"github.com/nikpour310/accountinox/migrations"
	"github.com/nikpour310/accountinox/pkg/database"
	"github.com/nikpour310/accountinox/pkg/health"
	"github.com/nikpour310/accountinox/pkg/httpclient"
	pkgkafka "github.com/nikpour310/accountinox/pkg/kafka"
)

// restockTopic is published by the procurement pipeline when new credential
// batches are purchased.
var restockTopic = pkgkafka.Topic("inventory", "restock")

const restockGroup = "fulfillment-restock"

// App wires together all dependencies and runs the fulfillment service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redis           *redis.Client
	producer        *pkgkafka.Producer
	dlqProducer     *pkgkafka.DLQProducer
	restockConsumer *pkgkafka.Consumer
	reaper          *service.Reaper
	httpServer      *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.SetSlowQueryLogging(200*time.Millisecond, logger)
	database.RegisterPoolMetrics(pool, "fulfillment")

	// Redis backs the order status cache. Losing it degrades reads but must
	// not stop settlement, so failure here is non-fatal.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, order cache disabled", slog.String("error", err.Error()))
		redisClient = nil
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Payment gateways, each behind its own circuit breaker.
	registry := buildGatewayRegistry(cfg, logger)
	logger.Info("payment gateways registered", slog.Any("providers", registry.Names()))

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)
	ledgerRepo := postgres.NewTransactionLogRepository(pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(pool)

	eventProducer := event.NewProducer(producer, logger)

	orderService := service.NewOrderService(orderRepo, ledgerRepo, redisClient, logger)
	paymentService := service.NewPaymentService(orderRepo, ledgerRepo, registry, cfg.CallbackBaseURL, logger)
	callbackService := service.NewCallbackService(
		pool, orderRepo, inventoryRepo, ledgerRepo, idempotencyRepo,
		registry, eventProducer, orderService, logger, cfg.VerifyTimeout,
	)
	inventoryService := service.NewInventoryService(inventoryRepo, logger)

	// Restock consumer. Redelivered events are dropped by the idempotency
	// wrapper keyed on event id, and poison messages land on the DLQ topic
	// for manual inspection.
	restockHandler := pkgkafka.IdempotentHandler(
		pkgkafka.NewMemoryIdempotencyStore(24*time.Hour),
		inventoryService.RestockHandler(),
		logger,
	)
	dlqProducer := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	restockConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: restockGroup,
		Topic:   restockTopic,
	}, restockHandler, logger).WithDLQ(dlqProducer)

	reaper := service.NewReaper(idempotencyRepo, cfg.ReaperInterval, cfg.ReaperGrace, cfg.ReaperAutoRelease, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	// HTTP router.
	router := handler.NewRouter(
		orderService, paymentService, callbackService, inventoryService,
		healthHandler,
		handler.RouterConfig{ServiceKey: cfg.ServiceKey, PprofCIDRs: cfg.PprofCIDRs},
		logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redis:           redisClient,
		producer:        producer,
		dlqProducer:     dlqProducer,
		restockConsumer: restockConsumer,
		reaper:          reaper,
		httpServer:      httpServer,
	}, nil
}

// buildGatewayRegistry wires one provider per configured merchant. The mock
// gateway is for development and integration environments only.
func buildGatewayRegistry(cfg *config.Config, logger *slog.Logger) *gateway.Registry {
	var providers []gateway.Provider

	if cfg.ZarinpalMerchantID != "" {
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("zarinpal"),
			logger,
		)
		providers = append(providers, zarinpal.New(zarinpal.Config{
			MerchantID: cfg.ZarinpalMerchantID,
			Sandbox:    cfg.ZarinpalSandbox,
		}, client))
	}

	if cfg.ZibalMerchant != "" {
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("zibal"),
			logger,
		)
		providers = append(providers, zibal.New(zibal.Config{
			Merchant: cfg.ZibalMerchant,
			Sandbox:  cfg.ZibalSandbox,
		}, client))
	}

	if cfg.MockGateway || len(providers) == 0 {
		providers = append(providers, mock.NewProvider())
	}

	return gateway.NewRegistry(providers...)
}

// Run starts the HTTP server, the restock consumer, and the reaper. It
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	go func() {
		a.logger.Info("starting restock consumer", slog.String("topic", restockTopic))
		if err := a.restockConsumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			errCh <- fmt.Errorf("restock consumer: %w", err)
		}
	}()

	go a.reaper.Run(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.restockConsumer.Close(); err != nil {
		a.logger.Error("restock consumer close error", slog.String("error", err.Error()))
	}

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.dlqProducer.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	// Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
