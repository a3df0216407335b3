// Command server wires deliverycore's components together and runs the HTTP
// API and the dispatch scheduler in one process, grounded on the teacher's
// cmd/server/main.go assembly order: config -> logger -> metrics -> database
// -> Kafka -> repositories -> services -> handlers -> servers -> graceful
// shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doInfinitely/deliverycore/internal/adapters/payment"
	"github.com/doInfinitely/deliverycore/internal/adapters/router"
	"github.com/doInfinitely/deliverycore/internal/adapters/verification"
	"github.com/doInfinitely/deliverycore/internal/config"
	"github.com/doInfinitely/deliverycore/internal/dispatch"
	"github.com/doInfinitely/deliverycore/internal/eventlog"
	"github.com/doInfinitely/deliverycore/internal/idempotency"
	httpHandler "github.com/doInfinitely/deliverycore/internal/handler/http"
	"github.com/doInfinitely/deliverycore/internal/lock"
	"github.com/doInfinitely/deliverycore/internal/messaging"
	"github.com/doInfinitely/deliverycore/internal/observability"
	"github.com/doInfinitely/deliverycore/internal/offers"
	"github.com/doInfinitely/deliverycore/internal/orderservice"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/doInfinitely/deliverycore/internal/scheduler"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Initialize logger
	logger := observability.NewLogger(observability.LoggerConfig{
		ServiceName: cfg.Service.Name,
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
	})
	logger.Info().
		Str("service", cfg.Service.Name).
		Str("environment", cfg.Service.Environment).
		Msg("deliverycore starting")

	// 3. Initialize metrics
	metrics := observability.NewMetrics()

	// 4. Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}
	logger.Info().Msg("database connection established")

	// 5. Initialize Kafka producer (carries dossier events out of the
	// transactional outbox; never on the hot request path).
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Compression = sarama.CompressionSnappy

	kafkaProducer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create Kafka producer")
	}
	defer kafkaProducer.Close()
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka producer initialized")

	// 6. Initialize the distributed lock (task_accept; the sweeper singleton
	// uses a Postgres advisory lock instead, see step 9)
	redisLock, err := lock.NewRedisLock(cfg.Redis.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize redis lock")
	}

	// 7. Initialize repositories
	orderRepo := repository.NewPostgresOrderRepository(logger)
	taskRepo := repository.NewPostgresTaskRepository(logger)
	driverRepo := repository.NewPostgresDriverRepository(logger)
	catalogRepo := repository.NewPostgresCatalogRepository(logger)
	offerLogRepo := repository.NewPostgresOfferLogRepository(logger)
	outboxRepo := repository.NewPostgresOutboxRepository(dbPool, logger)
	idemStore := idempotency.NewPostgresStore(dbPool, logger)
	dossier := eventlog.NewPostgresEventLog(logger, outboxRepo)

	// 8. Initialize vendor adapters (tagged variant per IDV_VENDOR /
	// PAYMENT_PROCESSOR / ROUTER_MODE, chosen once at startup, not per call)
	verifier, err := verification.New(cfg.Vendors.IDVVendor, cfg.Vendors.OnfidoAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize verification adapter")
	}
	paymentAdapter, err := payment.New(cfg.Vendors.PaymentVendor, cfg.Vendors.StripeAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize payment adapter")
	}
	routerAdapter := router.New(cfg.Vendors.RouterMode, cfg.Vendors.OSRMBaseURL)

	// 9. Initialize the order service (checkout -> verify -> pay -> doorstep
	// -> deliver), then the offer manager, which the order service's
	// TryTransition feeds best-effort task->order cascades back into.
	orderSvc := orderservice.New(
		dbPool,
		orderRepo,
		taskRepo,
		driverRepo,
		catalogRepo,
		dossier,
		idemStore,
		verifier,
		paymentAdapter,
		metrics,
		logger,
		cfg.Checkout,
		cfg.Dispatch,
		cfg.Vendors.AgeThresholdYrs,
	)

	offerMgr := offers.NewManager(
		dbPool,
		taskRepo,
		offerLogRepo,
		driverRepo,
		orderRepo,
		dossier,
		idemStore,
		redisLock,
		lock.NewAdvisoryGuard(dbPool, lock.OfferSweepAdvisoryKey),
		orderSvc,
		logger,
	)

	// 10. Initialize the dispatch scheduler (fast tick / batch tick / offer
	// expiry sweep), sharing the same repositories and offer manager.
	dispatchParams := dispatch.Params{
		KPrimeCandidates:  cfg.Dispatch.KPrimeCandidates,
		KCandidates:       cfg.Dispatch.KCandidates,
		RadiusMeters:      cfg.Dispatch.RadiusMeters,
		OfferTTLSeconds:   cfg.Dispatch.OfferTTLSeconds,
		HardPickupETAMaxS: cfg.Dispatch.HardPickupETAMaxS,
		H3Resolution:      cfg.Dispatch.H3Resolution,
		ClusterRadiusM:    cfg.Dispatch.ClusterRadiusM,
		Weights: dispatch.Weights{
			AlphaTotalTime: cfg.Dispatch.WeightAlphaTime,
			BetaLateness:   cfg.Dispatch.WeightBetaLateness,
			GammaDeadhead:  cfg.Dispatch.WeightGammaDeadhd,
			RhoReturnRisk:  cfg.Dispatch.WeightRhoRisk,
			LambdaFairness: cfg.Dispatch.WeightLambdaFair,
			MuZone:         cfg.Dispatch.WeightMuZone,
		},
	}
	offerTTL := time.Duration(cfg.Dispatch.OfferTTLSeconds) * time.Second
	runner := scheduler.NewRunner(
		dbPool,
		orderRepo,
		taskRepo,
		driverRepo,
		catalogRepo,
		offerMgr,
		routerAdapter,
		scheduler.Config{
			FastInterval:   time.Duration(cfg.Dispatch.FastTickInterval) * time.Second,
			BatchInterval:  time.Duration(cfg.Dispatch.BatchTickInterval) * time.Second,
			ExpireInterval: 15 * time.Second,
			OfferTTL:       offerTTL,
			Params:         dispatchParams,
		},
		metrics,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("dispatch scheduler stopped unexpectedly")
		}
	}()
	logger.Info().Msg("dispatch scheduler started")

	// 11. Start the outbox publisher (drains dossier events to Kafka)
	publisher := messaging.NewOutboxPublisher(outboxRepo, kafkaProducer, cfg.Kafka.DossierTopic, logger)
	go publisher.Start(ctx)
	logger.Info().Msg("outbox publisher started")

	// 12. Assemble and start the HTTP server
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpHandler.NewRouter(httpHandler.RouterConfig{
			Pool:             dbPool,
			KafkaProducer:    kafkaProducer,
			Orders:           orderSvc,
			Offers:           offerMgr,
			Scheduler:        runner,
			Metrics:          metrics,
			Logger:           logger,
			OfferTTL:         offerTTL,
			InternalAPIToken: cfg.InternalAPIToken,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// 13. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// 14. Graceful shutdown: stop the scheduler and outbox publisher, then
	// drain in-flight HTTP requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("HTTP server stopped")

	logger.Info().Msg("shutdown complete")
}
