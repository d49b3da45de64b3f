package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/infrastructure/cache"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/ecommerce"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/messaging"
	"github.com/erp/stocksync/internal/infrastructure/metrics"
	"github.com/erp/stocksync/internal/infrastructure/persistence"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/erp/stocksync/internal/interfaces/http/handler"
	"github.com/erp/stocksync/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(baseLog)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OpenTelemetry: traces, metrics and the log bridge
	otel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := otel.Logger(baseLog, zapcore.InfoLevel)

	log.Info("Starting stock sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled
	dbTracing.DBName = cfg.Database.DBName
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(otel.Meter.Meter("stocksync/db"), sqlDB.Stats); err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis is optional; the interface must stay nil when it is off
	var rdb redis.UniversalClient
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		rdb = redisClient
		defer func() { _ = redisClient.Close() }()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	dedupe := cache.NewIdempotencyStore(rdb, log)
	defer func() { _ = dedupe.Close() }()

	// Platform Admin API
	platform, err := ecommerce.NewAdminClient(ecommerce.ClientConfig{
		BaseURLTemplate: cfg.Platform.BaseURLTemplate,
		APIVersion:      cfg.Platform.APIVersion,
		Timeout:         cfg.Platform.Timeout,
		PageSize:        cfg.Platform.PageSize,
		MaxPages:        cfg.Platform.MaxPages,
	}, log.Named("platform"))
	if err != nil {
		log.Fatal("Invalid platform client configuration", zap.Error(err))
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantSyncConfigRepository(db.DB)
	mappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	unmappedRepo := persistence.NewGormUnmappedProductRepository(db.DB)
	stockRepo := persistence.NewGormStockRepository(db.DB)
	ledgerRepo := persistence.NewGormSalesLedgerRepository(db.DB)
	warehouseRepo := persistence.NewGormWarehouseMappingRepository(db.DB)

	// Application services
	syncMetrics := metrics.NewSyncMetrics()
	registry := app.NewMappingRegistry(mappingRepo, unmappedRepo, stockRepo, log)
	ledger := app.NewLedgerWriter(ledgerRepo, syncMetrics, log)
	inventory := app.NewInventorySyncService(registry, stockRepo, platform, syncMetrics, cfg.Sync.EchoWindow, log)
	inventory.SetLocationMirror(warehouseRepo)
	orders := app.NewOrderSyncService(registry, ledger, syncMetrics, log)
	warehouses := app.NewWarehouseMirrorService(warehouseRepo, platform, log)
	reconciliation := app.NewReconciliationService(tenantRepo, platform, orders, app.ReconciliationConfig{
		Window:        cfg.Sync.ReconcileWindow,
		Concurrency:   cfg.Sync.ReconcileConcurrency,
		TenantTimeout: cfg.Sync.TenantTimeout,
	}, syncMetrics, log)

	eventRouter := app.NewEventRouter(app.EventRouterConfig{
		Tenants:    tenantRepo,
		Inventory:  inventory,
		Orders:     orders,
		Registry:   registry,
		Warehouses: warehouses,
		Dedupe:     dedupe,
		DedupeTTL:  cfg.Sync.DeliveryDedupeTTL,
		Logger:     log,
	})

	// Order sync queue
	queue, err := scheduler.NewOrderSyncQueue(scheduler.OrderSyncQueueConfig{
		Workers:        cfg.Sync.Workers,
		QueueSize:      cfg.Sync.QueueSize,
		JobTimeout:     cfg.Sync.JobTimeout,
		MaxRetries:     cfg.Sync.MaxRetries,
		RetryBaseDelay: cfg.Sync.RetryBaseDelay,
		RetryMaxDelay:  cfg.Sync.RetryMaxDelay,
		EnqueueMaxWait: cfg.Sync.EnqueueMaxWait,
	}, eventRouter, log.Named("order-queue"))
	if err != nil {
		log.Fatal("Failed to create order sync queue", zap.Error(err))
	}
	eventRouter.SetQueue(queue)
	syncMetrics.RegisterQueue(queue.Stats)

	// Reconciliation sweep, serialized across replicas when Redis is available
	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if rdb != nil {
		locker = scheduler.NewRedisLocker(rdb)
	}
	triggerCfg := scheduler.DefaultReconciliationTriggerConfig()
	triggerCfg.Interval = cfg.Sync.ReconcileInterval
	triggerCfg.LockTTL = cfg.Sync.ReconcileLockTTL
	trigger, err := scheduler.NewReconciliationTrigger(triggerCfg, reconciliation, locker, log.Named("reconciliation"))
	if err != nil {
		log.Fatal("Failed to create reconciliation trigger", zap.Error(err))
	}

	// Optional Kafka ingestion
	var consumer *messaging.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = messaging.NewConsumer(messaging.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			GroupID:  cfg.Kafka.GroupID,
			MinBytes: cfg.Kafka.MinBytes,
			MaxBytes: cfg.Kafka.MaxBytes,
			MaxWait:  cfg.Kafka.MaxWait,
		}, log.Named("kafka"))
		if err != nil {
			log.Fatal("Failed to create Kafka consumer", zap.Error(err))
		}
	}

	// HTTP surface
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		TracingEnabled: cfg.Telemetry.Enabled,
	}, log)
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	router.NewRouter(engine, router.WithAdminToken(cfg.HTTP.AdminToken)).
		Register(handler.NewSystemHandler(version, checks, syncMetrics.Handler())).
		Register(handler.NewWebhookHandler(tenantRepo, eventRouter, log.Named("webhook"))).
		RegisterAdmin(handler.NewAdminHandler(handler.AdminHandlerConfig{
			Tenants:    eventRouter,
			Inventory:  inventory,
			Reconciler: reconciliation,
			Locations:  warehouses,
			Unmapped:   registry,
			Sweeps:     trigger,
		})).
		Setup()
	if cfg.HTTP.AdminToken == "" {
		log.Warn("Admin token not configured, /api/v1 rejects every request")
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Background workers
	if err := queue.Start(ctx); err != nil {
		log.Fatal("Failed to start order sync queue", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start reconciliation trigger", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Start(ctx, messaging.NewEventHandler(eventRouter, log.Named("kafka")).Handle); err != nil {
			log.Fatal("Failed to start Kafka consumer", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// stop intake first, then the workers that drain it
		var errs []error
		errs = append(errs, srv.Shutdown(shutdownCtx))
		if consumer != nil {
			errs = append(errs, consumer.Stop())
		}
		errs = append(errs, trigger.Stop(shutdownCtx))
		errs = append(errs, queue.Stop(shutdownCtx))
		errs = append(errs, otel.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}
