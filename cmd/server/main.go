package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appmessaging "github.com/chatwire/backend/internal/application/messaging"
	"github.com/chatwire/backend/internal/infrastructure/cache"
	"github.com/chatwire/backend/internal/infrastructure/config"
	"github.com/chatwire/backend/internal/infrastructure/logger"
	"github.com/chatwire/backend/internal/infrastructure/messenger"
	"github.com/chatwire/backend/internal/infrastructure/persistence"
	"github.com/chatwire/backend/internal/infrastructure/persistence/models"
	"github.com/chatwire/backend/internal/infrastructure/retry"
	"github.com/chatwire/backend/internal/infrastructure/scheduler"
	"github.com/chatwire/backend/internal/infrastructure/telemetry"
	"github.com/chatwire/backend/internal/interfaces/http/handler"
	"github.com/chatwire/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ChatWire Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: 200 * time.Millisecond,
			DBSystem:        "postgresql",
		}, log)
		if err := dbTracing.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Run schema migrations
	if err := db.DB.AutoMigrate(
		&models.IntegrationConnectionModel{},
		&models.MessageModel{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Webhook delivery dedup store
	dedupFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	dedupStore, err := dedupFactory.CreateStore(cfg.Dedup.Backend)
	if err != nil {
		log.Fatal("Failed to create webhook dedup store", zap.Error(err))
	}
	defer func() {
		if err := dedupStore.Close(); err != nil {
			log.Error("Error closing dedup store", zap.Error(err))
		}
	}()

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)

	// Initialize platform adapters and application services. No analyzer is
	// deployed yet: order-intent detection stays off until the analysis
	// service ships, messages are stored either way.
	storageRetry := appmessaging.WithStorageRetry(retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	})
	channelFactory := messenger.NewChannelFactory(cfg, log)
	sellerLookup := appmessaging.NewConnectionSellerLookup(connectionRepo, log)
	webhookService := appmessaging.NewWebhookProcessingService(sellerLookup, messageRepo, nil, log, storageRetry)
	integrationManager := appmessaging.NewIntegrationManager(connectionRepo, channelFactory, messageRepo, log, storageRetry)

	// Start background sync
	syncScheduler := scheduler.NewSyncScheduler(integrationManager, connectionRepo, cfg.Sync, log)
	if err := syncScheduler.Start(); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer syncScheduler.Stop()

	// Initialize HTTP handlers
	webhookDedup := dedupStore
	if !cfg.Dedup.Enabled {
		webhookDedup = nil
	}
	webhookHandler := handler.NewWebhookHandler(channelFactory, webhookService, webhookDedup, cfg.Dedup.TTL, log)
	integrationHandler := handler.NewIntegrationHandler(integrationManager, cfg.Sync.TokenRefreshWindow, log)

	r := router.New(cfg, log)
	r.RegisterWebhooks(webhookHandler)
	r.RegisterAPI(integrationHandler)

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        r.Engine(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}
