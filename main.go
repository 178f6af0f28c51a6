package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfwatch/ingestion-worker/common/config"
	"github.com/shelfwatch/ingestion-worker/common/db"
	"github.com/shelfwatch/ingestion-worker/common/diagnostics"
	"github.com/shelfwatch/ingestion-worker/common/logger"
	"github.com/shelfwatch/ingestion-worker/common/messaging"
	"github.com/shelfwatch/ingestion-worker/common/redis"
	"github.com/shelfwatch/ingestion-worker/common/storage"
	"github.com/shelfwatch/ingestion-worker/scrapers"
	"github.com/shelfwatch/ingestion-worker/scrapers/aldi"
	"github.com/shelfwatch/ingestion-worker/scrapers/coles"
	"github.com/shelfwatch/ingestion-worker/scrapers/woolworths"

	"github.com/rs/zerolog/log"

	"github.com/joho/godotenv"
)

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	// Create a base context with cancel for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE DATABASES
	dbConn, err := db.SetupDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup database")
	}
	defer dbConn.Close()

	// Initialize zerolog database hooks
	logger.InitializeLogging(dbConn)
	log.Info().Msg("Zerolog database hooks initialized")

	// INITIATE NATS CLIENT
	// Retries until the broker is reachable: without it there is no work.
	natsClient, err := messaging.SetupNatsBroker(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup NATS client")
	}
	defer natsClient.Close()

	// Diagnostics sinks are optional: a worker without GCS or Redis still
	// scrapes, it just keeps less evidence.
	var storageService storage.StorageService
	if cfg.GCS.Bucket != "" {
		gcsStorage, err := storage.NewGCSStorage(ctx, storage.GCSConfig{
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to setup GCS storage, diagnostics uploads disabled")
		} else {
			storageService = gcsStorage
		}
	}

	var redisClient *redis.RedisClient
	if rc, err := redis.NewClient(cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, incident records disabled")
	} else {
		redisClient = rc
		defer redisClient.Close()
	}

	recorder := diagnostics.NewRecorder(storageService, redisClient, cfg.GCS.Bucket)

	// Register the per-store strategies. Browser-backed ones launch their
	// browser here so a broken Chrome install fails the boot, not a job.
	strategies := []scrapers.Strategy{
		aldi.NewScraper(cfg),
		coles.NewScraper(cfg, recorder),
		woolworths.NewScraper(cfg),
	}
	for _, strategy := range strategies {
		if err := strategy.Setup(ctx); err != nil {
			log.Fatal().Err(err).Str("store", string(strategy.Store())).Msg("Failed to setup scraper")
		}
	}
	log.Info().Int("strategies", len(strategies)).Msg("Scrapers registered successfully")

	publisher, err := messaging.NewNatsProductPublisher(ctx, natsClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup product publisher")
	}

	jobService := scrapers.NewService(
		scrapers.NewDispatcher(strategies...),
		dbConn.Queries,
		logger.NewLogService(dbConn),
		publisher,
	)

	consumer := messaging.NewJobConsumer(natsClient, jobService)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	// Inject dependencies
	server.SetDB(dbConn)
	server.SetNatsClient(natsClient)

	// Setup routes
	server.setupRoute()

	// Start server in a goroutine
	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Msg("Server started successfully")

	// Wait for shutdown signal
	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down")
	}

	// Stop taking jobs before tearing anything down.
	consumer.Stop()

	for _, strategy := range strategies {
		if err := strategy.Teardown(ctx); err != nil {
			log.Error().Err(err).Str("store", string(strategy.Store())).Msg("Scraper teardown failed")
		}
	}

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server gracefully stopped")
}
