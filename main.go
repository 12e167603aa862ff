package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"creach-t/sparepartsworker/config"
	"creach-t/sparepartsworker/internal/fetch"
	"creach-t/sparepartsworker/internal/scraper"
	"creach-t/sparepartsworker/logger"
	"creach-t/sparepartsworker/services/cache"
	"creach-t/sparepartsworker/services/publisher"
	"creach-t/sparepartsworker/services/storage"
	"creach-t/sparepartsworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("scrape_interval", cfg.ScrapeInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Build the scraping pipeline
	fetcher := fetch.NewExecutor(fetch.Policy{
		MaxAttempts:       cfg.FetchMaxAttempts,
		BaseDelay:         cfg.FetchBaseDelay,
		MaxDelay:          fetch.DefaultPolicy().MaxDelay,
		JitterFrac:        fetch.DefaultPolicy().JitterFrac,
		PerAttemptTimeout: cfg.FetchTimeout,
	}, services.Cache)

	normalizer := scraper.NewNormalizer()
	sources := scraper.CreateSources(&cfg, fetcher, normalizer)
	if len(sources) == 0 {
		log.Fatal().Msg("No supplier sources were created")
	}

	log.Info().
		Int("source_count", len(sources)).
		Msg("Created supplier sources")

	reconciler := scraper.NewReconciler(services.Storage, services.Publisher)
	orchestrator := scraper.NewOrchestrator(normalizer, reconciler, cfg.WorkerConcurrency, cfg.RunTimeout)

	// Create and start worker
	w := worker.NewWorker(orchestrator, sources, services.Publisher, cfg.ScrapeInterval)

	if cfg.RunOnce {
		w.RunOnce(ctx)
		return
	}

	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting spare parts worker")
		w.Start(ctx)
		close(workerDone)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case <-workerDone:
		log.Info().Msg("Worker exited")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Storage   storage.Storage
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Storage != nil {
		s.Storage.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize storage
	store, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	services.Storage = store

	logger.Info("Connected to Postgres")

	// Initialize cache service
	services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)

	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	// Initialize publisher
	services.Publisher = publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
