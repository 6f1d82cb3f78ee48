package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/capture"
	"github.com/marcote/comphawk/internal/config"
	"github.com/marcote/comphawk/internal/imagesig"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/repository"
	"github.com/marcote/comphawk/internal/scraper"
	"github.com/marcote/comphawk/internal/service"
	"github.com/marcote/comphawk/internal/storage"
)

func main() {
	// Initialize logger first (from environment, with defaults)
	appLogger := logger.NewFromEnv()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	workers := flag.Int("workers", 0, "Override worker concurrency")
	preprocessOnly := flag.Bool("preprocess", false, "Run only the reference-image preprocessing loop")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *workers > 0 {
		cfg.Worker.Concurrency = *workers
	}

	appLogger.WithFields(logger.Fields{
		"concurrency":      cfg.Worker.Concurrency,
		"poll_interval_ms": cfg.Worker.PollIntervalMs,
		"matching_enabled": cfg.Matching.Enabled,
	}).Info("Starting comp-collection worker")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	playbookRepo := repository.NewPlaybookRepository(db)
	cardRepo := repository.NewCardRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	// Initialize object storage for evidence uploads
	objectStorage, err := storage.NewS3Storage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure bucket exists
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	engine := imagesig.NewEngine()
	capturer := capture.NewCapturer(objectStorage, capture.Config{
		JPEGQuality: cfg.Capture.JPEGQuality,
		RetryDelay:  cfg.Capture.RetryDelay(),
	})

	preprocessor := service.NewPreprocessor(referenceRepo, engine, objectStorage, cfg.Worker.PollInterval())

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if *preprocessOnly {
		preprocessor.Run(ctx)
		appLogger.Info("Preprocessor exited")
		return
	}

	// Launch the shared browser; each source attempt gets its own session
	manager, err := browser.NewManager(browser.Config{
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		NavTimeout:     cfg.Browser.NavTimeout(),
	}, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to launch browser")
	}
	defer manager.Close()

	matcher := service.NewMatcher(engine, service.MatcherConfig{
		MinScore:     cfg.Matching.MinScore,
		ScrollPasses: cfg.Matching.ScrollPasses,
	})

	orchestrator := service.NewOrchestrator(manager, capturer, matcher, []scraper.Strategy{
		scraper.NewSoldListings(),
		scraper.NewLiveListings(),
		scraper.NewAggregator(),
	})

	dispatcher := service.NewDispatcher(
		jobRepo,
		playbookRepo,
		cardRepo,
		evidenceRepo,
		referenceRepo,
		engine,
		orchestrator,
		service.DispatcherConfig{
			Concurrency:     cfg.Worker.Concurrency,
			PollInterval:    cfg.Worker.PollInterval(),
			AutoAttachTopK:  cfg.Worker.AutoAttachTopK,
			MatchingEnabled: cfg.Matching.Enabled,
		},
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		preprocessor.Run(ctx)
	}()
	wg.Wait()

	appLogger.Info("Worker exited")
}
