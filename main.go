// Package main provides the main entry point for the refbako reference service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayatose/refbako/app/handlers"
	"github.com/ayatose/refbako/app/middleware"
	"github.com/ayatose/refbako/app/router"
	"github.com/ayatose/refbako/app/scheduler"
	"github.com/ayatose/refbako/app/services"
	businessflow "github.com/ayatose/refbako/business_flow"
	"github.com/ayatose/refbako/config"
	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/repository"
	"github.com/ayatose/refbako/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting refbako application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to stdout, a rotating file, or both
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		log.SetOutput(rotator)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// TranslateError maps driver duplicate-key errors onto gorm.ErrDuplicatedKey,
	// which the upsert paths rely on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize storage backend
	var (
		db            *gorm.DB
		accountRepo   repository.AccountRepository
		referenceRepo repository.ReferenceRepository
		tagRepo       repository.TagRepository
	)

	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		log.Println("Using in-memory storage backend")
		store := repository.NewMemoryStore()
		accountRepo = repository.NewMemoryAccountRepository(store)
		referenceRepo = repository.NewMemoryReferenceRepository(store)
		tagRepo = repository.NewMemoryTagRepository(store)
	default:
		var err error
		db, err = initializeDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&models.Account{}, &models.Reference{}, &models.Tag{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		accountRepo = repository.NewAccountRepository(db)
		referenceRepo = repository.NewReferenceRepository(db)
		tagRepo = repository.NewTagRepository(db)
	}

	// Seed the well-known tag ledger entries
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer seedCancel()
	if err := tagRepo.Seed(seedCtx, utils.SeedTagNames); err != nil {
		return nil, fmt.Errorf("failed to seed tags: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize domain services
	analyzerService := services.NewAnalyzerService(&cfg.AI)
	if analyzerService.Enabled() {
		log.Printf("AI analyzer enabled with model %s", cfg.AI.Model)
	} else {
		log.Println("AI analyzer disabled, ingestion will use fallback tags")
	}
	scraperService := services.NewScraperService(&cfg.Scraper)

	tagCache := businessflow.NewTagCache(rc, cfg.Cache.DefaultTTL)

	// Initialize flows
	authFlow := businessflow.NewAuthFlow(accountRepo, tokenService, db)
	ingestionFlow := businessflow.NewIngestionFlow(referenceRepo, tagRepo, analyzerService, scraperService, tagCache)
	referenceFlow := businessflow.NewReferenceFlow(referenceRepo, tagRepo, analyzerService, tagCache)
	tagFlow := businessflow.NewTagFlow(tagRepo, tagCache)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authFlow)
	referenceHandler := handlers.NewReferenceHandler(referenceFlow, ingestionFlow)
	tagHandler := handlers.NewTagHandler(tagFlow)
	scrapeHandler := handlers.NewScrapeHandler(ingestionFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		referenceHandler,
		tagHandler,
		scrapeHandler,
		authMiddleware,
		cfg.Metrics,
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScrapeScheduler(ingestionFlow, accountRepo, cfg.Scheduler)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
