// Package main provides the main entry point for the asset generation and compositing service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amirphl/asset-forge/app/handlers"
	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/middleware"
	"github.com/amirphl/asset-forge/app/router"
	"github.com/amirphl/asset-forge/app/scheduler"
	"github.com/amirphl/asset-forge/app/services"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	staticPublicPrefix  = "/static/public"
	cacheHealthInterval = 30 * time.Second
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	log       *logger.Logger
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		Output:           cfg.Logging.Output,
		FilePath:         cfg.Logging.FilePath,
		MaxSize:          cfg.Logging.MaxSize,
		MaxBackups:       cfg.Logging.MaxBackups,
		MaxAge:           cfg.Logging.MaxAge,
		Compress:         cfg.Logging.Compress,
		EnableCaller:     cfg.Logging.EnableCaller,
		EnableStacktrace: cfg.Logging.EnableStacktrace,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting asset forge",
		"environment", cfg.Deployment.Environment,
		"version", cfg.Deployment.Version,
		"commit", cfg.Deployment.CommitHash,
	)

	// Initialize application
	app, err := initializeApplication(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info("Server starting", "address", address)

		var listenErr error
		if cfg.Security.TLSEnabled {
			listenErr = app.server.Listen(address, fiber.ListenConfig{
				CertFile:    cfg.Security.TLSCertFile,
				CertKeyFile: cfg.Security.TLSKeyFile,
			})
		} else {
			listenErr = app.server.Listen(address)
		}
		serverErr <- listenErr
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case sig := <-sigChan:
		log.Info("Shutting down gracefully", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("Server stopped unexpectedly", "error", err)
		}
	}

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Server stopped")
}

// initializeDatabase opens the configured database, applies pooling and migrates the schema
func initializeDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			gormWriter{log: log},
			gormlogger.Config{SlowThreshold: cfg.SlowQueryTime, LogLevel: gormlogger.Warn, IgnoreRecordNotFoundError: true},
		)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite serializes writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Info("Database connection established",
		"driver", cfg.Driver,
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"auto_migrate", cfg.AutoMigrate,
	)

	return db, nil
}

// gormWriter routes GORM's slow query log into the application logger
type gormWriter struct {
	log *logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, log *logger.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
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

	log.Info("Redis connection established", "addr", opt.Addr, "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis.
// The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *logger.Logger) func() {
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
					log.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeBlobStores builds the private and public stores for the configured provider
func initializeBlobStores(ctx context.Context, cfg config.StorageConfig) (private, public services.BlobStore, stop func(), err error) {
	switch cfg.Provider {
	case "gcs":
		client, err := services.NewGCSClient(ctx, services.GCSOptions{
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.EmulatorHost,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		privateStore, err := services.NewGCSBlobStore(client, services.GCSOptions{Bucket: cfg.PrivateBucket, Timeout: cfg.Timeout})
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("private bucket: %w", err)
		}
		publicStore, err := services.NewGCSBlobStore(client, services.GCSOptions{Bucket: cfg.PublicBucket, CDNDomain: cfg.CDNDomain, Timeout: cfg.Timeout})
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("public bucket: %w", err)
		}
		return privateStore, publicStore, func() { _ = client.Close() }, nil

	case "memory":
		return services.NewMemoryBlobStore(cfg.PrivateBaseURL), services.NewMemoryBlobStore(cfg.PublicBaseURL), func() {}, nil

	default:
		privateStore, err := services.NewLocalBlobStore(filepath.Join(cfg.LocalRoot, "private"), cfg.PrivateBaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		publicStore, err := services.NewLocalBlobStore(filepath.Join(cfg.LocalRoot, "public"), cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return privateStore, publicStore, func() {}, nil
	}
}

// initializeGenerator selects the image generation client
func initializeGenerator(cfg config.GenerationConfig) services.ImageGenerator {
	switch cfg.Provider {
	case "openai":
		return services.NewOpenAIImageClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Size, cfg.Timeout)
	default:
		return services.NewMockImageGenerator(1024, 1024)
	}
}

// initializeBackgroundRemover selects the background removal client
func initializeBackgroundRemover(cfg config.BackgroundRemovalConfig) services.BackgroundRemover {
	switch cfg.Provider {
	case "http":
		return services.NewHTTPBackgroundRemover(cfg.URL, cfg.APIKey, cfg.Timeout)
	default:
		return services.NewMockBackgroundRemover()
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, log *logger.Logger) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cacheHealthInterval, log))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	privateStore, publicStore, closeStores, err := initializeBlobStores(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob stores: %w", err)
	}
	stopFuncs = append(stopFuncs, closeStores)
	log.Info("Blob stores initialized", "provider", cfg.Storage.Provider)

	// Initialize repositories
	assetRepo := repository.NewAssetRecordRepository(db)
	queueRepo := repository.NewQueueEntryRepository(db)
	rejectionRepo := repository.NewRejectionRecordRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	avatarRepo := repository.NewAvatarCompositeRepository(db)
	templateRepo := repository.NewSceneTemplateRepository(db)
	sceneRepo := repository.NewSceneCompositeRepository(db)
	buildingRepo := repository.NewBuildingConfigurationRepository(db)

	// Initialize services
	generator := initializeGenerator(cfg.Generation)
	remover := initializeBackgroundRemover(cfg.BackgroundRemoval)
	normalizer := services.NewImageNormalizer()
	compositor := services.NewLayerCompositor(cfg.Pipeline.CompositorParallelism)

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
	log.Info("Token service initialized", "issuer", cfg.JWT.Issuer, "audience", cfg.JWT.Audience)

	// Initialize flows
	orchestrator := businessflow.NewGenerationOrchestrator(
		db,
		assetRepo,
		queueRepo,
		auditRepo,
		generator,
		privateStore,
		rc,
		cfg.Cache,
		cfg.Pipeline,
		cfg.Generation.Timeout,
		log.With("component", "generation"),
	)

	assetFlow := businessflow.NewAssetFlow(orchestrator, assetRepo, queueRepo, rejectionRepo)
	reviewFlow := businessflow.NewReviewFlow(db, orchestrator, rejectionRepo)
	publishFlow := businessflow.NewPublishFlow(
		db,
		orchestrator,
		privateStore,
		publicStore,
		remover,
		normalizer,
		cfg.BackgroundRemoval.Timeout,
		log.With("component", "publish"),
	)
	compositeFlow := businessflow.NewCompositeFlow(
		db,
		avatarRepo,
		templateRepo,
		sceneRepo,
		assetRepo,
		auditRepo,
		publicStore,
		compositor,
		cfg.Pipeline,
		log.With("component", "composite"),
	)
	buildingFlow := businessflow.NewBuildingConfigFlow(db, buildingRepo, assetRepo, auditRepo)
	auditFlow := businessflow.NewAuditFlow(auditRepo)

	// Initialize handlers
	httpLog := log.With("component", "http")
	appHandlers := router.Handlers{
		Assets:     handlers.NewAssetHandler(assetFlow, cfg.Server.RequestTimeout, httpLog),
		Review:     handlers.NewReviewHandler(reviewFlow, publishFlow, cfg.Server.RequestTimeout, httpLog),
		Composites: handlers.NewCompositeHandler(compositeFlow, cfg.Server.RequestTimeout, httpLog),
		Buildings:  handlers.NewBuildingHandler(buildingFlow, cfg.Server.RequestTimeout, httpLog),
		Audit:      handlers.NewAuditHandler(auditFlow, cfg.Server.RequestTimeout, httpLog),
		Session:    handlers.NewSessionHandler(tokenService, cfg.Server.RequestTimeout, httpLog),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	// Initialize router
	fiberRouter := router.NewFiberRouter(cfg, appHandlers, authMiddleware, healthChecks, httpLog).(*router.FiberRouter)
	if cfg.Storage.Provider == "local" {
		fiberRouter.ServeStatic(staticPublicPrefix, filepath.Join(cfg.Storage.LocalRoot, "public"))
	}

	if cfg.Pipeline.SceneEvictionEnabled {
		evictor := scheduler.NewSceneCacheEvictor(compositeFlow, cfg.Pipeline.SceneCacheTTL, cfg.Pipeline.SceneEvictionInterval, log)
		stopFuncs = append(stopFuncs, evictor.Start(context.Background()))
	}

	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		log:       log,
		stopFuncs: stopFuncs,
	}, nil
}
