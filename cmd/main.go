package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"storefront-service/internal/assets"
	"storefront-service/internal/clients"
	"storefront-service/internal/config"
	"storefront-service/internal/events"
	"storefront-service/internal/handlers"
	"storefront-service/internal/importer"
	"storefront-service/internal/middleware"
	"storefront-service/internal/repository"
	"storefront-service/internal/session"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Session store: in-process by default, Redis when replicas must share
	var sessionStore session.Store
	var memStore *session.MemoryStore
	if cfg.SessionBackend == "redis" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to parse Redis URL:", err)
		}
		redisClient := redis.NewClient(redisOpts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		cancel()
		log.Println("✓ Redis session store connected")
		sessionStore = session.NewRedisStore(redisClient)
	} else {
		memStore = session.NewMemoryStore(time.Minute)
		sessionStore = memStore
		log.Println("✓ In-memory session store initialized")
	}
	defer func() {
		if memStore != nil {
			memStore.Close()
		}
	}()

	// Object storage for images extracted from import archives
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	assetStore, err := assets.NewS3Store(ctx, assets.S3Options{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PublicURL: cfg.S3PublicURL,
	})
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize asset store:", err)
	}

	// Event publisher for the audit trail, only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if os.Getenv("NATS_URL") != "" {
		eventsPublisher, err = events.NewPublisher(logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	productsRepo := repository.NewProductsRepository(db)
	categoriesClient := clients.NewCategoriesClient()
	commitEngine := importer.NewEngine(productsRepo, assetStore, logger)

	importHandler := handlers.NewImportHandler(
		productsRepo,
		sessionStore,
		commitEngine,
		categoriesClient,
		eventsPublisher,
		handlers.ImportOptions{
			PreviewRows:  cfg.ImportPreviewRows,
			SessionTTL:   cfg.SessionTTL,
			CleanupGrace: cfg.SessionCleanupGrace,
			MaxFileBytes: cfg.MaxImportBytes,
			MaxZipBytes:  cfg.MaxArchiveBytes,
		},
		logger,
	)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthContextMiddleware())
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	}
	api.Use(middleware.MerchantMiddleware())

	v1 := api.Group("")
	{
		imports := v1.Group("/products/import")
		{
			imports.GET("/template", importHandler.GetImportTemplate)
			imports.POST("", importHandler.StageImport)
			imports.GET("/:sessionId", importHandler.GetImportSession)
			imports.POST("/:sessionId/commit", importHandler.CommitImport)
			imports.POST("/failures/report", importHandler.FailuresReport)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8087"
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Storefront service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down storefront-service...")
	log.Println("Storefront service stopped")
}
