package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"storefront-service/internal/models"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port        string
	Environment string

	// Session staging
	SessionBackend      string // "memory" or "redis"
	SessionTTL          time.Duration
	SessionCleanupGrace time.Duration

	// Import tunables
	ImportPreviewRows int
	MaxImportBytes    int64
	MaxArchiveBytes   int64

	// Object storage for import images
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	sessionTTLMin, _ := strconv.Atoi(getEnv("IMPORT_SESSION_TTL_MINUTES", "30"))
	cleanupGraceMin, _ := strconv.Atoi(getEnv("IMPORT_CLEANUP_GRACE_MINUTES", "5"))
	previewRows, _ := strconv.Atoi(getEnv("IMPORT_PREVIEW_ROWS", "20"))
	maxImportMB, _ := strconv.Atoi(getEnv("MAX_IMPORT_FILE_MB", "20"))
	maxArchiveMB, _ := strconv.Atoi(getEnv("MAX_IMPORT_ARCHIVE_MB", "200"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "storefront_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SessionBackend:      getEnv("IMPORT_SESSION_BACKEND", "memory"),
		SessionTTL:          time.Duration(sessionTTLMin) * time.Minute,
		SessionCleanupGrace: time.Duration(cleanupGraceMin) * time.Minute,

		ImportPreviewRows: previewRows,
		MaxImportBytes:    int64(maxImportMB) << 20,
		MaxArchiveBytes:   int64(maxArchiveMB) << 20,

		S3Bucket:    getEnv("S3_BUCKET", "storefront-product-images"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
	); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
