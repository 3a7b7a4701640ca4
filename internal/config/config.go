package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"catalogue-service/internal/models"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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
	CORSOrigins []string

	// JWT
	JWTSecret string

	// Services
	ApprovalServiceURL string

	// Pagination
	DefaultPageSize int
	MaxPageSize     int

	// Catalogue settings
	PriceHistogramBuckets int
	FacetConcurrency      int
	DefaultLocale         string
	SupportedLocales      []string
	CatalogueCacheTTL     time.Duration
	CatalogueBasePath     string
	ExportLimit           int

	// Storefront rate limit per tenant (requests per second, burst)
	StorefrontRateLimit float64
	StorefrontRateBurst int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))
	buckets, _ := strconv.Atoi(getEnv("PRICE_HISTOGRAM_BUCKETS", "10"))
	concurrency, _ := strconv.Atoi(getEnv("FACET_CONCURRENCY", "4"))
	exportLimit, _ := strconv.Atoi(getEnv("EXPORT_LIMIT", "10000"))
	rateLimit, _ := strconv.ParseFloat(getEnv("STOREFRONT_RATE_LIMIT", "50"), 64)
	rateBurst, _ := strconv.Atoi(getEnv("STOREFRONT_RATE_BURST", "100"))
	cacheTTL, err := time.ParseDuration(getEnv("CATALOGUE_CACHE_TTL", "2m"))
	if err != nil {
		log.Printf("WARNING: invalid CATALOGUE_CACHE_TTL, caching disabled: %v", err)
		cacheTTL = 0
	}

	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalogue_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),

		// Server
		Port:        getEnv("PORT", "8088"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getList("CORS_ALLOWED_ORIGINS"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		// Services
		ApprovalServiceURL: getEnv("APPROVAL_SERVICE_URL", "http://approval-service:8099"),

		// Pagination
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,

		// Catalogue settings
		PriceHistogramBuckets: buckets,
		FacetConcurrency:      concurrency,
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "en"),
		SupportedLocales:      getList("SUPPORTED_LOCALES"),
		CatalogueCacheTTL:     cacheTTL,
		CatalogueBasePath:     getEnv("CATALOGUE_BASE_PATH", "/catalogue"),
		ExportLimit:           exportLimit,

		StorefrontRateLimit: rateLimit,
		StorefrontRateBurst: rateBurst,
	}
}

// Locales returns the supported locales with the default locale first
func (c *Config) Locales() []string {
	locales := []string{c.DefaultLocale}
	for _, l := range c.SupportedLocales {
		if l != c.DefaultLocale {
			locales = append(locales, l)
		}
	}
	return locales
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
		&models.Rubric{},
		&models.Attribute{},
		&models.Option{},
		&models.RubricAttribute{},
		&models.Brand{},
		&models.Category{},
		&models.Product{},
		&models.ShopProduct{},
	); err != nil {
		// constraint renames on existing schemas are reported but harmless
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
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

// getList splits a comma separated variable, dropping empty entries
func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
