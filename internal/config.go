package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/toast"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Application base URL; the catalog defaults to <BaseURL>/db.json
	BaseURL string

	// Key-value store backend: "memory", "redis" or "postgres"
	StoreBackend string

	// Redis (STORE_BACKEND=redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Postgres (STORE_BACKEND=postgres)
	DatabaseUrl string

	// Catalog source: "http", "local" or "r2"
	CatalogSource    string
	CatalogURL       string // Base URL of the static site serving db.json
	CatalogBasePath  string // Deployment base path, e.g. "/app"
	CatalogKey       string // Object key for local and r2 sources
	CatalogCacheMode string // "no-store" or "default"
	CatalogCacheBust bool
	CatalogRetries   int
	CatalogRetryBase time.Duration
	CatalogTimeout   time.Duration

	// Local Storage (CATALOG_SOURCE=local)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (CATALOG_SOURCE=r2)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Daily quota rollover timezone (IANA name)
	QuotaTimezone string

	// Withdrawal toasts
	ToastsEnabled bool
	ToastInterval time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// In-memory store by default for development
		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "surveypro"),
		DatabaseUrl:   getEnv("DATABASE_URL", ""),

		// Catalog defaults fetch db.json once, bypassing caches
		CatalogSource:    getEnv("CATALOG_SOURCE", "http"),
		CatalogURL:       getEnv("CATALOG_URL", ""),
		CatalogBasePath:  getEnv("CATALOG_BASE_PATH", ""),
		CatalogKey:       getEnv("CATALOG_KEY", ""),
		CatalogCacheMode: getEnv("CATALOG_CACHE_MODE", string(catalog.CacheNoStore)),
		CatalogCacheBust: getEnvBool("CATALOG_CACHE_BUST", true),
		CatalogRetries:   getEnvInt("CATALOG_RETRIES", 0),
		CatalogRetryBase: getEnvDuration("CATALOG_RETRY_BASE_DELAY", 200*time.Millisecond),
		CatalogTimeout:   getEnvDuration("CATALOG_TIMEOUT", 10*time.Second),

		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		QuotaTimezone: getEnv("QUOTA_TIMEZONE", "UTC"),

		ToastsEnabled: getEnvBool("TOASTS_ENABLED", true),
		ToastInterval: getEnvDuration("TOAST_INTERVAL", toast.DefaultConfig().Interval),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if cfg.CatalogURL == "" {
		cfg.CatalogURL = cfg.BaseURL
	}

	// Validate store configuration
	switch cfg.StoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND is 'redis'")
		}
	case "postgres":
		if cfg.DatabaseUrl == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is 'postgres'")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be 'memory', 'redis' or 'postgres', got: %s", cfg.StoreBackend)
	}

	// Validate catalog source configuration
	switch cfg.CatalogSource {
	case "http", "local":
	case "r2":
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when CATALOG_SOURCE is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when CATALOG_SOURCE is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when CATALOG_SOURCE is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when CATALOG_SOURCE is 'r2'")
		}
	default:
		return nil, fmt.Errorf("CATALOG_SOURCE must be 'http', 'local' or 'r2', got: %s", cfg.CatalogSource)
	}

	if err := cfg.CatalogPolicy().Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog settings: %w", err)
	}

	if _, err := cfg.QuotaLocation(); err != nil {
		return nil, fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}

	if cfg.ToastsEnabled {
		if err := cfg.ToastConfig().Validate(); err != nil {
			return nil, fmt.Errorf("invalid toast settings: %w", err)
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// CatalogPolicy returns the catalog fetch policy.
func (c *Config) CatalogPolicy() catalog.FetchPolicy {
	return catalog.FetchPolicy{
		CacheMode: catalog.CacheMode(strings.ToLower(c.CatalogCacheMode)),
		CacheBust: c.CatalogCacheBust,
		Retries:   c.CatalogRetries,
		BaseDelay: c.CatalogRetryBase,
		Timeout:   c.CatalogTimeout,
	}
}

// QuotaLocation returns the timezone daily counters roll over in.
func (c *Config) QuotaLocation() (*time.Location, error) {
	return time.LoadLocation(c.QuotaTimezone)
}

// ToastConfig returns the withdrawal toast generator settings.
func (c *Config) ToastConfig() toast.Config {
	cfg := toast.DefaultConfig()
	cfg.Interval = c.ToastInterval
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
