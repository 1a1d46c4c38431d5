// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the market database (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	Prefetch  *PrefetchConfig
	Providers *ProviderConfig
	Indexing  *IndexingConfig
	Backup    *BackupConfig
}

// PrefetchConfig holds the scheduling surface of the prefetch subsystem:
// batch sizes, timer intervals and enable flags per job type, the global
// concurrency ceiling, and the failure/backoff parameters.
type PrefetchConfig struct {
	QuotesBatchSize       int
	NewsBatchSize         int
	FundamentalsBatchSize int
	InsightBatchSize      int

	QuotesInterval       time.Duration
	NewsInterval         time.Duration
	FundamentalsInterval time.Duration
	InsightAlphaInterval time.Duration
	InsightBetaInterval  time.Duration

	QuotesEnabled       bool
	NewsEnabled         bool
	FundamentalsEnabled bool
	InsightAlphaEnabled bool
	InsightBetaEnabled  bool

	MaxConcurrentTypes int
	InitialDelay       time.Duration // delay before the first high-priority dispatch

	BaseRetryDelay    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	MaxAttempts       int
	ItemDelay         time.Duration // pause between identifiers inside an executor loop

	ChartFallbackEnabled    bool
	DailyBarFallbackEnabled bool

	SnapshotInterval time.Duration // health reporter cadence
	ReadmitCooldown  time.Duration // how long a dropped job stays parked
}

// ProviderConfig holds upstream endpoints and per-provider rate budgets.
type ProviderConfig struct {
	MarketfeedURL   string
	DailyBarsURL    string
	NewsfeedURL     string
	NewsfeedAPIKey  string
	FundamentalsURL string
	InsightAlphaURL string
	InsightBetaURL  string

	RequestsPerSecond float64 // default token refill rate per provider
	Burst             int
}

// IndexingConfig holds the optional retrieval-index forwarding settings.
type IndexingConfig struct {
	Enabled bool
	URL     string
}

// BackupConfig holds S3-compatible backup settings. Backup is disabled when
// the endpoint or bucket is empty.
type BackupConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SPYGLASS_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("PORT", 8002),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		Prefetch:  loadPrefetchConfig(),
		Providers: loadProviderConfig(),
		Indexing: &IndexingConfig{
			Enabled: getEnvAsBool("INDEXING_ENABLED", false),
			URL:     getEnv("INDEXER_URL", "http://localhost:9100"),
		},
		Backup: &BackupConfig{
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPrefetchConfig() *PrefetchConfig {
	return &PrefetchConfig{
		QuotesBatchSize:       getEnvAsInt("QUOTES_BATCH_SIZE", 50),
		NewsBatchSize:         getEnvAsInt("NEWS_BATCH_SIZE", 10),
		FundamentalsBatchSize: getEnvAsInt("FUNDAMENTALS_BATCH_SIZE", 20),
		InsightBatchSize:      getEnvAsInt("INSIGHT_BATCH_SIZE", 20),

		QuotesInterval:       getEnvAsDuration("QUOTES_INTERVAL", 2*time.Minute),
		NewsInterval:         getEnvAsDuration("NEWS_INTERVAL", 30*time.Minute),
		FundamentalsInterval: getEnvAsDuration("FUNDAMENTALS_INTERVAL", 6*time.Hour),
		InsightAlphaInterval: getEnvAsDuration("INSIGHT_ALPHA_INTERVAL", 1*time.Hour),
		InsightBetaInterval:  getEnvAsDuration("INSIGHT_BETA_INTERVAL", 2*time.Hour),

		QuotesEnabled:       getEnvAsBool("QUOTES_ENABLED", true),
		NewsEnabled:         getEnvAsBool("NEWS_ENABLED", true),
		FundamentalsEnabled: getEnvAsBool("FUNDAMENTALS_ENABLED", true),
		InsightAlphaEnabled: getEnvAsBool("INSIGHT_ALPHA_ENABLED", true),
		InsightBetaEnabled:  getEnvAsBool("INSIGHT_BETA_ENABLED", true),

		MaxConcurrentTypes: getEnvAsInt("MAX_CONCURRENT_TYPES", 2),
		InitialDelay:       getEnvAsDuration("INITIAL_DISPATCH_DELAY", 5*time.Second),

		BaseRetryDelay:    getEnvAsDuration("BASE_RETRY_DELAY", 100*time.Millisecond),
		BackoffMultiplier: getEnvAsFloat("BACKOFF_MULTIPLIER", 1.5),
		MaxBackoff:        getEnvAsDuration("MAX_BACKOFF", 15*time.Second),
		MaxAttempts:       getEnvAsInt("MAX_ATTEMPTS", 8),
		ItemDelay:         getEnvAsDuration("ITEM_DELAY", 250*time.Millisecond),

		ChartFallbackEnabled:    getEnvAsBool("CHART_FALLBACK_ENABLED", true),
		DailyBarFallbackEnabled: getEnvAsBool("DAILY_BAR_FALLBACK_ENABLED", true),

		SnapshotInterval: getEnvAsDuration("SNAPSHOT_INTERVAL", 1*time.Minute),
		ReadmitCooldown:  getEnvAsDuration("READMIT_COOLDOWN", 6*time.Hour),
	}
}

func loadProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		MarketfeedURL:     getEnv("MARKETFEED_URL", "https://marketfeed.example.com"),
		DailyBarsURL:      getEnv("DAILY_BARS_URL", "https://dailybars.example.com"),
		NewsfeedURL:       getEnv("NEWSFEED_URL", "https://newsfeed.example.com"),
		NewsfeedAPIKey:    getEnv("NEWSFEED_API_KEY", ""),
		FundamentalsURL:   getEnv("FUNDAMENTALS_URL", "https://fundamentals.example.com"),
		InsightAlphaURL:   getEnv("INSIGHT_ALPHA_URL", "https://insight-a.example.com"),
		InsightBetaURL:    getEnv("INSIGHT_BETA_URL", "https://insight-b.example.com"),
		RequestsPerSecond: getEnvAsFloat("PROVIDER_RPS", 0.5),
		Burst:             getEnvAsInt("PROVIDER_BURST", 2),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Prefetch.MaxConcurrentTypes < 1 {
		return fmt.Errorf("MAX_CONCURRENT_TYPES must be at least 1")
	}
	if c.Prefetch.BackoffMultiplier < 1.0 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be at least 1.0")
	}
	if c.Prefetch.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
