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
	DataDir  string // Base directory for the catalog database (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	AlphaVantageAPIKey string

	// Cache TTLs. Prices expire quickly; not-found sentinels are held for a
	// long time so we stop asking providers for symbols that never resolve.
	RegularTTL  time.Duration
	NotFoundTTL time.Duration

	// Scheduler intervals
	CacheRefreshInterval    time.Duration
	CurrencyRefreshInterval time.Duration
	TrafficFlushInterval    time.Duration
	DeltaSyncIntervalDays   int
	HistoricalStartDate     string // YYYY-MM-DD
	TopNTickers             int
	MaxTickersPerRequest    int
	RequestDelay            time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUOTEFEED_DATA_DIR", "")
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
		DataDir:  absDataDir,
		Port:     getEnvAsInt("QUOTEFEED_PORT", 8082),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),

		RegularTTL:  time.Duration(getEnvAsInt("REGULAR_TTL_MINUTES", 15)) * time.Minute,
		NotFoundTTL: time.Duration(getEnvAsInt("NOT_FOUND_TTL_MINUTES", 1440)) * time.Minute,

		CacheRefreshInterval:    time.Duration(getEnvAsInt("CACHE_REFRESH_INTERVAL_MINUTES", 1)) * time.Minute,
		CurrencyRefreshInterval: time.Duration(getEnvAsInt("CURRENCY_REFRESH_INTERVAL_MINUTES", 360)) * time.Minute,
		TrafficFlushInterval:    time.Duration(getEnvAsInt("QUERY_COUNTER_SAVE_INTERVAL_MINUTES", 5)) * time.Minute,
		DeltaSyncIntervalDays:   getEnvAsInt("DELTA_SYNC_INTERVAL_DAYS", 1),
		HistoricalStartDate:     getEnv("HISTORICAL_START_DATE", "2013-01-01"),
		TopNTickers:             getEnvAsInt("TOP_N_TICKERS", 100),
		MaxTickersPerRequest:    getEnvAsInt("MAX_TICKERS_PER_REQUEST", 15),
		RequestDelay:            time.Duration(getEnvAsInt("REQUEST_DELAY_SECONDS", 5)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if _, err := time.Parse("2006-01-02", c.HistoricalStartDate); err != nil {
		return fmt.Errorf("invalid HISTORICAL_START_DATE %q: %w", c.HistoricalStartDate, err)
	}
	if c.RegularTTL <= 0 || c.NotFoundTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	// Note: AlphaVantage key optional; currency sync is skipped without it

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
