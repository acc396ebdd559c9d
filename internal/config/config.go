// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server
	ServerAddress string
	Environment   string
	LogLevel      string

	// Remote cache store
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// Cache behavior
	DefaultTTL       time.Duration // default for ad-hoc set operations
	MarketDataTTL    time.Duration // processed market data and indicators
	FallbackCapacity int           // max entries in the in-process tier
	RetryInterval    time.Duration // how long to skip a failing remote store

	// Market data provider
	AlphaVantageAPIKey string

	// ETL
	ETLScheduleHour   int
	ETLScheduleMinute int
	DataDir           string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8000"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DefaultTTL:       time.Duration(getEnvInt("CACHE_DEFAULT_TTL", 3600)) * time.Second,
		MarketDataTTL:    time.Duration(getEnvInt("MARKET_DATA_TTL", 86400)) * time.Second,
		FallbackCapacity: getEnvInt("FALLBACK_CAPACITY", 1000),
		RetryInterval:    time.Duration(getEnvInt("CACHE_RETRY_INTERVAL", 60)) * time.Second,

		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),

		ETLScheduleHour:   getEnvInt("ETL_SCHEDULE_HOUR", 1),
		ETLScheduleMinute: getEnvInt("ETL_SCHEDULE_MINUTE", 0),
		DataDir:           getEnv("DATA_DIR", "data"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges. Missing API keys are tolerated in development
// (the provider client logs and returns errors per call).
func (c *Config) Validate() error {
	if c.ETLScheduleHour < 0 || c.ETLScheduleHour > 23 {
		return fmt.Errorf("ETL_SCHEDULE_HOUR must be 0-23, got %d", c.ETLScheduleHour)
	}
	if c.ETLScheduleMinute < 0 || c.ETLScheduleMinute > 59 {
		return fmt.Errorf("ETL_SCHEDULE_MINUTE must be 0-59, got %d", c.ETLScheduleMinute)
	}
	if c.FallbackCapacity <= 0 {
		return fmt.Errorf("FALLBACK_CAPACITY must be positive, got %d", c.FallbackCapacity)
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("REDIS_PORT out of range: %d", c.RedisPort)
	}
	if c.Environment == "production" && c.AlphaVantageAPIKey == "" {
		return fmt.Errorf("ALPHA_VANTAGE_API_KEY is required in production")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == "development" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
