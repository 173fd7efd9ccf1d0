package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradetracker/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// HTTP
	HTTPAddr string

	// Price feed
	UseTestnet          bool
	PricePollInterval   time.Duration // how often the open-trade tickers are refreshed
	PriceRequestTimeout time.Duration // per-symbol request timeout
	PriceCacheTTL       time.Duration // per-symbol price cache lifetime

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	if cfg.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}

	cfg.UseTestnet = getEnvAsBool("USE_TESTNET", false)

	pollSeconds := getEnvAsInt("PRICE_POLL_SECONDS", 30)
	if pollSeconds <= 0 {
		errs = append(errs, "PRICE_POLL_SECONDS must be positive")
	}
	cfg.PricePollInterval = time.Duration(pollSeconds) * time.Second

	timeoutSeconds := getEnvAsInt("PRICE_TIMEOUT_SECONDS", 5)
	if timeoutSeconds <= 0 {
		errs = append(errs, "PRICE_TIMEOUT_SECONDS must be positive")
	}
	cfg.PriceRequestTimeout = time.Duration(timeoutSeconds) * time.Second

	cacheSeconds := getEnvAsInt("PRICE_CACHE_SECONDS", 30)
	if cacheSeconds < 0 {
		errs = append(errs, "PRICE_CACHE_SECONDS cannot be negative")
	}
	cfg.PriceCacheTTL = time.Duration(cacheSeconds) * time.Second

	cfg.DBPath = getEnv("DB_PATH", "./data/tradetracker.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
