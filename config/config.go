package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradeledger/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Ingestion
	Source  string // "csv" or "binance"
	CSVPath string // Path to a broker CSV export (csv source)
	Account string // Account identifier stamped on ingested executions

	// Binance API (binance source)
	APIKey     string
	SecretKey  string
	IsTestnet  bool
	Instrument string // Symbol to pull account trade history for

	// Aggregation
	MultiplierTablePath string        // YAML file mapping instrument -> currency per point
	PositionFlatGap     time.Duration // Flat period after which a new position starts
	ImportWorkers       int           // Parallel instrument+account batches

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" (std logger) or "json" (zap)
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Ingestion
	cfg.Source = strings.ToLower(getEnv("SOURCE", "csv"))
	if cfg.Source != "csv" && cfg.Source != "binance" {
		errs = append(errs, fmt.Sprintf("SOURCE must be 'csv' or 'binance', got %q", cfg.Source))
	}
	cfg.CSVPath = getEnv("CSV_PATH", "")
	if cfg.Source == "csv" && cfg.CSVPath == "" {
		errs = append(errs, "CSV_PATH must be set when SOURCE=csv")
	}
	cfg.Account = getEnv("ACCOUNT", "default")

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.Instrument = getEnv("INSTRUMENT", "")
	if cfg.Source == "binance" {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when SOURCE=binance")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when SOURCE=binance")
		}
		if cfg.Instrument == "" {
			errs = append(errs, "INSTRUMENT must be set when SOURCE=binance")
		}
	}

	// Aggregation
	cfg.MultiplierTablePath = getEnv("MULTIPLIER_TABLE", "./config/multipliers.yaml")
	if cfg.MultiplierTablePath == "" {
		errs = append(errs, "MULTIPLIER_TABLE must be set")
	}

	flatGapSeconds, err := getEnvAsIntRequired("POSITION_FLAT_GAP_SECONDS", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POSITION_FLAT_GAP_SECONDS: %v", err))
	} else if flatGapSeconds < 0 {
		errs = append(errs, "POSITION_FLAT_GAP_SECONDS cannot be negative")
	}
	cfg.PositionFlatGap = time.Duration(flatGapSeconds) * time.Second

	cfg.ImportWorkers, err = getEnvAsIntRequired("IMPORT_WORKERS", 4)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid IMPORT_WORKERS: %v", err))
	} else if cfg.ImportWorkers <= 0 {
		errs = append(errs, "IMPORT_WORKERS must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/tradeledger.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be 'text' or 'json', got %q", cfg.LogFormat))
	}

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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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
