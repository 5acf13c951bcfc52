package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath    string
	QuoteServiceURL string
	FxServiceURL    string
	RulesPath       string // optional YAML file with default allocation rules
	BaseCurrency    string
	LogLevel        string
	Port            int
	DevMode         bool
	PriceWorkers    int // worker pool size for batch price fetches
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/folio.db"),
		QuoteServiceURL: getEnv("QUOTE_SERVICE_URL", "https://query1.finance.yahoo.com"),
		FxServiceURL:    getEnv("FX_SERVICE_URL", "https://api.frankfurter.app"),
		RulesPath:       getEnv("ALLOCATION_RULES_PATH", ""),
		BaseCurrency:    getEnv("BASE_CURRENCY", "EUR"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		PriceWorkers:    getEnvAsInt("PRICE_WORKERS", 6),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.BaseCurrency == "" {
		return fmt.Errorf("BASE_CURRENCY is required")
	}
	if c.PriceWorkers < 1 {
		return fmt.Errorf("PRICE_WORKERS must be at least 1")
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
