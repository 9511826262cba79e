package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBPath    string // ROBOADVISOR_DB, default "roboadvisor.db"
	StocksCSV string // ROBOADVISOR_STOCKS_CSV, optional; empty uses the bundled file
	LogLevel  string // ROBOADVISOR_LOG_LEVEL, default "info"
	LogFormat string // ROBOADVISOR_LOG_FORMAT, "text" or "json", default "text"
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:    envOr("ROBOADVISOR_DB", "roboadvisor.db"),
		StocksCSV: os.Getenv("ROBOADVISOR_STOCKS_CSV"),
		LogLevel:  envOr("ROBOADVISOR_LOG_LEVEL", "info"),
		LogFormat: envOr("ROBOADVISOR_LOG_FORMAT", "text"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
