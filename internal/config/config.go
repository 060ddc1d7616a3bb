// package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// database (optional batch history store)
	DatabaseURL string

	// nats (optional delivery event publishing)
	NatsURL string

	// dispatcher
	SendConcurrency int
	SendRatePerSec  float64
	SendBurst       int
	MaxRetries      int
	RetryBaseMS     int

	// templates
	TemplatesDir string

	// server
	HTTPPort  int
	APIPort   int
	StaticDir string

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	// a missing .env file is fine, the environment wins anyway
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		NatsURL:         getEnv("NATS_URL", ""),
		SendConcurrency: getEnvInt("SEND_CONCURRENCY", 4),
		SendRatePerSec:  getEnvFloat("SEND_RATE_PER_SEC", 2.0),
		SendBurst:       getEnvInt("SEND_BURST", 1),
		MaxRetries:      getEnvInt("SEND_MAX_RETRIES", 3),
		RetryBaseMS:     getEnvInt("SEND_RETRY_BASE_MS", 500),
		TemplatesDir:    getEnv("TEMPLATES_DIR", ""),
		HTTPPort:        getEnvInt("HTTP_PORT", 3100),
		APIPort:         getEnvInt("API_PORT", 3101),
		StaticDir:       getEnv("STATIC_DIR", "./static"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
