// package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	// database
	DatabasePath string
	DatabaseURL  string

	// nats
	NatsURL string

	// server
	HTTPPort           int
	CORSAllowedOrigins []string

	// write endpoint limiter, requests per second; 0 disables it
	WriteRateLimit int
	WriteRateBurst int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "users_vouchers.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		NatsURL:            getEnv("NATS_URL", ""),
		HTTPPort:           getEnvInt("HTTP_PORT", 5000),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		WriteRateLimit:     getEnvInt("WRITE_RATE_LIMIT", 20),
		WriteRateBurst:     getEnvInt("WRITE_RATE_BURST", 40),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
	}

	return cfg, nil
}

// DatabaseDSN returns the connection string the database package should open.
// A postgres DATABASE_URL wins over the sqlite DATABASE_PATH.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DatabasePath
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

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
