package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Gemini API
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL
	GeminiModelImage  string // empty picks the backend default, e.g. imagen-4.0-generate-001
	ImageBackend      string // imagen or gemini

	// Sessions
	SessionSecret   string
	SessionIdleTTL  time.Duration
	SessionSweepInt time.Duration
	CookieSecure    bool
}

// Load loads configuration from a .env file, if present, and environment variables
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", ""),
		ImageBackend:      getEnv("IMAGE_BACKEND", "imagen"),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionIdleTTL:  getEnvPositiveDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SessionSweepInt: getEnvPositiveDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		CookieSecure:    getEnvBool("COOKIE_SECURE", false),
	}
}

// CookieMaxAge returns the session cookie lifetime in seconds.
func (c *Config) CookieMaxAge() int {
	return clampMin(int(c.SessionIdleTTL/time.Second), 60)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvPositiveDuration is getEnvDuration that also rejects zero and negative values.
func getEnvPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	if d := getEnvDuration(key, defaultValue); d > 0 {
		return d
	}
	log.Warn().Str("key", key).Dur("default", defaultValue).Msg("Non-positive duration, using default")
	return defaultValue
}
