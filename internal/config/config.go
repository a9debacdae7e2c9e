package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"slidevoice/internal/decks"
)

const (
	defaultAPIBaseURL = "http://localhost:8000"
	defaultAPIPrefix  = "/api/v1"
)

// Config holds runtime configuration.
type Config struct {
	Port         string
	DBDSN        string
	APIBaseURL   string
	APIPrefix    string
	DefaultVoice string
	MaxDeckBytes int64
	HTTPTimeout  time.Duration
	ViewIdle     time.Duration
}

// APIRoot joins the backend base URL and version prefix.
func (c Config) APIRoot() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.Trim(c.APIPrefix, "/")
}

// Load parses environment variables into Config and validates required values.
// Values from a .env file in the working directory are applied first; real
// environment variables take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		DBDSN:        os.Getenv("DB_DSN"),
		APIBaseURL:   getEnv("API_BASE_URL", defaultAPIBaseURL),
		APIPrefix:    getEnv("API_PREFIX", defaultAPIPrefix),
		DefaultVoice: os.Getenv("DEFAULT_VOICE"),
		MaxDeckBytes: decks.DefaultMaxDeckBytes,
		HTTPTimeout:  2 * time.Minute,
		ViewIdle:     30 * time.Minute,
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("DB_DSN is required")
	}

	if v := os.Getenv("MAX_DECK_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_DECK_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxDeckBytes = n
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("HTTP_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.HTTPTimeout = d
	}

	if v := os.Getenv("VIEW_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("VIEW_IDLE_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.ViewIdle = d
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
