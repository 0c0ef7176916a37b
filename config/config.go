// Package config loads the client's runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// defaultBaseURL is the hardcoded fallback host used when no base URL is
// configured.
const defaultBaseURL = "https://api.khabiteqrealty.com"

// Config holds runtime configuration.
type Config struct {
	APIBaseURL     string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"required,min=1s,max=5m"`
	MaxRetries     int           `validate:"gte=0,lte=10"`
	LogLevel       string        `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from a best-effort .env file and the process
// environment, applying defaults where values are absent.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIBaseURL:     firstEnv("NEXT_PUBLIC_API_URL", "API_URL"),
		RequestTimeout: 15 * time.Second,
		MaxRetries:     2,
		LogLevel:       strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if raw := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_SECONDS")); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}
	if raw := strings.TrimSpace(os.Getenv("MAX_RETRIES")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
