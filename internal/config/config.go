// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all relay server configuration.
type Config struct {
	Port          string
	AllowedOrigin string
	DBPath        string
	NLU           NLUConfig
}

// NLUConfig configures the external reasoning service that translates
// natural-language text into structured commands.
type NLUConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether the reasoning service is configured at all.
// Without it the relay still runs; only /api/execute-command is unavailable.
func (n NLUConfig) Enabled() bool {
	return n.APIKey != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	timeout := getEnvInt("NLU_TIMEOUT_SECONDS", 30)
	if timeout <= 0 {
		timeout = 30
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8000"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", ""),
		DBPath:        getEnv("DB_PATH", "./data/deskbridge.db"),
		NLU: NLUConfig{
			URL:     getEnv("NLU_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:  getEnv("NLU_API_KEY", ""),
			Model:   getEnv("NLU_MODEL", "gpt-4o"),
			Timeout: time.Duration(timeout) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.NLU.URL == "" {
		return fmt.Errorf("NLU_URL cannot be empty")
	}
	if c.NLU.Model == "" {
		return fmt.Errorf("NLU_MODEL cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AllowedOrigin == "" ||
		strings.Contains(c.AllowedOrigin, "localhost") ||
		strings.Contains(c.AllowedOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
