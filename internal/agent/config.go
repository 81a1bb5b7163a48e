package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Frame geometry and encoding. Frames larger than the bounding box are
// downscaled preserving aspect ratio before JPEG encoding.
const (
	MaxFrameWidth  = 1280
	MaxFrameHeight = 720
	JPEGQuality    = 85
)

// Config holds the agent's runtime settings, loaded from the environment.
type Config struct {
	// ServerURL is the relay's WebSocket endpoint.
	ServerURL string
	// FPS is the initial frame rate; the controller may change it at runtime.
	FPS int
	// ReconnectMin and ReconnectMax bound the backoff between dial attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// LoadConfig reads agent configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerURL:    getEnv("SERVER_URL", "ws://localhost:8000/ws"),
		FPS:          getEnvInt("FPS", 5),
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}
	if c.FPS < 1 || c.FPS > 60 {
		return fmt.Errorf("FPS must be between 1 and 60, got %d", c.FPS)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
