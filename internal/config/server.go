package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds the stub backend configuration.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	SystemPrompt string        `yaml:"system_prompt"`
	KeepAlive    time.Duration `yaml:"keepalive_period"`
	// RequiredToken, when set, must be presented in the BearerToken cookie.
	RequiredToken  string        `yaml:"required_token"`
	HistoryEnabled bool          `yaml:"history_enabled"`
	ReplyDelay     time.Duration `yaml:"reply_delay"`
	LogLevel       string        `yaml:"log_level"`
}

// DefaultServer returns the stub backend defaults.
func DefaultServer() *ServerConfig {
	return &ServerConfig{
		Address:        ":8080",
		SystemPrompt:   "You are a helpful assistant.",
		KeepAlive:      60 * time.Second,
		HistoryEnabled: true,
		LogLevel:       "info",
	}
}

// LoadServer builds the stub backend configuration. path may be empty.
func LoadServer(path string) (*ServerConfig, error) {
	config := DefaultServer()

	if err := readYAML(path, config); err != nil {
		return nil, err
	}

	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Address = fmt.Sprintf(":%d", p)
	}

	if v := os.Getenv("SYSTEM_PROMPT"); v != "" {
		config.SystemPrompt = v
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlive = time.Duration(k) * time.Second
	}

	if v := os.Getenv("REQUIRE_TOKEN"); v != "" {
		config.RequiredToken = v
	}
	if err := durationEnv("REPLY_DELAY", &config.ReplyDelay); err != nil {
		return nil, err
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}

	if config.KeepAlive <= 0 {
		return nil, fmt.Errorf("invalid keepalive period %s: must be positive", config.KeepAlive)
	}
	return config, nil
}
