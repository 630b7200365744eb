// Package config loads client and server configuration from defaults, an
// optional YAML file, a .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted by Config.Transport.
const (
	TransportGobwas  = "gobwas"
	TransportGorilla = "gorilla"
)

// DefaultGreeting is the first assistant entry of a new chat.
const DefaultGreeting = "Hello! How can I help you today?"

// Config holds the session client configuration.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	BearerToken      string        `yaml:"bearer_token"`
	Transport        string        `yaml:"transport"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	SendQueue        int           `yaml:"send_queue"`
	HistoryEnabled   bool          `yaml:"history_enabled"`
	Greeting         string        `yaml:"greeting"`
	// UserNameClaim is the bearer token claim shown as the user's name.
	UserNameClaim  string `yaml:"user_name_claim"`
	TranscriptPath string `yaml:"transcript_path"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
}

// Default returns the client configuration defaults.
func Default() *Config {
	return &Config{
		BaseURL:          "http://localhost:8080",
		Transport:        TransportGobwas,
		WatchdogInterval: 5 * time.Second,
		DialTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		SendQueue:        16,
		HistoryEnabled:   true,
		Greeting:         DefaultGreeting,
		UserNameClaim:    "name",
		TranscriptPath:   "transcript.json",
		LogLevel:         "info",
	}
}

// Load builds the client configuration. path may be empty.
func Load(path string) (*Config, error) {
	config := Default()

	if err := readYAML(path, config); err != nil {
		return nil, err
	}

	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	if v := os.Getenv("CHATBOT_URL"); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv("CHATBOT_TOKEN"); v != "" {
		config.BearerToken = v
	}
	if v := os.Getenv("CHATBOT_TRANSPORT"); v != "" {
		config.Transport = v
	}
	if err := durationEnv("CHATBOT_WATCHDOG", &config.WatchdogInterval); err != nil {
		return nil, err
	}
	if err := durationEnv("CHATBOT_DIAL_TIMEOUT", &config.DialTimeout); err != nil {
		return nil, err
	}
	if err := durationEnv("CHATBOT_WRITE_TIMEOUT", &config.WriteTimeout); err != nil {
		return nil, err
	}
	if v := os.Getenv("CHATBOT_SEND_QUEUE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHATBOT_SEND_QUEUE: %w", err)
		}
		config.SendQueue = n
	}
	if v := os.Getenv("CHATBOT_HISTORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHATBOT_HISTORY: %w", err)
		}
		config.HistoryEnabled = b
	}
	if v := os.Getenv("CHATBOT_USER_CLAIM"); v != "" {
		config.UserNameClaim = v
	}
	if v := os.Getenv("CHATBOT_TRANSCRIPT"); v != "" {
		config.TranscriptPath = v
	}
	if v := os.Getenv("CHATBOT_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("CHATBOT_LOG_FILE"); v != "" {
		config.LogFile = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	switch c.Transport {
	case TransportGobwas, TransportGorilla:
	default:
		return fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, TransportGobwas, TransportGorilla)
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("invalid watchdog interval %s: must be positive", c.WatchdogInterval)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("invalid dial timeout %s: must be positive", c.DialTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout %s: must be positive", c.WriteTimeout)
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("invalid send queue %d: must be positive", c.SendQueue)
	}
	return nil
}

func readYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func durationEnv(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
