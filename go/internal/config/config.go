// Package config loads the client configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"

	// ConfigPathEnv names the YAML file when -config is not given
	ConfigPathEnv = "SUBASTA_CONFIG"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Realtime struct {
		Transport     string        `yaml:"transport"`
		WebSocketURL  string        `yaml:"websocket_url"`
		NATSURL       string        `yaml:"nats_url"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		BaseDelay     time.Duration `yaml:"base_delay"`
		MaxAttempts   int           `yaml:"max_attempts"`
	} `yaml:"realtime"`

	Session struct {
		Path string `yaml:"path"`
	} `yaml:"session"`

	LocalAPI struct {
		Addr string `yaml:"addr"`
	} `yaml:"local_api"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	var c Config
	c.API.BaseURL = "http://localhost:8000"
	c.API.Timeout = 30 * time.Second
	c.Realtime.Transport = TransportWebSocket
	c.Realtime.WebSocketURL = "ws://localhost:8085"
	c.Realtime.NATSURL = "nats://127.0.0.1:4222"
	c.Realtime.SubjectPrefix = "auction.events"
	c.Realtime.BaseDelay = time.Second
	c.Realtime.MaxAttempts = 5
	c.Session.Path = defaultSessionPath()
	c.LogLevel = "info"
	return &c
}

// Load builds the configuration: defaults, then the YAML file at path
// when path is not empty, then environment overrides.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Realtime.Transport {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("%w: unknown realtime transport %q", ErrInvalidConfig, c.Realtime.Transport)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api base url is required", ErrInvalidConfig)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api timeout must be positive", ErrInvalidConfig)
	}
	if c.Realtime.BaseDelay <= 0 || c.Realtime.MaxAttempts <= 0 {
		return fmt.Errorf("%w: reconnect backoff must be positive", ErrInvalidConfig)
	}
	return nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

func applyEnv(c *Config) {
	c.API.BaseURL = getEnv("API_BASE_URL", c.API.BaseURL)
	c.API.Timeout = getEnvAsDuration("HTTP_TIMEOUT", c.API.Timeout)
	c.Realtime.Transport = strings.ToLower(getEnv("REALTIME_TRANSPORT", c.Realtime.Transport))
	c.Realtime.WebSocketURL = getEnv("WS_URL", c.Realtime.WebSocketURL)
	c.Realtime.NATSURL = getEnv("NATS_URL", c.Realtime.NATSURL)
	c.Realtime.MaxAttempts = getEnvAsInt("RECONNECT_MAX_ATTEMPTS", c.Realtime.MaxAttempts)
	c.Session.Path = getEnv("SESSION_PATH", c.Session.Path)
	c.LocalAPI.Addr = getEnv("LOCAL_API_ADDR", c.LocalAPI.Addr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("45s") or plain seconds ("45")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".subasta", "session.yaml")
	}
	return filepath.Join(dir, "subasta", "session.yaml")
}
