package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr          = ":8099"
	defaultDroneWSURL        = "ws://127.0.0.1:5000/channel"
	defaultDroneStatusURL    = "http://127.0.0.1:5000"
	defaultPollInterval      = time.Second
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultResizeDebounce    = 250 * time.Millisecond
	defaultRestartDelay      = 100 * time.Millisecond
	defaultFrameRate         = 20
	defaultLogCapacity       = 100
	defaultLogMaxSizeMB      = 20
)

// Config stores runtime settings loaded from an optional YAML file with
// environment-variable overrides on top.
type Config struct {
	HTTPAddr          string        `yaml:"http_addr"`
	DroneWSURL        string        `yaml:"drone_ws_url"`
	DroneStatusURL    string        `yaml:"drone_status_url"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ResizeDebounce    time.Duration `yaml:"resize_debounce"`
	RestartDelay      time.Duration `yaml:"restart_delay"`
	FrameRate         float64       `yaml:"frame_rate"`
	LogCapacity       int           `yaml:"log_capacity"`
	LogLevel          string        `yaml:"log_level"`
	LogFile           string        `yaml:"log_file"`
	LogMaxSizeMB      int           `yaml:"log_max_size_mb"`
}

// Load reads path when it exists, applies env overrides, and normalizes
// defaults. An empty path skips the file step.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DroneWSURL = getenv("DRONE_WS_URL", cfg.DroneWSURL)
	cfg.DroneStatusURL = getenv("DRONE_STATUS_URL", cfg.DroneStatusURL)
	cfg.PollInterval = parseDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getenv("LOG_FILE", cfg.LogFile)

	return cfg.Normalize(), nil
}

// Normalize fills zero values with stable defaults.
func (c Config) Normalize() Config {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(c.DroneWSURL) == "" {
		c.DroneWSURL = defaultDroneWSURL
	}
	if strings.TrimSpace(c.DroneStatusURL) == "" {
		c.DroneStatusURL = defaultDroneStatusURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaultReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.ResizeDebounce <= 0 {
		c.ResizeDebounce = defaultResizeDebounce
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = defaultRestartDelay
	}
	if c.FrameRate <= 0 {
		c.FrameRate = defaultFrameRate
	}
	if c.LogCapacity <= 0 {
		c.LogCapacity = defaultLogCapacity
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = defaultLogMaxSizeMB
	}
	return c
}

// SlogLevel maps the configured level name onto slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
