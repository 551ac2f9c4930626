// Package config holds configuration for the molysync CLI tools.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "30s" or "24h" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the settings shared by the dev server, the simulator and the
// local queue inspector.
type Config struct {
	// Server connection
	ServerURL  string `yaml:"server_url"`
	ListenAddr string `yaml:"listen_addr"`
	JWTSecret  string `yaml:"jwt_secret"`

	// Device identity
	UserID   string `yaml:"user_id"`
	DeviceID string `yaml:"device_id"`

	// Local queue database
	DBPath string `yaml:"db_path"`

	// Engine settings
	MaxAttempts int      `yaml:"max_attempts"`
	HTTPTimeout Duration `yaml:"http_timeout"`
	TokenExpiry Duration `yaml:"token_expiry"`

	// Logging
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   "http://localhost:8080",
		ListenAddr:  ":8080",
		JWTSecret:   "dev-secret-change-in-production",
		UserID:      "demo-user",
		DeviceID:    "demo-device",
		DBPath:      "molyscan.db",
		MaxAttempts: 5,
		HTTPTimeout: Duration(30 * time.Second),
		TokenExpiry: Duration(24 * time.Hour),
		Logger:      slog.Default(),
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
