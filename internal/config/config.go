// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	EInvoice EInvoiceConfig `yaml:"einvoice"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8080".
}

// DatabaseConfig holds the database DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// Expiry returns the configured token lifetime, defaulting to 24h.
func (c JWTConfig) Expiry() time.Duration {
	if c.ExpiryHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ExpiryHours) * time.Hour
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name, defaults to info.
	File       string `yaml:"file"`        // Rotating log file path; empty logs to stderr.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotation size, defaults to 100.
	MaxBackups int    `yaml:"max-backups"` // Rotated files kept, defaults to 3.
	MaxAgeDays int    `yaml:"max-age-days"`
}

// RedisConfig holds the optional statistics cache settings.
type RedisConfig struct {
	Addr            string `yaml:"addr"` // Empty disables the cache.
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	StatsTTLSeconds int    `yaml:"stats-ttl-seconds"`
}

// StatsTTL returns the cache TTL for statistics payloads, defaulting to 60s.
func (c RedisConfig) StatsTTL() time.Duration {
	if c.StatsTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.StatsTTLSeconds) * time.Second
}

// EInvoiceConfig holds the e-invoice API settings. The client is built
// from this value at startup; there is no process-global mutable state.
type EInvoiceConfig struct {
	Mode           string `yaml:"mode"`     // "mock" or "live".
	BaseURL        string `yaml:"base-url"` // Live API base URL.
	AppID          string `yaml:"app-id"`
	APIKey         string `yaml:"api-key"`
	TimeoutSeconds int    `yaml:"timeout-seconds"`
}

// Timeout returns the HTTP timeout for live API calls, defaulting to 30s.
func (c EInvoiceConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with working defaults.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8080"
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = "data/expense.db"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.EInvoice.Mode) == "" {
		c.EInvoice.Mode = "mock"
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	switch c.EInvoice.Mode {
	case "mock":
	case "live":
		if strings.TrimSpace(c.EInvoice.BaseURL) == "" {
			return fmt.Errorf("config: einvoice.base-url is required in live mode")
		}
		if strings.TrimSpace(c.EInvoice.AppID) == "" || strings.TrimSpace(c.EInvoice.APIKey) == "" {
			return fmt.Errorf("config: einvoice credentials are required in live mode")
		}
	default:
		return fmt.Errorf("config: unknown einvoice.mode %q", c.EInvoice.Mode)
	}
	return nil
}
