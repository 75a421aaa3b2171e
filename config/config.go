package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Controller  ControllerConfig  `mapstructure:"controller"`
	Session     SessionConfig     `mapstructure:"session"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// ControllerConfig describes the external container controller
type ControllerConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	ProjectID         string `mapstructure:"project_id"`
	MaxResponseBytes  int64  `mapstructure:"max_response_bytes"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	ExpirySec      int           `mapstructure:"expiry_sec"`
	StopReplaced   bool          `mapstructure:"stop_replaced"`
	StopOnShutdown bool          `mapstructure:"stop_on_shutdown"`
	Cleanup        CleanupConfig `mapstructure:"cleanup"`
}

// CleanupConfig controls retries of expiry-driven stops
type CleanupConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	InitialBackoffMS int `mapstructure:"initial_backoff_ms"`
	MaxBackoffSec    int `mapstructure:"max_backoff_sec"`
}

// MarketplaceConfig holds template marketplace configuration
type MarketplaceConfig struct {
	SeedSamples bool `mapstructure:"seed_samples"`
}

// MetricsConfig holds Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("CODEPAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)

	viper.SetDefault("controller.base_url", "http://localhost:5000")
	viper.SetDefault("controller.project_id", "test_project")
	viper.SetDefault("controller.max_response_bytes", 2000)
	viper.SetDefault("controller.request_timeout_sec", 30)

	viper.SetDefault("session.expiry_sec", 300)
	viper.SetDefault("session.stop_replaced", false)
	viper.SetDefault("session.stop_on_shutdown", true)
	viper.SetDefault("session.cleanup.max_retries", 5)
	viper.SetDefault("session.cleanup.initial_backoff_ms", 1000)
	viper.SetDefault("session.cleanup.max_backoff_sec", 60)

	viper.SetDefault("marketplace.seed_samples", true)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 {
		return fmt.Errorf("server.http_port must be positive, got: %d", c.Server.HTTPPort)
	}

	u, err := url.Parse(c.Controller.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid controller.base_url: %q, must be an absolute http(s) URL", c.Controller.BaseURL)
	}

	if c.Controller.ProjectID == "" {
		return fmt.Errorf("controller.project_id must not be empty")
	}

	if c.Controller.MaxResponseBytes <= 0 {
		return fmt.Errorf("controller.max_response_bytes must be positive, got: %d", c.Controller.MaxResponseBytes)
	}

	if c.Controller.RequestTimeoutSec <= 0 {
		return fmt.Errorf("controller.request_timeout_sec must be positive, got: %d", c.Controller.RequestTimeoutSec)
	}

	if c.Session.ExpirySec <= 0 {
		return fmt.Errorf("session.expiry_sec must be positive, got: %d", c.Session.ExpirySec)
	}

	if c.Session.Cleanup.MaxRetries < 0 {
		return fmt.Errorf("session.cleanup.max_retries must not be negative, got: %d", c.Session.Cleanup.MaxRetries)
	}

	if c.Session.Cleanup.InitialBackoffMS <= 0 {
		return fmt.Errorf("session.cleanup.initial_backoff_ms must be positive, got: %d", c.Session.Cleanup.InitialBackoffMS)
	}

	if c.Session.Cleanup.MaxBackoffSec <= 0 {
		return fmt.Errorf("session.cleanup.max_backoff_sec must be positive, got: %d", c.Session.Cleanup.MaxBackoffSec)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetRequestTimeout returns the controller transport timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Controller.RequestTimeoutSec) * time.Second
}

// GetSessionExpiry returns the session lifetime as a duration
func (c *Config) GetSessionExpiry() time.Duration {
	return time.Duration(c.Session.ExpirySec) * time.Second
}

// GetCleanupBackoff returns the initial and maximum retry delays for expiry cleanup
func (c *Config) GetCleanupBackoff() (initial, maxDelay time.Duration) {
	return time.Duration(c.Session.Cleanup.InitialBackoffMS) * time.Millisecond,
		time.Duration(c.Session.Cleanup.MaxBackoffSec) * time.Second
}
