// Package config loads application configuration from environment variables
// and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	DataSource DataSourceConfig `yaml:"data_source" envconfig:"DATA_SOURCE"`
	Analysis   AnalysisConfig   `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
}

// DataSourceConfig contains price history fetcher configuration.
type DataSourceConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://stooq.com"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" default:"5"`
	Burst             int           `yaml:"burst" envconfig:"BURST" default:"2"`
}

// AnalysisConfig contains causality analysis defaults and limits.
type AnalysisConfig struct {
	DefaultMaxLag         int     `yaml:"default_max_lag" envconfig:"DEFAULT_MAX_LAG" default:"5"`
	MaxLagLimit           int     `yaml:"max_lag_limit" envconfig:"MAX_LAG_LIMIT" default:"30"`
	Alpha                 float64 `yaml:"alpha" envconfig:"ALPHA" default:"0.05"`
	BootstrapReplications int     `yaml:"bootstrap_replications" envconfig:"BOOTSTRAP_REPLICATIONS" default:"500"`
}

// Load loads configuration from environment variables (prefix MSC) and, when
// present, the YAML file named by MSC_CONFIG_FILE (default config.yaml).
// File values override environment defaults.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MSC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv("MSC_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs overlays non-zero file values on top of the env-derived
// configuration.
func mergeConfigs(file, env Config) Config {
	out := env

	if file.Server.Port != 0 {
		out.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 {
		out.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 {
		out.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != 0 {
		out.Server.IdleTimeout = file.Server.IdleTimeout
	}
	if file.Server.ShutdownTimeout != 0 {
		out.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}

	if file.Logging.Level != "" {
		out.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		out.Logging.Format = file.Logging.Format
	}

	if file.DataSource.BaseURL != "" {
		out.DataSource.BaseURL = file.DataSource.BaseURL
	}
	if file.DataSource.Timeout != 0 {
		out.DataSource.Timeout = file.DataSource.Timeout
	}
	if file.DataSource.RequestsPerSecond != 0 {
		out.DataSource.RequestsPerSecond = file.DataSource.RequestsPerSecond
	}
	if file.DataSource.Burst != 0 {
		out.DataSource.Burst = file.DataSource.Burst
	}

	if file.Analysis.DefaultMaxLag != 0 {
		out.Analysis.DefaultMaxLag = file.Analysis.DefaultMaxLag
	}
	if file.Analysis.MaxLagLimit != 0 {
		out.Analysis.MaxLagLimit = file.Analysis.MaxLagLimit
	}
	if file.Analysis.Alpha != 0 {
		out.Analysis.Alpha = file.Analysis.Alpha
	}
	if file.Analysis.BootstrapReplications != 0 {
		out.Analysis.BootstrapReplications = file.Analysis.BootstrapReplications
	}

	return out
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.DataSource.BaseURL == "" {
		return fmt.Errorf("data source base URL must not be empty")
	}

	if c.Analysis.DefaultMaxLag < 1 {
		return fmt.Errorf("default max lag must be >= 1, got %d", c.Analysis.DefaultMaxLag)
	}
	if c.Analysis.MaxLagLimit < c.Analysis.DefaultMaxLag {
		return fmt.Errorf("max lag limit %d is below default max lag %d",
			c.Analysis.MaxLagLimit, c.Analysis.DefaultMaxLag)
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %v", c.Analysis.Alpha)
	}
	if c.Analysis.BootstrapReplications < 1 {
		return fmt.Errorf("bootstrap replications must be >= 1, got %d",
			c.Analysis.BootstrapReplications)
	}
	return nil
}
