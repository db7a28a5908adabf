package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestsPerSecond of zero disables the API rate limiter
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RemoteConfig holds remote catalog API client configuration
type RemoteConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// FiltersConfig holds option fetching configuration
type FiltersConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// EmptyResultTTL of zero never lets an empty list replace a fallback
	EmptyResultTTL time.Duration `yaml:"empty_result_ttl"`
	OptionCacheTTL time.Duration `yaml:"option_cache_ttl"`
	FallbackFile   string        `yaml:"fallback_file"`
}

// ResultsConfig holds dataset and pagination configuration
type ResultsConfig struct {
	MaxEntries int `yaml:"max_entries"`
	PageSize   int `yaml:"page_size"`
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxSessions   int           `yaml:"max_sessions"`
	PrimeTimeout  time.Duration `yaml:"prime_timeout"`
}

// WorkersConfig holds fetch worker pool configuration
type WorkersConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	QueueSize  int `yaml:"queue_size"`
}

// CatalogConfig holds in-memory catalog configuration
type CatalogConfig struct {
	// SeedFile is served when no remote base_url is configured
	SeedFile string `yaml:"seed_file"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for catalogd
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Remote   RemoteConfig   `yaml:"remote"`
	Filters  FiltersConfig  `yaml:"filters"`
	Results  ResultsConfig  `yaml:"results"`
	Sessions SessionsConfig `yaml:"sessions"`
	Workers  WorkersConfig  `yaml:"workers"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadConfig loads configuration from a file.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(filePath string) (*Config, error) {
	var cfg Config

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Set defaults if not specified
	setDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 100
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Remote.MaxAttempts == 0 {
		cfg.Remote.MaxAttempts = 3
	}
	if cfg.Remote.RetryBaseDelay == 0 {
		cfg.Remote.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.Remote.MaxRetryDelay == 0 {
		cfg.Remote.MaxRetryDelay = 5 * time.Second
	}
	if cfg.Remote.Burst == 0 {
		cfg.Remote.Burst = 10
	}

	if cfg.Filters.DebounceWindow == 0 {
		cfg.Filters.DebounceWindow = 300 * time.Millisecond
	}
	if cfg.Filters.OptionCacheTTL == 0 {
		cfg.Filters.OptionCacheTTL = 10 * time.Minute
	}

	if cfg.Results.MaxEntries == 0 {
		cfg.Results.MaxEntries = 1000
	}
	if cfg.Results.PageSize == 0 {
		cfg.Results.PageSize = 50
	}

	if cfg.Sessions.IdleTTL == 0 {
		cfg.Sessions.IdleTTL = 30 * time.Minute
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = time.Minute
	}
	if cfg.Sessions.MaxSessions == 0 {
		cfg.Sessions.MaxSessions = 10000
	}
	if cfg.Sessions.PrimeTimeout == 0 {
		cfg.Sessions.PrimeTimeout = 5 * time.Second
	}

	if cfg.Workers.MaxWorkers == 0 {
		cfg.Workers.MaxWorkers = 16
	}
	if cfg.Workers.QueueSize == 0 {
		cfg.Workers.QueueSize = 1024
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides applies the environment variables that take
// precedence over the file
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CATALOG_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("CATALOG_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CATALOG_HTTP_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests_per_second cannot be negative")
	}
	if c.Remote.BaseURL != "" {
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote.base_url %q is not an absolute URL", c.Remote.BaseURL)
		}
	}
	if c.Remote.MaxAttempts < 1 {
		return fmt.Errorf("remote.max_attempts must be at least 1")
	}
	if c.Remote.RequestsPerSecond < 0 {
		return fmt.Errorf("remote.requests_per_second cannot be negative")
	}
	if c.Filters.DebounceWindow < 0 {
		return fmt.Errorf("filters.debounce_window cannot be negative")
	}
	if c.Filters.EmptyResultTTL < 0 {
		return fmt.Errorf("filters.empty_result_ttl cannot be negative")
	}
	if c.Filters.OptionCacheTTL < 0 {
		return fmt.Errorf("filters.option_cache_ttl cannot be negative")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}
	if c.Results.MaxEntries < 1 {
		return fmt.Errorf("results.max_entries must be positive")
	}
	if c.Results.PageSize < 1 || c.Results.PageSize > c.Results.MaxEntries {
		return fmt.Errorf("results.page_size must be between 1 and results.max_entries")
	}
	if c.Workers.MaxWorkers < 1 || c.Workers.QueueSize < 1 {
		return fmt.Errorf("workers.max_workers and workers.queue_size must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
