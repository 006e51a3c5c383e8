// Package config defines the run configuration for the harvester: the
// segment enumeration, pagination and retry settings, pool sizing, and the
// output sink paths. Values come from defaults, an optional YAML file, and
// HARVEST_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/z3c0/metalharvest/pkg/archive"
)

// Config defines configuration for a harvest run.
type Config struct {
	// BaseURL is the archive host.
	BaseURL string `yaml:"base_url"`

	// Segments is the segment enumeration in dispatch order.
	Segments []string `yaml:"segments"`

	// PageSize is the number of records requested per page.
	PageSize int `yaml:"page_size"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers"`

	// RetryAttempts caps decode retries per page.
	RetryAttempts int `yaml:"retry_attempts"`

	// Backoff is the transient-busy sleep.
	Backoff time.Duration `yaml:"backoff"`

	// RequestTimeout is the per-request HTTP timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Workers overrides the derived pool size (0 = derive from segments).
	Workers int `yaml:"workers"`

	// QueueCapacity overrides the derived queue bound (0 = derive).
	QueueCapacity int `yaml:"queue_capacity"`

	// DataPath is the CSV data sink file.
	DataPath string `yaml:"data_path"`

	// ErrorPath is the CSV parse-error sink file.
	ErrorPath string `yaml:"error_path"`

	// LogPath directs the run log to a file; empty logs to stdout.
	LogPath string `yaml:"log_path"`

	// Verbose enables the run log.
	Verbose bool `yaml:"verbose"`

	// RedisAddr enables the page cache when set (host:port).
	RedisAddr string `yaml:"redis_addr"`

	// CacheTTL bounds how long cached pages stay usable.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// MetricsAddr serves Prometheus metrics when set (host:port).
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a Config with the reference settings.
func Default() Config {
	return Config{
		BaseURL:        archive.DefaultBaseURL,
		Segments:       archive.Alphabet(),
		PageSize:       500,
		UserAgent:      "metalharvest/1.0",
		RetryAttempts:  3,
		Backoff:        10 * time.Second,
		RequestTimeout: 30 * time.Second,
		DataPath:       "bands.csv",
		ErrorPath:      "harvest_errors.csv",
		CacheTTL:       15 * time.Minute,
	}
}

// yamlConfig mirrors Config with string durations for YAML.
type yamlConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Segments       []string          `yaml:"segments"`
	PageSize       int               `yaml:"page_size"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	RetryAttempts  int               `yaml:"retry_attempts"`
	Backoff        string            `yaml:"backoff"`
	RequestTimeout string            `yaml:"request_timeout"`
	Workers        int               `yaml:"workers"`
	QueueCapacity  int               `yaml:"queue_capacity"`
	DataPath       string            `yaml:"data_path"`
	ErrorPath      string            `yaml:"error_path"`
	LogPath        string            `yaml:"log_path"`
	Verbose        bool              `yaml:"verbose"`
	RedisAddr      string            `yaml:"redis_addr"`
	CacheTTL       string            `yaml:"cache_ttl"`
	MetricsAddr    string            `yaml:"metrics_addr"`
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if len(yc.Segments) > 0 {
		cfg.Segments = yc.Segments
	}
	if yc.PageSize != 0 {
		cfg.PageSize = yc.PageSize
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if len(yc.Headers) > 0 {
		cfg.Headers = yc.Headers
	}
	if yc.RetryAttempts != 0 {
		cfg.RetryAttempts = yc.RetryAttempts
	}
	if yc.Backoff != "" {
		d, err := time.ParseDuration(yc.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse backoff: %w", err)
		}
		cfg.Backoff = d
	}
	if yc.RequestTimeout != "" {
		d, err := time.ParseDuration(yc.RequestTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.QueueCapacity != 0 {
		cfg.QueueCapacity = yc.QueueCapacity
	}
	if yc.DataPath != "" {
		cfg.DataPath = yc.DataPath
	}
	if yc.ErrorPath != "" {
		cfg.ErrorPath = yc.ErrorPath
	}
	if yc.LogPath != "" {
		cfg.LogPath = yc.LogPath
	}
	cfg.Verbose = yc.Verbose
	if yc.RedisAddr != "" {
		cfg.RedisAddr = yc.RedisAddr
	}
	if yc.CacheTTL != "" {
		d, err := time.ParseDuration(yc.CacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("parse cache_ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	if yc.MetricsAddr != "" {
		cfg.MetricsAddr = yc.MetricsAddr
	}

	return cfg, nil
}

// LoadFromEnv overlays configuration from environment variables.
// Environment variables use the HARVEST_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("HARVEST_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("HARVEST_SEGMENTS"); v != "" {
		c.Segments = strings.Split(v, ",")
	}
	if v := os.Getenv("HARVEST_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("HARVEST_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_RETRY_ATTEMPTS: %w", err)
		}
		c.RetryAttempts = n
	}
	if v := os.Getenv("HARVEST_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_BACKOFF: %w", err)
		}
		c.Backoff = d
	}
	if v := os.Getenv("HARVEST_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("HARVEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("HARVEST_QUEUE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_QUEUE_CAPACITY: %w", err)
		}
		c.QueueCapacity = n
	}
	if v := os.Getenv("HARVEST_DATA_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("HARVEST_ERROR_PATH"); v != "" {
		c.ErrorPath = v
	}
	if v := os.Getenv("HARVEST_LOG_PATH"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("HARVEST_VERBOSE"); v != "" {
		c.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("HARVEST_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("HARVEST_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HARVEST_CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}
	if v := os.Getenv("HARVEST_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if len(c.Segments) == 0 {
		return errors.New("config: at least one segment is required")
	}
	if c.PageSize <= 0 {
		return errors.New("config: page_size must be positive")
	}
	if c.UserAgent == "" {
		return errors.New("config: user_agent is required")
	}
	if c.RetryAttempts <= 0 {
		return errors.New("config: retry_attempts must be positive")
	}
	if c.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	if c.DataPath == "" || c.ErrorPath == "" {
		return errors.New("config: data_path and error_path are required")
	}
	return nil
}
