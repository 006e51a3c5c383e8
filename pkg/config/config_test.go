package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.PageSize != 500 {
		t.Errorf("PageSize = %d, want 500", cfg.PageSize)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.Backoff != 10*time.Second {
		t.Errorf("Backoff = %v, want 10s", cfg.Backoff)
	}
	if len(cfg.Segments) != 28 {
		t.Errorf("Segments = %d, want the full 28-segment enumeration", len(cfg.Segments))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
base_url: http://localhost:8080
segments: ["A", "B"]
page_size: 50
retry_attempts: 5
backoff: 250ms
request_timeout: 5s
workers: 4
data_path: /tmp/out.csv
verbose: true
redis_addr: localhost:6379
cache_ttl: 30m
metrics_addr: :9090
`
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if len(cfg.Segments) != 2 || cfg.Segments[0] != "A" {
		t.Errorf("Segments = %v, want [A B]", cfg.Segments)
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.PageSize)
	}
	if cfg.Backoff != 250*time.Millisecond {
		t.Errorf("Backoff = %v, want 250ms", cfg.Backoff)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true")
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}

	// Unset fields keep their defaults.
	if cfg.ErrorPath != "harvest_errors.csv" {
		t.Errorf("ErrorPath = %q, want the default", cfg.ErrorPath)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should keep its default")
	}
}

func TestLoadFromFileInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	if err := os.WriteFile(path, []byte("backoff: not-a-duration\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() should reject a malformed duration")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromFile() should fail on a missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HARVEST_BASE_URL", "http://localhost:9999")
	t.Setenv("HARVEST_SEGMENTS", "A,B,NBR")
	t.Setenv("HARVEST_PAGE_SIZE", "100")
	t.Setenv("HARVEST_BACKOFF", "1s")
	t.Setenv("HARVEST_WORKERS", "2")
	t.Setenv("HARVEST_VERBOSE", "true")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:9999" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if len(cfg.Segments) != 3 || cfg.Segments[2] != "NBR" {
		t.Errorf("Segments = %v, want [A B NBR]", cfg.Segments)
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", cfg.PageSize)
	}
	if cfg.Backoff != time.Second {
		t.Errorf("Backoff = %v, want 1s", cfg.Backoff)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("HARVEST_PAGE_SIZE", "lots")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("LoadFromEnv() should reject a malformed number")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, true},
		{"no segments", func(c *Config) { c.Segments = nil }, true},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, true},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, true},
		{"zero retry attempts", func(c *Config) { c.RetryAttempts = 0 }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"empty data path", func(c *Config) { c.DataPath = "" }, true},
		{"explicit workers", func(c *Config) { c.Workers = 8 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
