package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Tests will fail if defaults change unexpectedly.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default bounds", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 10 {
			t.Errorf("expected MaxPages to be 10, got %d", cfg.MaxPages)
		}
		if cfg.MaxConcurrency != 3 {
			t.Errorf("expected MaxConcurrency to be 3, got %d", cfg.MaxConcurrency)
		}
		if cfg.MaxRetries != 3 {
			t.Errorf("expected MaxRetries to be 3, got %d", cfg.MaxRetries)
		}
	})

	t.Run("default UserAgent is BootCrawler/1.0", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != "BootCrawler/1.0" {
			t.Errorf("expected UserAgent to be 'BootCrawler/1.0', got '%s'", cfg.UserAgent)
		}
	})

	t.Run("robots.txt is respected", func(t *testing.T) {
		t.Parallel()
		if !cfg.RespectRobots {
			t.Error("expected RespectRobots to be true")
		}
	})

	t.Run("CSV report and database are enabled", func(t *testing.T) {
		t.Parallel()
		if cfg.CSVFile != "report.csv" {
			t.Errorf("expected CSVFile to be report.csv, got %q", cfg.CSVFile)
		}
		if !cfg.SaveToDB || cfg.DBDir == "" {
			t.Errorf("expected database under XDG data dir, got SaveToDB=%v DBDir=%q", cfg.SaveToDB, cfg.DBDir)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid config returns nil", mutate: func(*Config) {}},
		{name: "empty target", mutate: func(c *Config) { c.Target = "" }, wantErr: ErrNoTarget},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{name: "zero max pages", mutate: func(c *Config) { c.MaxPages = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "zero max concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }, wantErr: ErrInvalidMaxConcurrency},
		{name: "negative max retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: ErrInvalidMaxRetries},
		{name: "zero max retries is valid", mutate: func(c *Config) { c.MaxRetries = 0 }},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{name: "max pages of one is valid", mutate: func(c *Config) { c.MaxPages = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.Target = "https://example.com"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestFileGetSiteConfig tests merging of defaults and site entries.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: SiteConfig{
			Cookie:   "default=1",
			Headers:  map[string]string{"X-Default": "d"},
			MaxPages: 20,
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie:         "session=abc",
				Headers:        map[string]string{"Authorization": "Bearer t"},
				MaxConcurrency: 5,
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("other.com")
		if got.Cookie != "default=1" || got.MaxPages != 20 {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("example.com")
		if got.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		if got.MaxPages != 20 {
			t.Errorf("expected default max pages 20, got %d", got.MaxPages)
		}
		if got.MaxConcurrency != 5 {
			t.Errorf("expected site max concurrency 5, got %d", got.MaxConcurrency)
		}
		if got.Headers["X-Default"] != "d" || got.Headers["Authorization"] != "Bearer t" {
			t.Errorf("expected merged headers, got %v", got.Headers)
		}
	})

	t.Run("host matching ignores case", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("EXAMPLE.com")
		if got.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = file.GetSiteConfig("example.com")
		if _, ok := file.Defaults.Headers["Authorization"]; ok {
			t.Error("expected defaults headers to stay unchanged")
		}
	})
}

// TestApplySiteConfig tests that file values land in the Config.
func TestApplySiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("nil site configs is a no-op", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplySiteConfig("example.com")
		if cfg.MaxPages != DefaultMaxPages {
			t.Errorf("expected default max pages, got %d", cfg.MaxPages)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SiteConfigs = &File{
			Sites: map[string]SiteConfig{
				"example.com": {
					Cookie:     "session=abc",
					Headers:    map[string]string{"x-token": "t"},
					MaxPages:   50,
					MaxRetries: intPtr(1),
					UserAgent:  "Custom/1.0",
				},
			},
		}

		cfg.ApplySiteConfig("example.com")

		if cfg.Headers["Cookie"] != "session=abc" {
			t.Errorf("expected Cookie header, got %v", cfg.Headers)
		}
		if cfg.Headers["X-Token"] != "t" {
			t.Errorf("expected canonical header key X-Token, got %v", cfg.Headers)
		}
		if cfg.MaxPages != 50 || cfg.MaxRetries != 1 {
			t.Errorf("expected overrides, got pages=%d retries=%d", cfg.MaxPages, cfg.MaxRetries)
		}
		if cfg.MaxConcurrency != DefaultMaxConcurrency {
			t.Errorf("expected unchanged concurrency, got %d", cfg.MaxConcurrency)
		}
		if cfg.UserAgent != "Custom/1.0" {
			t.Errorf("expected Custom/1.0, got %s", cfg.UserAgent)
		}
	})

	t.Run("explicit settings win over the file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.MaxPages = 5
		cfg.MaxRetries = 7
		cfg.UserAgent = "Flag/1.0"
		cfg.MarkExplicit(SettingMaxPages)
		cfg.MarkExplicit(SettingMaxRetries)
		cfg.MarkExplicit(SettingUserAgent)
		cfg.SiteConfigs = &File{
			Sites: map[string]SiteConfig{
				"example.com": {
					MaxPages:       50,
					MaxConcurrency: 2,
					MaxRetries:     intPtr(1),
					UserAgent:      "Custom/1.0",
				},
			},
		}

		cfg.ApplySiteConfig("example.com")

		if cfg.MaxPages != 5 {
			t.Errorf("expected explicit max pages 5, got %d", cfg.MaxPages)
		}
		if cfg.MaxRetries != 7 {
			t.Errorf("expected explicit max retries 7, got %d", cfg.MaxRetries)
		}
		if cfg.UserAgent != "Flag/1.0" {
			t.Errorf("expected explicit user agent, got %s", cfg.UserAgent)
		}
		if cfg.MaxConcurrency != 2 {
			t.Errorf("expected file concurrency 2, got %d", cfg.MaxConcurrency)
		}
	})

	t.Run("zero max retries disables retries", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SiteConfigs = &File{
			Sites: map[string]SiteConfig{
				"example.com": {MaxRetries: intPtr(0)},
			},
		}

		cfg.ApplySiteConfig("example.com")

		if cfg.MaxRetries != 0 {
			t.Errorf("expected max retries 0, got %d", cfg.MaxRetries)
		}
	})
}

func intPtr(v int) *int {
	return &v
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sitecrawler")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		content := `defaults:
  maxPages: 50
  cookie: "default=abc"
sites:
  example.com:
    maxPages: 100
    maxConcurrency: 4
    maxRetries: 2
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.MaxPages != 50 {
			t.Errorf("expected default max pages 50, got %d", cfg.Defaults.MaxPages)
		}
		if cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Defaults.Cookie)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.MaxPages != 100 || site.MaxConcurrency != 4 || site.MaxRetries == nil || *site.MaxRetries != 2 {
			t.Errorf("unexpected site bounds: %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawler")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 25\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("expected XDG data dir to end with %s, got %q", AppName, dir)
	}
	if dir := XDGConfigDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("expected XDG config dir to end with %s, got %q", AppName, dir)
	}
}
