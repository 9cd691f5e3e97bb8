package config

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds a single fetch attempt, not the whole crawl.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxPages is the page budget of a crawl.
	// Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 10

	// DefaultMaxConcurrency is the number of fetches in flight at once.
	DefaultMaxConcurrency = 3

	// DefaultMaxRetries is the number of retries after the first attempt
	// for transport errors, 429 and 503.
	DefaultMaxRetries = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawler"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "BootCrawler/1.0"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCSVFile is where the CSV report is written when no path is given.
	DefaultCSVFile = "report.csv"
)

// Config holds all configuration options for a crawl.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Target is the root URL of the crawl. A missing scheme means http.
	Target string

	// Timeout bounds each fetch attempt.
	Timeout time.Duration

	// MaxPages is the maximum number of distinct pages admitted to a crawl.
	MaxPages int

	// MaxConcurrency is the number of fetches in flight at once.
	MaxConcurrency int

	// MaxRetries is the number of retries after the first fetch attempt.
	MaxRetries int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// RespectRobots makes the crawl obey the site's robots.txt.
	RespectRobots bool

	// Proxy is an optional outbound proxy URL (http, https, socks5 or socks5h).
	Proxy string

	// Headers are extra request headers, usually filled from the site
	// configuration (cookies, authorization).
	Headers map[string]string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitecrawler in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// Explicit records the settings given on the command line. The
	// configuration file never overrides them.
	Explicit map[Setting]bool

	// CSVFile is the CSV report path. Empty disables the CSV report.
	CSVFile string

	// DOTFile is the Graphviz DOT report path. Empty disables it.
	DOTFile string

	// DOTExternal adds edges to other domains in the DOT report.
	DOTExternal bool

	// MarkdownFile is the Markdown report path. Empty disables it.
	MarkdownFile string

	// JSONFile is the JSON report path. Empty disables it.
	JSONFile string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/sitecrawler on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl results to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, budgets).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:        DefaultTimeout,
		MaxPages:       DefaultMaxPages,
		MaxConcurrency: DefaultMaxConcurrency,
		MaxRetries:     DefaultMaxRetries,
		MaxBodySize:    DefaultMaxBodySize,
		UserAgent:      DefaultUserAgent,
		RespectRobots:  true,
		Headers:        make(map[string]string),
		CSVFile:        DefaultCSVFile,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawler.
// On Linux: ~/.local/share/sitecrawler
// On macOS: ~/Library/Application Support/sitecrawler
// On Windows: %LOCALAPPDATA%\sitecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawler.
// On Linux: ~/.config/sitecrawler
// On macOS: ~/Library/Application Support/sitecrawler
// On Windows: %APPDATA%\sitecrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Target == "" {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidMaxConcurrency
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// Setting names a crawl setting that both the command line and the
// configuration file can set.
type Setting string

// Settings tracked in Config.Explicit.
const (
	SettingMaxPages       Setting = "maxPages"
	SettingMaxConcurrency Setting = "maxConcurrency"
	SettingMaxRetries     Setting = "maxRetries"
	SettingUserAgent      Setting = "userAgent"
)

// MarkExplicit records that s was given on the command line.
func (c *Config) MarkExplicit(s Setting) {
	if c.Explicit == nil {
		c.Explicit = make(map[Setting]bool)
	}
	c.Explicit[s] = true
}

// ApplySiteConfig merges the configuration file entry for host into c.
// File values replace defaults but not settings marked explicit. Headers
// are merged and the cookie becomes a Cookie request header.
func (c *Config) ApplySiteConfig(host string) {
	if c.SiteConfigs == nil {
		return
	}
	site := c.SiteConfigs.GetSiteConfig(host)

	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	for k, v := range site.Headers {
		c.Headers[http.CanonicalHeaderKey(k)] = v
	}
	if site.Cookie != "" {
		c.Headers["Cookie"] = site.Cookie
	}
	if site.MaxPages > 0 && !c.Explicit[SettingMaxPages] {
		c.MaxPages = site.MaxPages
	}
	if site.MaxConcurrency > 0 && !c.Explicit[SettingMaxConcurrency] {
		c.MaxConcurrency = site.MaxConcurrency
	}
	if site.MaxRetries != nil && *site.MaxRetries >= 0 && !c.Explicit[SettingMaxRetries] {
		c.MaxRetries = *site.MaxRetries
	}
	if site.UserAgent != "" && !c.Explicit[SettingUserAgent] {
		c.UserAgent = site.UserAgent
	}
}
