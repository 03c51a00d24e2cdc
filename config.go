package seoconsole

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// Config holds all configuration for the console.
type Config struct {
	SiteURL   string `yaml:"site_url"`   // Site whose pages are validated (default "http://localhost:3000")
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	AppDir    string `yaml:"app_dir"`    // Next.js app directory for route discovery (default "app")
	UserAgent string `yaml:"user_agent"` // Crawler user-agent (default fetch.DefaultUserAgent)

	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Validation ValidationConfig `yaml:"validation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	CacheTTL time.Duration `yaml:"cache_ttl"` // Sitemap record cache TTL (default 5m)
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Type string `yaml:"type"` // "sqlite" (default) or "file"
	Path string `yaml:"path"` // default "data/seo-console.db" or "data/seo-records.json"
}

// ValidationConfig tunes outbound requests.
type ValidationConfig struct {
	HTMLTimeout   time.Duration `yaml:"html_timeout"`    // default 10s
	ImageTimeout  time.Duration `yaml:"image_timeout"`   // default 15s
	MaxImageBytes int64         `yaml:"max_image_bytes"` // default 32 MiB
	RequestDelay  time.Duration `yaml:"request_delay"`   // spacing in bulk flows (default 200ms)
	CrawlDelay    time.Duration `yaml:"crawl_delay"`     // spacing in site crawls (default 100ms)
}

// RateLimitConfig limits expensive API endpoints per client IP.
type RateLimitConfig struct {
	Max    int           `yaml:"max"`    // default 30
	Window time.Duration `yaml:"window"` // default 1m
}

// LoadConfig reads a YAML config file. Unknown fields are rejected.
// Environment overrides and defaults are applied afterwards.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := unmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg, nil
}

func unmarshalStrict(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("unknown configuration field (check for typos): %w", err)
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.SiteURL = EnvOr("SITE_URL", c.SiteURL)
	c.Storage.Path = EnvOr("SEO_CONSOLE_STORAGE_PATH", c.Storage.Path)
	c.Storage.Type = EnvOr("SEO_CONSOLE_STORAGE_TYPE", c.Storage.Type)
	c.Addr = EnvOr("SEO_CONSOLE_ADDR", c.Addr)
	c.AppDir = EnvOr("SEO_CONSOLE_APP_DIR", c.AppDir)
}

func (c *Config) setDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3000"
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.AppDir == "" {
		c.AppDir = "app"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageSQLite
	}
	if c.Storage.Path == "" {
		if c.Storage.Type == StorageFile {
			c.Storage.Path = "data/seo-records.json"
		} else {
			c.Storage.Path = "data/seo-console.db"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = LogLevelInfo
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatConsole
	}
	if c.Validation.HTMLTimeout <= 0 {
		c.Validation.HTMLTimeout = 10 * time.Second
	}
	if c.Validation.ImageTimeout <= 0 {
		c.Validation.ImageTimeout = 15 * time.Second
	}
	if c.Validation.MaxImageBytes <= 0 {
		c.Validation.MaxImageBytes = 32 << 20
	}
	if c.Validation.RequestDelay <= 0 {
		c.Validation.RequestDelay = 200 * time.Millisecond
	}
	if c.Validation.CrawlDelay <= 0 {
		c.Validation.CrawlDelay = 100 * time.Millisecond
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 30
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore injects a record store instead of opening one from config.
func WithStore(s RecordStore) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithHTTPClient sets the client used for all outbound fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithLogger sets the logger instead of building one from config.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithClock sets the clock used to stamp validation results.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithAppFS sets the filesystem route discovery walks (default: the working
// directory).
func WithAppFS(fsys fs.FS) Option {
	return func(a *App) {
		a.appFS = fsys
	}
}
