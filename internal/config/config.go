package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/feed"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/newsapi"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// APIKeyEnv overrides newsapi.api_key when set.
const APIKeyEnv = "NEWS_API_KEY"

const (
	defaultCacheTTL  = 10 * time.Minute
	defaultRetention = 7 * 24 * time.Hour
)

type AggregatorConfig struct {
	EnableCache   bool     `yaml:"enable_cache"`
	Persist       bool     `yaml:"persist"`
	Fallback      bool     `yaml:"fallback"`
	FallbackLimit int      `yaml:"fallback_limit"`
	Priority      []string `yaml:"priority"`
}

type StoreConfig struct {
	Driver string            `yaml:"driver"`
	Path   string            `yaml:"path"`
	Redis  cache.RedisConfig `yaml:"redis"`
}

type ProviderConfig struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name,omitempty"`
	Enabled bool          `yaml:"enabled"`
	Feeds   []feed.Source `yaml:"feeds,omitempty"`
}

type Config struct {
	CacheTTL        string           `yaml:"cache_ttl"`
	Retention       string           `yaml:"retention"`
	LogLevel        string           `yaml:"log_level"`
	DefaultLanguage string           `yaml:"default_language"`
	Aggregator      AggregatorConfig `yaml:"aggregator"`
	Store           StoreConfig      `yaml:"store"`
	NewsAPI         newsapi.Config   `yaml:"newsapi"`
	Providers       []ProviderConfig `yaml:"providers"`
}

func (c *Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return defaultCacheTTL
	}
	return d
}

func (c *Config) RetentionDuration() time.Duration {
	return ParseRetention(c.Retention, defaultRetention)
}

// ParseRetention parses Go durations plus an "Nd" day form, returning def
// for empty or invalid input.
func ParseRetention(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	// Support "Nd" day syntax
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// FeedConfig resolves a feed provider entry against the built-in presets.
// It reports false for the API provider and for unknown ids without feeds.
func (p ProviderConfig) FeedConfig() (feed.Config, bool) {
	if p.ID == newsapi.ID {
		return feed.Config{}, false
	}
	cfg, ok := feed.Presets()[p.ID]
	if !ok {
		if len(p.Feeds) == 0 {
			return feed.Config{}, false
		}
		cfg = feed.Config{ID: p.ID, Name: p.ID}
	}
	if p.Name != "" {
		cfg.Name = p.Name
	}
	if len(p.Feeds) > 0 {
		cfg.Feeds = p.Feeds
	}
	return cfg, true
}

// StorePath is the SQLite file location, defaulting to the XDG cache dir.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return CachePath()
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "lingonews", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "lingonews", "lingonews.db")
}

// LoadEnv reads .env files from the working directory. Missing files are
// ignored; variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path layered over the embedded defaults. A
// missing file is created from the defaults on first run.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Non-fatal: embedded defaults still apply
		_ = writeDefaults(path)
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		cfg.NewsAPI.APIKey = key
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if _, err := time.ParseDuration(cfg.CacheTTL); cfg.CacheTTL != "" && err != nil {
		return fmt.Errorf("cache_ttl: %w", err)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}
	if cfg.DefaultLanguage != "" {
		if err := validateLanguage(cfg.DefaultLanguage); err != nil {
			return fmt.Errorf("default_language: %w", err)
		}
	}

	switch cfg.Store.Driver {
	case "", "sqlite":
	case "redis":
		if cfg.Store.Redis.Address == "" {
			return errors.New("store.redis.address is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver: unknown driver %q (valid: sqlite, redis)", cfg.Store.Driver)
	}

	if cfg.NewsAPI.BaseURL != "" {
		if err := validateURL(cfg.NewsAPI.BaseURL); err != nil {
			return fmt.Errorf("newsapi.base_url: %w", err)
		}
	}
	if cfg.NewsAPI.RequestsPerSecond < 0 {
		return errors.New("newsapi.requests_per_second must not be negative")
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %d: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("provider %q: duplicate id", p.ID)
		}
		seen[p.ID] = true

		if _, preset := feed.Presets()[p.ID]; !preset && p.ID != newsapi.ID && len(p.Feeds) == 0 {
			return fmt.Errorf("provider %q: unknown provider needs feeds", p.ID)
		}
		for j, f := range p.Feeds {
			if err := validateFeed(f); err != nil {
				return fmt.Errorf("provider %q feed %d: %w", p.ID, j, err)
			}
		}
	}
	return nil
}

func validateFeed(f feed.Source) error {
	if f.URL == "" {
		return errors.New("url is required")
	}
	if err := validateURL(f.URL); err != nil {
		return err
	}
	if err := validateLanguage(f.Language); err != nil {
		return err
	}
	if _, ok := news.ParseCategory(string(f.Category)); !ok {
		return fmt.Errorf("unknown category %q", f.Category)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// validateLanguage accepts BCP 47 tags such as "en" or "ja".
func validateLanguage(s string) error {
	if s == "" {
		return errors.New("language is required")
	}
	if _, err := language.Parse(s); err != nil {
		return fmt.Errorf("invalid language %q: %w", s, err)
	}
	return nil
}
