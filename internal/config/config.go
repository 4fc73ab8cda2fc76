// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig           `mapstructure:"logging"`
	Output  OutputConfig            `mapstructure:"output"`
	Server  ServerConfig            `mapstructure:"server"`
	Crawl   CrawlConfig             `mapstructure:"crawl"`
	Fetch   FetchConfig             `mapstructure:"fetch"`
	Sites   map[string]SiteOverride `mapstructure:"sites"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// OutputConfig controls where run exports are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig controls the optional status/metrics listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// CrawlConfig governs the per-run crawl limits and filters.
type CrawlConfig struct {
	Sites         []string `mapstructure:"sites"`
	Category      string   `mapstructure:"category"`
	Region        string   `mapstructure:"region"`
	MaxPages      int      `mapstructure:"max_pages"`
	MaxProperties int      `mapstructure:"max_properties"`
}

// FetchConfig configures the fetch subsystem shared by all sites.
type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
	RenderEnabled   bool          `mapstructure:"render_enabled"`
	RenderMaxTabs   int           `mapstructure:"render_max_tabs"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	ShellMinBytes   int           `mapstructure:"shell_min_bytes"`
	ShellKeywords   []string      `mapstructure:"shell_keywords"`
	MaxPageBytes    int64         `mapstructure:"max_page_bytes"`
	BackoffInitial  time.Duration `mapstructure:"backoff_initial"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	BackoffAttempts int           `mapstructure:"backoff_attempts"`
}

// SiteOverride lets a config file adjust one built-in site profile without
// redefining it. Zero values mean "keep the built-in value".
type SiteOverride struct {
	ListURL        string        `mapstructure:"list_url"`
	RateLimit      time.Duration `mapstructure:"rate_limit"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	Disabled       bool          `mapstructure:"disabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("listings-crawler")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.listings-crawler")
		v.AddConfigPath("/etc/listings-crawler")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("output.dir", "data")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8090)
	v.SetDefault("crawl.sites", []string{})
	v.SetDefault("crawl.category", "buy")
	v.SetDefault("crawl.region", "")
	v.SetDefault("crawl.max_pages", 5)
	v.SetDefault("crawl.max_properties", 100)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.render_enabled", true)
	v.SetDefault("fetch.render_max_tabs", 2)
	v.SetDefault("fetch.nav_timeout", 45*time.Second)
	v.SetDefault("fetch.shell_min_bytes", 2000)
	v.SetDefault("fetch.shell_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__NUXT__",
	})
	v.SetDefault("fetch.max_page_bytes", 8*1024*1024)
	v.SetDefault("fetch.backoff_initial", 500*time.Millisecond)
	v.SetDefault("fetch.backoff_max", 8*time.Second)
	v.SetDefault("fetch.backoff_attempts", 3)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	if c.Crawl.Category != "buy" && c.Crawl.Category != "rent" {
		return fmt.Errorf("crawl.category must be buy or rent, got %q", c.Crawl.Category)
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.MaxProperties <= 0 {
		return fmt.Errorf("crawl.max_properties must be > 0")
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if c.Fetch.RenderEnabled && c.Fetch.RenderMaxTabs <= 0 {
		return fmt.Errorf("fetch.render_max_tabs must be > 0 when rendering is enabled")
	}
	if c.Fetch.NavTimeout <= 0 {
		return fmt.Errorf("fetch.nav_timeout must be > 0")
	}
	if c.Fetch.MaxPageBytes <= 0 {
		return fmt.Errorf("fetch.max_page_bytes must be > 0")
	}
	if c.Fetch.BackoffAttempts <= 0 {
		return fmt.Errorf("fetch.backoff_attempts must be > 0")
	}
	return nil
}
