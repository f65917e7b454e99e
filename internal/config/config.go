// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	Crawler     CrawlerConfig `mapstructure:"crawler"`
	Browser     BrowserConfig `mapstructure:"browser"`
	Proxy       ProxyConfig   `mapstructure:"proxy"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	UserAgent           string `mapstructure:"user_agent"`
	Categories          int    `mapstructure:"categories"`
	MaxLinksPerCategory int    `mapstructure:"max_links_per_category"`
	RaceDelayMs         int    `mapstructure:"race_delay_ms"`
	CategoryDelayMs     int    `mapstructure:"category_delay_ms"`
}

// BrowserConfig configures the automation driver.
type BrowserConfig struct {
	RemoteEndpoint    string `mapstructure:"remote_endpoint"`
	AllowLocalLaunch  bool   `mapstructure:"allow_local_launch"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs     int    `mapstructure:"settle_delay_ms"`
}

// ProxyConfig points at the text-extraction relay used as the fetch fallback.
type ProxyConfig struct {
	RelayBase string `mapstructure:"relay_base"`
}

// HTTPConfig configures the direct HTTP fetch leg.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RACEWINNERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("crawler.base_url", "https://firstcycling.com")
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("crawler.categories", 24)
	v.SetDefault("crawler.max_links_per_category", 50)
	v.SetDefault("crawler.race_delay_ms", 80)
	v.SetDefault("crawler.category_delay_ms", 120)
	v.SetDefault("browser.remote_endpoint", "")
	v.SetDefault("browser.allow_local_launch", true)
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.settle_delay_ms", 300)
	v.SetDefault("proxy.relay_base", "https://r.jina.ai")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.Categories <= 0 {
		return fmt.Errorf("crawler.categories must be > 0")
	}
	if c.Crawler.MaxLinksPerCategory <= 0 {
		return fmt.Errorf("crawler.max_links_per_category must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	return nil
}

// Production reports whether error detail should be withheld from responses.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RequestBudget is the hard ceiling for one crawl request.
func (c Config) RequestBudget() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
