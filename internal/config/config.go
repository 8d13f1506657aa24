// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Serp       SerpConfig       `yaml:"serpapi" mapstructure:"serpapi"`
	Rainforest RainforestConfig `yaml:"rainforest" mapstructure:"rainforest"`
	Ebay       EbayConfig       `yaml:"ebay" mapstructure:"ebay"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SerpConfig holds SerpAPI Google Shopping settings.
type SerpConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RainforestConfig holds Rainforest Amazon API settings.
type RainforestConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Domain  string `yaml:"domain" mapstructure:"domain"`
}

// EbayConfig holds eBay Browse API OAuth client credentials.
type EbayConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	Marketplace  string `yaml:"marketplace" mapstructure:"marketplace"`
	Sandbox      bool   `yaml:"sandbox" mapstructure:"sandbox"`
}

// BrowserConfig holds the remote headless browser settings.
type BrowserConfig struct {
	WebsocketURL string `yaml:"websocket_url" mapstructure:"websocket_url"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AggregateConfig configures the tiered source fallback.
type AggregateConfig struct {
	TiersFile        string `yaml:"tiers_file" mapstructure:"tiers_file"`
	ScrapeBudgetSecs int    `yaml:"scrape_budget_secs" mapstructure:"scrape_budget_secs"`
}

// CacheConfig configures search result memoization.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ScanConfig configures the deal scan orchestrator.
type ScanConfig struct {
	UserRatePerMin  float64  `yaml:"user_rate_per_min" mapstructure:"user_rate_per_min"`
	UserBurst       int      `yaml:"user_burst" mapstructure:"user_burst"`
	AlertWindowMins int      `yaml:"alert_window_mins" mapstructure:"alert_window_mins"`
	DealCategories  []string `yaml:"deal_categories" mapstructure:"deal_categories"`
	MaxItemsPerScan int      `yaml:"max_items_per_scan" mapstructure:"max_items_per_scan"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port       int    `yaml:"port" mapstructure:"port"`
	ScanSecret string `yaml:"scan_secret" mapstructure:"scan_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("rainforest.base_url", "https://api.rainforestapi.com")
	v.SetDefault("rainforest.domain", "amazon.com")
	v.SetDefault("ebay.marketplace", "EBAY_US")
	v.SetDefault("browser.timeout_secs", 30)
	v.SetDefault("aggregate.scrape_budget_secs", 25)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("scan.user_rate_per_min", 30)
	v.SetDefault("scan.user_burst", 5)
	v.SetDefault("scan.alert_window_mins", 60)
	v.SetDefault("scan.deal_categories", []string{"electronics", "home", "toys"})
	v.SetDefault("scan.max_items_per_scan", 200)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
