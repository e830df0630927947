package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	IGDB      IGDBConfig      `mapstructure:"igdb"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// IGDBConfig holds catalog API configuration. Credentials are Twitch
// application credentials exchanged for an app access token.
type IGDBConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	BaseURL           string  `mapstructure:"base_url"`
	TokenURL          string  `mapstructure:"token_url"`
	Timeout           int     `mapstructure:"timeout"` // seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        uint    `mapstructure:"max_retries"`
}

// DiscoveryConfig holds tuning for the game discovery endpoints.
type DiscoveryConfig struct {
	DefaultLimit    int           `mapstructure:"default_limit"`
	MaxFetch        int           `mapstructure:"max_fetch"`
	HotMultiplier   int           `mapstructure:"hot_multiplier"`
	SearchPool      int           `mapstructure:"search_pool"`
	SearchTopK      int           `mapstructure:"search_top_k"`
	TopPool         int           `mapstructure:"top_pool"`
	TopLimit        int           `mapstructure:"top_limit"`
	FeaturedLimit   int           `mapstructure:"featured_limit"`
	ComingSoonLimit int           `mapstructure:"coming_soon_limit"`
	GenreLimit      int           `mapstructure:"genre_limit"`
	PlatformLimit   int           `mapstructure:"platform_limit"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxItems   int           `mapstructure:"cache_max_items"`
	AllowRawQueries bool          `mapstructure:"allow_raw_queries"`
}

// SchedulerConfig holds background task configuration.
type SchedulerConfig struct {
	WarmCron           string        `mapstructure:"warm_cron"`
	LibraryRefreshCron string        `mapstructure:"library_refresh_cron"`
	LibraryStaleAfter  time.Duration `mapstructure:"library_stale_after"`
}

// RateLimitConfig holds per-client request limits for the catalog API.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/backlogd.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		IGDB:      DefaultIGDBConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Scheduler: SchedulerConfig{
			WarmCron:           "*/15 * * * *",
			LibraryRefreshCron: "0 4 * * *",
			LibraryStaleAfter:  7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
	}
}

// DefaultIGDBConfig returns the catalog client defaults.
func DefaultIGDBConfig() IGDBConfig {
	return IGDBConfig{
		ClientID:          EmbeddedClientID,
		ClientSecret:      EmbeddedClientSecret,
		BaseURL:           "https://api.igdb.com/v4",
		TokenURL:          "https://id.twitch.tv/oauth2/token",
		Timeout:           15,
		RequestsPerSecond: 4,
		MaxRetries:        3,
	}
}

// DefaultDiscoveryConfig returns the discovery defaults.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		DefaultLimit:    48,
		MaxFetch:        200,
		HotMultiplier:   4,
		SearchPool:      100,
		SearchTopK:      20,
		TopPool:         200,
		TopLimit:        50,
		FeaturedLimit:   24,
		ComingSoonLimit: 50,
		GenreLimit:      50,
		PlatformLimit:   100,
		CacheTTL:        10 * time.Minute,
		CacheMaxItems:   500,
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.backlogd")
	}

	v.SetEnvPrefix("BACKLOGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional Twitch variable names, as issued by the developer console.
	_ = v.BindEnv("igdb.client_id", "BACKLOGD_IGDB_CLIENT_ID", "TWITCH_CLIENT_ID")
	_ = v.BindEnv("igdb.client_secret", "BACKLOGD_IGDB_CLIENT_SECRET", "TWITCH_CLIENT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("igdb.client_id", d.IGDB.ClientID)
	v.SetDefault("igdb.client_secret", d.IGDB.ClientSecret)
	v.SetDefault("igdb.base_url", d.IGDB.BaseURL)
	v.SetDefault("igdb.token_url", d.IGDB.TokenURL)
	v.SetDefault("igdb.timeout", d.IGDB.Timeout)
	v.SetDefault("igdb.requests_per_second", d.IGDB.RequestsPerSecond)
	v.SetDefault("igdb.max_retries", d.IGDB.MaxRetries)

	v.SetDefault("discovery.default_limit", d.Discovery.DefaultLimit)
	v.SetDefault("discovery.max_fetch", d.Discovery.MaxFetch)
	v.SetDefault("discovery.hot_multiplier", d.Discovery.HotMultiplier)
	v.SetDefault("discovery.search_pool", d.Discovery.SearchPool)
	v.SetDefault("discovery.search_top_k", d.Discovery.SearchTopK)
	v.SetDefault("discovery.top_pool", d.Discovery.TopPool)
	v.SetDefault("discovery.top_limit", d.Discovery.TopLimit)
	v.SetDefault("discovery.featured_limit", d.Discovery.FeaturedLimit)
	v.SetDefault("discovery.coming_soon_limit", d.Discovery.ComingSoonLimit)
	v.SetDefault("discovery.genre_limit", d.Discovery.GenreLimit)
	v.SetDefault("discovery.platform_limit", d.Discovery.PlatformLimit)
	v.SetDefault("discovery.cache_ttl", d.Discovery.CacheTTL)
	v.SetDefault("discovery.cache_max_items", d.Discovery.CacheMaxItems)
	v.SetDefault("discovery.allow_raw_queries", d.Discovery.AllowRawQueries)

	v.SetDefault("scheduler.warm_cron", d.Scheduler.WarmCron)
	v.SetDefault("scheduler.library_refresh_cron", d.Scheduler.LibraryRefreshCron)
	v.SetDefault("scheduler.library_stale_after", d.Scheduler.LibraryStaleAfter)

	v.SetDefault("ratelimit.requests_per_minute", d.RateLimit.RequestsPerMinute)
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Discovery.DefaultLimit < 1 {
		return fmt.Errorf("discovery.default_limit must be positive, got %d", c.Discovery.DefaultLimit)
	}
	if c.Discovery.MaxFetch < c.Discovery.DefaultLimit {
		return fmt.Errorf("discovery.max_fetch (%d) must be at least default_limit (%d)",
			c.Discovery.MaxFetch, c.Discovery.DefaultLimit)
	}
	if c.Discovery.HotMultiplier < 1 {
		return fmt.Errorf("discovery.hot_multiplier must be positive, got %d", c.Discovery.HotMultiplier)
	}
	if c.IGDB.RequestsPerSecond <= 0 {
		return fmt.Errorf("igdb.requests_per_second must be positive, got %v", c.IGDB.RequestsPerSecond)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasCredentials reports whether both Twitch credentials are present.
func (c *IGDBConfig) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
