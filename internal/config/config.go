// Package config defines the top-level configuration for the polyedge signal
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYEDGE_* environment variables.
type Config struct {
	Signals    SignalsConfig    `toml:"signals"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Tracking   TrackingConfig   `toml:"tracking"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	News       NewsConfig       `toml:"news"`
	Social     SocialConfig     `toml:"social"`
	Gate       GateConfig       `toml:"gate"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SignalsConfig holds rule thresholds and quality-filter parameters.
type SignalsConfig struct {
	MinConfidence float64 `toml:"min_confidence"`

	SentimentDivergenceThreshold float64 `toml:"sentiment_divergence_threshold"`
	VolumeSurgeMultiplier        float64 `toml:"volume_surge_multiplier"`
	SocialSpikeMultiplier        float64 `toml:"social_spike_multiplier"`
	PriceMomentumThreshold       float64 `toml:"price_momentum_threshold"`

	MinSentimentStrength float64 `toml:"min_sentiment_strength"`
	MinArticleCount      int     `toml:"min_article_count"`

	// Quality filter.
	MinDaysToExpiry    int     `toml:"min_days_to_expiry"`
	MinMarketTier      string  `toml:"min_market_tier"` // THIN, LOW, MEDIUM, HIGH
	MinPriceForSignals float64 `toml:"min_price_for_signals"`
	MaxPriceForSignals float64 `toml:"max_price_for_signals"`
}

// ScannerConfig holds the market universe configuration for scans.
type ScannerConfig struct {
	// Watchlist is the list of market slugs to scan every run.
	Watchlist []string `toml:"watchlist"`

	DiscoveryEnabled    bool    `toml:"discovery_enabled"`
	DiscoveryMaxMarkets int     `toml:"discovery_max_markets"`
	DiscoveryMinVolume  float64 `toml:"discovery_min_volume"`

	// Per-source kill switches. Social is off by default: the Twitter API
	// is expensive.
	SkipNewsAPI   bool `toml:"skip_news_api"`
	SkipSocialAPI bool `toml:"skip_social_api"`

	// ScanInterval is how often the full-mode scan loop runs.
	ScanInterval duration `toml:"scan_interval"`
	// Concurrency bounds the number of markets evaluated in parallel.
	Concurrency int `toml:"concurrency"`
}

// TrackingConfig holds the background tracker parameters.
type TrackingConfig struct {
	Enabled      bool     `toml:"enabled"`
	Interval     duration `toml:"interval"`
	InitialDelay duration `toml:"initial_delay"`
	ExpireDays   int      `toml:"expire_days"`
}

// PolymarketConfig holds Gamma API parameters for the market source.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	UseMock   bool   `toml:"use_mock"`
}

// NewsConfig holds NewsAPI parameters.
type NewsConfig struct {
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	UseMock bool   `toml:"use_mock"`
}

// SocialConfig holds Twitter/X API parameters.
type SocialConfig struct {
	BaseURL     string `toml:"base_url"`
	BearerToken string `toml:"bearer_token"`
	UseMock     bool   `toml:"use_mock"`
}

// GateConfig tunes the availability gates wrapped around the upstream
// sources.
type GateConfig struct {
	// RetryAfter is the backoff base applied after a rate-limit response
	// when the upstream does not send Retry-After. Doubles per consecutive
	// failure, capped at two hours.
	RetryAfter duration `toml:"retry_after"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls cold-storage archival of terminal signals.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML text (un)marshaling.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Signals: SignalsConfig{
			MinConfidence:                0.5,
			SentimentDivergenceThreshold: 0.20,
			VolumeSurgeMultiplier:        3.0,
			SocialSpikeMultiplier:        5.0,
			PriceMomentumThreshold:       0.10,
			MinSentimentStrength:         0.3,
			MinArticleCount:              5,
			MinDaysToExpiry:              7,
			MinMarketTier:                "LOW",
			MinPriceForSignals:           0.05,
			MaxPriceForSignals:           0.95,
		},
		Scanner: ScannerConfig{
			Watchlist:           []string{},
			DiscoveryEnabled:    false,
			DiscoveryMaxMarkets: 5,
			DiscoveryMinVolume:  1_000_000,
			SkipNewsAPI:         false,
			SkipSocialAPI:       true,
			ScanInterval:        duration{30 * time.Minute},
			Concurrency:         4,
		},
		Tracking: TrackingConfig{
			Enabled:      true,
			Interval:     duration{time.Hour},
			InitialDelay: duration{time.Minute},
			ExpireDays:   30,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			UseMock:   false,
		},
		News: NewsConfig{
			BaseURL: "https://newsapi.org/v2",
			UseMock: false,
		},
		Social: SocialConfig{
			BaseURL: "https://api.twitter.com/2",
			UseMock: false,
		},
		Gate: GateConfig{
			RetryAfter: duration{15 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyedge",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyedge-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"signal", "resolution", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":  true,
	"serve": true,
	"track": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTiers = map[string]bool{
	"THIN":   true,
	"LOW":    true,
	"MEDIUM": true,
	"HIGH":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, serve, track, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Signals
	s := c.Signals
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("signals: min_confidence must be in [0,1], got %g", s.MinConfidence))
	}
	if s.SentimentDivergenceThreshold <= 0 {
		errs = append(errs, "signals: sentiment_divergence_threshold must be positive")
	}
	if s.VolumeSurgeMultiplier <= 1 {
		errs = append(errs, "signals: volume_surge_multiplier must be > 1")
	}
	if s.SocialSpikeMultiplier <= 1 {
		errs = append(errs, "signals: social_spike_multiplier must be > 1")
	}
	if s.PriceMomentumThreshold <= 0 {
		errs = append(errs, "signals: price_momentum_threshold must be positive")
	}
	if !validTiers[strings.ToUpper(s.MinMarketTier)] {
		errs = append(errs, fmt.Sprintf("signals: unknown min_market_tier %q (valid: THIN, LOW, MEDIUM, HIGH)", s.MinMarketTier))
	}
	if s.MinPriceForSignals < 0 || s.MaxPriceForSignals > 1 || s.MinPriceForSignals >= s.MaxPriceForSignals {
		errs = append(errs, fmt.Sprintf("signals: price band [%g, %g] is not a valid sub-range of [0,1]", s.MinPriceForSignals, s.MaxPriceForSignals))
	}
	if s.MinDaysToExpiry < 0 {
		errs = append(errs, "signals: min_days_to_expiry must not be negative")
	}

	// Scanner
	if c.Scanner.DiscoveryEnabled && c.Scanner.DiscoveryMaxMarkets <= 0 {
		errs = append(errs, "scanner: discovery_max_markets must be positive when discovery is enabled")
	}
	if c.Scanner.ScanInterval.Duration <= 0 {
		errs = append(errs, "scanner: scan_interval must be positive")
	}
	if c.Scanner.Concurrency < 1 {
		errs = append(errs, "scanner: concurrency must be >= 1")
	}

	// Tracking
	if c.Tracking.Interval.Duration <= 0 {
		errs = append(errs, "tracking: interval must be positive")
	}
	if c.Tracking.ExpireDays <= 0 {
		errs = append(errs, "tracking: expire_days must be positive")
	}

	// Polymarket
	if !c.Polymarket.UseMock && c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	// Gate
	if c.Gate.RetryAfter.Duration <= 0 {
		errs = append(errs, "gate: retry_after must be positive")
	}

	// Postgres — required for modes that persist.
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	}

	// Archive needs S3 parameters.
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when archive is enabled")
		}
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Notify — telegram credentials must come in pairs.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must both be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NeedsPostgres reports whether the configured mode requires persistence.
func (c *Config) NeedsPostgres() bool {
	switch strings.ToLower(c.Mode) {
	case "serve", "track", "full":
		return true
	default:
		return false
	}
}
