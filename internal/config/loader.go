package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYEDGE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYEDGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Signals ──
	setFloat64(&cfg.Signals.MinConfidence, "POLYEDGE_SIGNALS_MIN_CONFIDENCE")
	setFloat64(&cfg.Signals.SentimentDivergenceThreshold, "POLYEDGE_SIGNALS_SENTIMENT_DIVERGENCE_THRESHOLD")
	setFloat64(&cfg.Signals.VolumeSurgeMultiplier, "POLYEDGE_SIGNALS_VOLUME_SURGE_MULTIPLIER")
	setFloat64(&cfg.Signals.SocialSpikeMultiplier, "POLYEDGE_SIGNALS_SOCIAL_SPIKE_MULTIPLIER")
	setFloat64(&cfg.Signals.PriceMomentumThreshold, "POLYEDGE_SIGNALS_PRICE_MOMENTUM_THRESHOLD")
	setFloat64(&cfg.Signals.MinSentimentStrength, "POLYEDGE_SIGNALS_MIN_SENTIMENT_STRENGTH")
	setInt(&cfg.Signals.MinArticleCount, "POLYEDGE_SIGNALS_MIN_ARTICLE_COUNT")
	setInt(&cfg.Signals.MinDaysToExpiry, "POLYEDGE_SIGNALS_MIN_DAYS_TO_EXPIRY")
	setStr(&cfg.Signals.MinMarketTier, "POLYEDGE_SIGNALS_MIN_MARKET_TIER")
	setFloat64(&cfg.Signals.MinPriceForSignals, "POLYEDGE_SIGNALS_MIN_PRICE_FOR_SIGNALS")
	setFloat64(&cfg.Signals.MaxPriceForSignals, "POLYEDGE_SIGNALS_MAX_PRICE_FOR_SIGNALS")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Watchlist, "POLYEDGE_SCANNER_WATCHLIST")
	setBool(&cfg.Scanner.DiscoveryEnabled, "POLYEDGE_SCANNER_DISCOVERY_ENABLED")
	setInt(&cfg.Scanner.DiscoveryMaxMarkets, "POLYEDGE_SCANNER_DISCOVERY_MAX_MARKETS")
	setFloat64(&cfg.Scanner.DiscoveryMinVolume, "POLYEDGE_SCANNER_DISCOVERY_MIN_VOLUME")
	setBool(&cfg.Scanner.SkipNewsAPI, "POLYEDGE_SCANNER_SKIP_NEWS_API")
	setBool(&cfg.Scanner.SkipSocialAPI, "POLYEDGE_SCANNER_SKIP_SOCIAL_API")
	setDuration(&cfg.Scanner.ScanInterval, "POLYEDGE_SCANNER_SCAN_INTERVAL")
	setInt(&cfg.Scanner.Concurrency, "POLYEDGE_SCANNER_CONCURRENCY")

	// ── Tracking ──
	setBool(&cfg.Tracking.Enabled, "POLYEDGE_TRACKING_ENABLED")
	setDuration(&cfg.Tracking.Interval, "POLYEDGE_TRACKING_INTERVAL")
	setDuration(&cfg.Tracking.InitialDelay, "POLYEDGE_TRACKING_INITIAL_DELAY")
	setInt(&cfg.Tracking.ExpireDays, "POLYEDGE_TRACKING_EXPIRE_DAYS")

	// ── Sources ──
	setStr(&cfg.Polymarket.GammaHost, "POLYEDGE_POLYMARKET_GAMMA_HOST")
	setBool(&cfg.Polymarket.UseMock, "POLYEDGE_POLYMARKET_USE_MOCK")
	setStr(&cfg.News.BaseURL, "POLYEDGE_NEWS_BASE_URL")
	setStr(&cfg.News.ApiKey, "POLYEDGE_NEWS_API_KEY")
	setBool(&cfg.News.UseMock, "POLYEDGE_NEWS_USE_MOCK")
	setStr(&cfg.Social.BaseURL, "POLYEDGE_SOCIAL_BASE_URL")
	setStr(&cfg.Social.BearerToken, "POLYEDGE_SOCIAL_BEARER_TOKEN")
	setBool(&cfg.Social.UseMock, "POLYEDGE_SOCIAL_USE_MOCK")
	setDuration(&cfg.Gate.RetryAfter, "POLYEDGE_GATE_RETRY_AFTER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYEDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYEDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYEDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYEDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYEDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYEDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYEDGE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYEDGE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYEDGE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYEDGE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYEDGE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYEDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYEDGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYEDGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYEDGE_REDIS_TLS_ENABLED")

	// ── S3 / Archive ──
	setStr(&cfg.S3.Endpoint, "POLYEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYEDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYEDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYEDGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYEDGE_S3_FORCE_PATH_STYLE")
	setBool(&cfg.Archive.Enabled, "POLYEDGE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYEDGE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "POLYEDGE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYEDGE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYEDGE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYEDGE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYEDGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYEDGE_MODE")
	setStr(&cfg.LogLevel, "POLYEDGE_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
