package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polyedge/polyedge/internal/blob/s3"
	"github.com/polyedge/polyedge/internal/cache/redis"
	"github.com/polyedge/polyedge/internal/config"
	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/notify"
	"github.com/polyedge/polyedge/internal/source"
	"github.com/polyedge/polyedge/internal/source/news"
	"github.com/polyedge/polyedge/internal/source/polymarket"
	"github.com/polyedge/polyedge/internal/source/social"
	"github.com/polyedge/polyedge/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need. It is constructed by Wire and torn down by the returned cleanup
// function. Optional dependencies (Postgres stores, Redis caches, the
// archiver) are nil when the mode or config does not enable them.
type Dependencies struct {
	// Stores
	SignalStore domain.SignalStore
	MarketStore domain.MarketStore

	// Caches and messaging
	MarketCache domain.MarketCache
	StateCache  domain.StateCache
	SignalBus   domain.SignalBus

	// Upstream sources
	Markets domain.MarketSource
	News    domain.NewsSource
	Social  domain.SocialSource
	Gates   []*source.Gate

	// Cold storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Upstream sources ---
	// Each real connector sits behind an availability gate so a rate limit on
	// one API degrades that source instead of failing scans.
	if cfg.Polymarket.UseMock {
		deps.Markets = polymarket.NewMockSource()
	} else {
		gate := source.NewGate("polymarket", cfg.Gate.RetryAfter.Duration, logger)
		deps.Gates = append(deps.Gates, gate)
		deps.Markets = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, gate, logger)
	}

	if cfg.News.UseMock {
		deps.News = news.NewMockSource()
	} else if cfg.News.ApiKey != "" {
		gate := source.NewGate("news_api", cfg.Gate.RetryAfter.Duration, logger)
		deps.Gates = append(deps.Gates, gate)
		deps.News = news.NewClient(cfg.News.BaseURL, cfg.News.ApiKey, gate, logger)
	}

	if cfg.Social.UseMock {
		deps.Social = social.NewMockSource()
	} else if cfg.Social.BearerToken != "" {
		gate := source.NewGate("social_api", cfg.Gate.RetryAfter.Duration, logger)
		deps.Gates = append(deps.Gates, gate)
		deps.Social = social.NewClient(cfg.Social.BaseURL, cfg.Social.BearerToken, gate, logger)
	}

	// --- PostgreSQL (only for modes that require persistence) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.SignalStore = postgres.NewSignalStore(pool)
		deps.MarketStore = postgres.NewMarketStore(pool)
	}

	// --- Redis (optional everywhere) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.StateCache = redis.NewStateCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 cold storage (only when archival is enabled) ---
	if cfg.Archive.Enabled && deps.SignalStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.SignalStore,
			cfg.Archive.RetentionDays,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
