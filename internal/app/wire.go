package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/oddsdesk/internal/blob/s3"
	"github.com/alanyoungcy/oddsdesk/internal/cache/redis"
	"github.com/alanyoungcy/oddsdesk/internal/config"
	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/platform/backend"
	"github.com/alanyoungcy/oddsdesk/internal/server/handler"
	"github.com/alanyoungcy/oddsdesk/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	BetStore    domain.BetStore
	PresetStore domain.PresetStore
	HiddenStore domain.HiddenItemStore

	// Caches
	BalanceCache  domain.BalanceCache
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Upstream backend
	Backend   *backend.Client
	Transport *backend.FeedTransport

	// Blob storage
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Health probes, keyed by dependency name.
	Checks map[string]handler.Checker
}

// needsRedis returns true for modes that run the live dashboard.
func needsRedis(mode string) bool {
	return mode == "dashboard" || mode == "headless"
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "archive"
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

	deps := &Dependencies{Checks: make(map[string]handler.Checker)}

	// --- PostgreSQL ---
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
	deps.Checks["postgres"] = pgClient.Health

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	bets := postgres.NewBetStore(pool)
	deps.BetStore = bets
	deps.PresetStore = postgres.NewPresetStore(pool)
	deps.HiddenStore = postgres.NewHiddenItemStore(pool)

	// --- Redis (live modes only) ---
	if needsRedis(cfg.Mode) {
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
		deps.Checks["redis"] = redisClient.Ping

		deps.BalanceCache = redis.NewBalanceCache(redisClient)
		deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)

		deps.Backend = backend.NewClient(backend.ClientConfig{
			BaseURL:    cfg.Backend.BaseURL,
			APIKey:     cfg.Backend.APIKey,
			Timeout:    cfg.Backend.Timeout.Duration,
			RatePerSec: cfg.Backend.RatePerSec,
			Burst:      cfg.Backend.Burst,
			MaxRetries: cfg.Backend.MaxRetries,
		}, logger)
		deps.Transport = backend.NewFeedTransport(cfg.Backend.WSURL, cfg.Backend.APIKey, logger)
	}

	// --- S3 blob storage (archive mode only) ---
	if needsS3(cfg.Mode) {
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
		deps.Checks["s3"] = s3Client.Health

		bucket := s3Client.Bucket()
		deps.Archiver = s3blob.NewBetArchiver(bets, bucket, bucket, logger)
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
