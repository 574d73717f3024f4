package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ODDSDESK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ODDSDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Backend ──
	setStr(&cfg.Backend.BaseURL, "ODDSDESK_BACKEND_BASE_URL")
	setStr(&cfg.Backend.WSURL, "ODDSDESK_BACKEND_WS_URL")
	setStr(&cfg.Backend.APIKey, "ODDSDESK_BACKEND_API_KEY")
	setDuration(&cfg.Backend.Timeout, "ODDSDESK_BACKEND_TIMEOUT")
	setFloat64(&cfg.Backend.RatePerSec, "ODDSDESK_BACKEND_RATE_PER_SEC")
	setInt(&cfg.Backend.Burst, "ODDSDESK_BACKEND_BURST")
	setInt(&cfg.Backend.MaxRetries, "ODDSDESK_BACKEND_MAX_RETRIES")

	// ── Dashboard ──
	setDuration(&cfg.Dashboard.ReconnectDelay, "ODDSDESK_DASHBOARD_RECONNECT_DELAY")
	setDuration(&cfg.Dashboard.PollInterval, "ODDSDESK_DASHBOARD_POLL_INTERVAL")
	setInt(&cfg.Dashboard.DisplayLimit, "ODDSDESK_DASHBOARD_DISPLAY_LIMIT")
	setFloat64(&cfg.Dashboard.FallbackBankroll, "ODDSDESK_DASHBOARD_FALLBACK_BANKROLL")
	setDuration(&cfg.Dashboard.HiddenTTL, "ODDSDESK_DASHBOARD_HIDDEN_TTL")
	setDuration(&cfg.Dashboard.BalanceTTL, "ODDSDESK_DASHBOARD_BALANCE_TTL")
	setDuration(&cfg.Dashboard.SubmitLockTTL, "ODDSDESK_DASHBOARD_SUBMIT_LOCK_TTL")
	setInt64(&cfg.Dashboard.PresetID, "ODDSDESK_DASHBOARD_PRESET_ID")
	setInt(&cfg.Dashboard.ArchiveAfterDays, "ODDSDESK_DASHBOARD_ARCHIVE_AFTER_DAYS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ODDSDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ODDSDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ODDSDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ODDSDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ODDSDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ODDSDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ODDSDESK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ODDSDESK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ODDSDESK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ODDSDESK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ODDSDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSDESK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ODDSDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ODDSDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "ODDSDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ODDSDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ODDSDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ODDSDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ODDSDESK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSDESK_SERVER_ENABLED")
	setStr(&cfg.Server.Host, "ODDSDESK_SERVER_HOST")
	setInt(&cfg.Server.Port, "ODDSDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSDESK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ODDSDESK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ODDSDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ODDSDESK_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ODDSDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ODDSDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ODDSDESK_MODE")
	setStr(&cfg.LogLevel, "ODDSDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
