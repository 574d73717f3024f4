// Package config defines the top-level configuration for oddsdesk and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ODDSDESK_* environment variables.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// BackendConfig holds the upstream odds backend endpoints and client limits.
type BackendConfig struct {
	BaseURL    string   `toml:"base_url"`
	WSURL      string   `toml:"ws_url"`
	APIKey     string   `toml:"api_key"`
	Timeout    duration `toml:"timeout"`
	RatePerSec float64  `toml:"rate_per_sec"`
	Burst      int      `toml:"burst"`
	MaxRetries int      `toml:"max_retries"`
}

// DashboardConfig holds the live-session and reconciliation constants.
type DashboardConfig struct {
	ReconnectDelay   duration `toml:"reconnect_delay"`
	PollInterval     duration `toml:"poll_interval"`
	DisplayLimit     int      `toml:"display_limit"`
	FallbackBankroll float64  `toml:"fallback_bankroll"`
	HiddenTTL        duration `toml:"hidden_ttl"`
	BalanceTTL       duration `toml:"balance_ttl"`
	SubmitLockTTL    duration `toml:"submit_lock_ttl"`
	// PresetID is selected at startup in headless mode. Zero leaves the
	// session idle.
	PresetID         int64 `toml:"preset_id"`
	ArchiveAfterDays int   `toml:"archive_after_days"`
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the bet archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is the number of API requests allowed per client IP per
	// RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "3s", "24h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values in config.example.toml.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8080",
			WSURL:      "ws://localhost:8080",
			Timeout:    duration{10 * time.Second},
			RatePerSec: 5,
			Burst:      10,
			MaxRetries: 3,
		},
		Dashboard: DashboardConfig{
			ReconnectDelay:   duration{3 * time.Second},
			PollInterval:     duration{60 * time.Second},
			DisplayLimit:     20,
			FallbackBankroll: 1000,
			HiddenTTL:        duration{24 * time.Hour},
			BalanceTTL:       duration{30 * time.Second},
			SubmitLockTTL:    duration{10 * time.Second},
			ArchiveAfterDays: 90,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oddsdesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsdesk-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"bet_placed", "feed_disconnected", "hide_failed"},
		},
		Mode:     "dashboard",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"dashboard": true,
	"headless":  true,
	"archive":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEvents mirrors notify.KnownEvents. It is duplicated here so config
// does not import the notifier.
var validEvents = map[string]bool{
	"bet_placed":        true,
	"feed_connected":    true,
	"feed_disconnected": true,
	"hide_failed":       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: dashboard, headless, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backend is only contacted by the live modes.
	if mode != "archive" {
		if err := checkURL(c.Backend.BaseURL, "http", "https"); err != nil {
			errs = append(errs, "backend: base_url "+err.Error())
		}
		if err := checkURL(c.Backend.WSURL, "ws", "wss"); err != nil {
			errs = append(errs, "backend: ws_url "+err.Error())
		}
		if c.Backend.RatePerSec < 0 {
			errs = append(errs, "backend: rate_per_sec must be >= 0")
		}
		if c.Backend.MaxRetries < 0 {
			errs = append(errs, "backend: max_retries must be >= 0")
		}
	}

	// Dashboard
	if c.Dashboard.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "dashboard: reconnect_delay must be > 0")
	}
	if c.Dashboard.PollInterval.Duration <= 0 {
		errs = append(errs, "dashboard: poll_interval must be > 0")
	}
	if c.Dashboard.DisplayLimit < 1 {
		errs = append(errs, "dashboard: display_limit must be >= 1")
	}
	if c.Dashboard.FallbackBankroll <= 0 {
		errs = append(errs, "dashboard: fallback_bankroll must be > 0")
	}
	if c.Dashboard.HiddenTTL.Duration <= 0 {
		errs = append(errs, "dashboard: hidden_ttl must be > 0")
	}
	if c.Dashboard.SubmitLockTTL.Duration <= 0 {
		errs = append(errs, "dashboard: submit_lock_ttl must be > 0")
	}
	if c.Dashboard.PresetID < 0 {
		errs = append(errs, "dashboard: preset_id must be >= 0")
	}
	if mode == "archive" && c.Dashboard.ArchiveAfterDays < 1 {
		errs = append(errs, "dashboard: archive_after_days must be >= 1 for mode archive")
	}

	// Postgres
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
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required for archiving.
	if mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if mode == "dashboard" && c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, ev := range c.Notify.Events {
		if !validEvents[ev] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// checkURL reports whether raw is an absolute URL with one of the schemes.
func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %v", err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("must be a %s URL, got %q", strings.Join(schemes, " or "), raw)
}
