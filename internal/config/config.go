// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Loading order (koanf v2):
//  1. Defaults from defaultConfig()
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables
//
// Facebook app credentials are deliberately not required at startup. They are
// checked when a token exchange is attempted so the sync path keeps working
// with already long-lived tokens.
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Facebook   FacebookConfig   `koanf:"facebook"`
	Sync       SyncConfig       `koanf:"sync"`
	Tokens     TokensConfig     `koanf:"tokens"`
	Database   DatabaseConfig   `koanf:"database"`
	Queue      QueueConfig      `koanf:"queue"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// FacebookConfig holds Graph API settings.
//
// Environment Variables:
//   - FACEBOOK_APP_ID, FACEBOOK_APP_SECRET: app credentials for token exchange
//   - FACEBOOK_API_VERSION: versioned path segment (default: v19.0)
//   - FACEBOOK_BASE_URL: Graph host, overridable for tests
type FacebookConfig struct {
	AppID      string        `koanf:"app_id"`
	AppSecret  string        `koanf:"app_secret"`
	APIVersion string        `koanf:"api_version"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`

	// MaxRetries bounds retries of throttled requests. Token exchange is never retried.
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RequestsPerSecond and Burst shape outbound traffic. Zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// MaxMetricsPerRequest is the insights chunk size.
	MaxMetricsPerRequest int `koanf:"max_metrics_per_request"`

	PostsLimit         int    `koanf:"posts_limit"`
	PageInsightsPeriod string `koanf:"page_insights_period"`
	PostInsightsPeriod string `koanf:"post_insights_period"`

	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// SyncConfig holds orchestrator settings.
type SyncConfig struct {
	// StaleAfter is how old lastSyncAt must be before a non-manual sync runs.
	StaleAfter time.Duration `koanf:"stale_after"`

	// Timeout bounds one queued auto-sync.
	Timeout time.Duration `koanf:"timeout"`

	// PageWorkers bounds concurrent page processing. 1 keeps pages sequential.
	PageWorkers int `koanf:"page_workers"`

	// AutoRefreshTokens runs the token lifecycle check before every sync.
	AutoRefreshTokens bool `koanf:"auto_refresh_tokens"`

	// SchedulerEnabled turns on the periodic sweep that enqueues stale integrations.
	SchedulerEnabled  bool          `koanf:"scheduler_enabled"`
	SchedulerInterval time.Duration `koanf:"scheduler_interval"`
}

// TokensConfig holds token lifecycle settings.
type TokensConfig struct {
	RefreshThreshold  time.Duration `koanf:"refresh_threshold"`
	LongLivedLifetime time.Duration `koanf:"long_lived_lifetime"`

	// EncryptionKey is a base64 master key. Empty stores tokens in plaintext.
	EncryptionKey string `koanf:"encryption_key"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Driver is duckdb or postgres.
	Driver string `koanf:"driver"`

	// Path is the DuckDB file (":memory:" for ephemeral).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// URL is the Postgres connection string.
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`

	// CheckpointInterval is how often DuckDB folds its WAL into the main file.
	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
}

// QueueConfig configures the background auto-sync queue.
type QueueConfig struct {
	// Transport is channel (in-process) or nats.
	Transport string `koanf:"transport"`

	NATSURL      string `koanf:"nats_url"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	NATSStoreDir string `koanf:"nats_store_dir"`

	Topic       string `koanf:"topic"`
	PoisonTopic string `koanf:"poison_topic"`
	Subscribers int    `koanf:"subscribers"`
	BufferSize  int64  `koanf:"buffer_size"`

	MaxRetries           int           `koanf:"max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`

	// DedupWindow drops repeated background requests for the same user.
	DedupWindow time.Duration `koanf:"dedup_window"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// SecurityConfig holds caller authentication and HTTP protection settings.
type SecurityConfig struct {
	// JWTSecret verifies HS256 bearer tokens issued by the host's auth provider.
	JWTSecret   string `koanf:"jwt_secret"`
	JWTAudience string `koanf:"jwt_audience"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// SupervisorConfig mirrors suture's failure handling knobs.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// GraphBaseURL joins the host and version, e.g. https://graph.facebook.com/v19.0.
func (f *FacebookConfig) GraphBaseURL() string {
	base := f.BaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if f.APIVersion == "" {
		return base
	}
	return base + "/" + f.APIVersion
}

// HasAppCredentials reports whether token exchange can be attempted.
func (f *FacebookConfig) HasAppCredentials() bool {
	return f.AppID != "" && f.AppSecret != ""
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from defaults, an optional file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
