// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pagesight/config.yaml",
	"/etc/pagesight/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. The Graph API limits metrics
// per insights request to 50 and long-lived user tokens last 60 days.
func defaultConfig() *Config {
	return &Config{
		Facebook: FacebookConfig{
			APIVersion:           "v19.0",
			BaseURL:              "https://graph.facebook.com",
			Timeout:              30 * time.Second,
			MaxRetries:           5,
			RetryBaseDelay:       time.Second,
			RequestsPerSecond:    10,
			Burst:                5,
			MaxMetricsPerRequest: 50,
			PostsLimit:           25,
			PageInsightsPeriod:   "day",
			PostInsightsPeriod:   "lifetime",
			CircuitBreaker:       true,
		},
		Sync: SyncConfig{
			StaleAfter:        60 * time.Minute,
			Timeout:           10 * time.Minute,
			PageWorkers:       1,
			AutoRefreshTokens: true,
			SchedulerEnabled:  true,
			SchedulerInterval: 15 * time.Minute,
		},
		Tokens: TokensConfig{
			RefreshThreshold:  7 * 24 * time.Hour,
			LongLivedLifetime: 60 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/pagesight.duckdb",
			MaxMemory: "1GB",
			MaxConns:  10,

			CheckpointInterval: 5 * time.Minute,
		},
		Queue: QueueConfig{
			Transport:            "channel",
			NATSURL:              "nats://127.0.0.1:4222",
			NATSStoreDir:         "/data/nats",
			Topic:                "pagesight.sync.requests",
			PoisonTopic:          "pagesight.sync.poison",
			Subscribers:          2,
			BufferSize:           256,
			MaxRetries:           3,
			RetryInitialInterval: 2 * time.Second,
			RetryMaxInterval:     30 * time.Second,
			CloseTimeout:         30 * time.Second,
			DedupWindow:          5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    11 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTAudience:       "authenticated",
			CORSOrigins:       []string{},
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
// Unmapped variables are ignored so unrelated environment never leaks in.
var envMappings = map[string]string{
	"facebook_app_id":                  "facebook.app_id",
	"facebook_app_secret":              "facebook.app_secret",
	"facebook_api_version":             "facebook.api_version",
	"facebook_base_url":                "facebook.base_url",
	"facebook_timeout":                 "facebook.timeout",
	"facebook_max_retries":             "facebook.max_retries",
	"facebook_requests_per_second":     "facebook.requests_per_second",
	"facebook_max_metrics_per_request": "facebook.max_metrics_per_request",
	"facebook_posts_limit":             "facebook.posts_limit",
	"facebook_circuit_breaker":         "facebook.circuit_breaker",

	"sync_stale_after":         "sync.stale_after",
	"sync_timeout":             "sync.timeout",
	"sync_page_workers":        "sync.page_workers",
	"sync_auto_refresh_tokens": "sync.auto_refresh_tokens",
	"sync_scheduler_enabled":   "sync.scheduler_enabled",
	"sync_scheduler_interval":  "sync.scheduler_interval",

	"token_refresh_threshold": "tokens.refresh_threshold",
	"token_encryption_key":    "tokens.encryption_key",

	"database_driver":    "database.driver",
	"database_url":       "database.url",
	"supabase_db_url":    "database.url",
	"duckdb_path":        "database.path",
	"duckdb_max_memory":  "database.max_memory",
	"database_max_conns": "database.max_conns",

	"duckdb_checkpoint_interval": "database.checkpoint_interval",

	"queue_transport":    "queue.transport",
	"nats_url":           "queue.nats_url",
	"nats_embedded":      "queue.embedded_nats",
	"nats_store_dir":     "queue.nats_store_dir",
	"queue_subscribers":  "queue.subscribers",
	"queue_max_retries":  "queue.max_retries",
	"queue_dedup_window": "queue.dedup_window",

	"http_host":        "server.host",
	"http_port":        "server.port",
	"environment":      "server.environment",
	"shutdown_timeout": "server.shutdown_timeout",

	"jwt_secret":          "security.jwt_secret",
	"supabase_jwt_secret": "security.jwt_secret",
	"jwt_audience":        "security.jwt_audience",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment names to koanf paths.
//
// Examples:
//   - FACEBOOK_APP_ID -> facebook.app_id
//   - DATABASE_URL -> database.url
//   - SYNC_PAGE_WORKERS -> sync.page_workers
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
