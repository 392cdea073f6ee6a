// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateFacebook(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateTokens(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

// maxFacebookRetries bounds throttled-request retries; each retry doubles the wait.
const maxFacebookRetries = 10

var validPeriods = map[string]bool{
	"day":      true,
	"week":     true,
	"days_28":  true,
	"lifetime": true,
}

// validateFacebook validates Graph API settings. App credentials are optional.
func (c *Config) validateFacebook() error {
	f := &c.Facebook
	if err := validateHTTPURL(f.BaseURL, "FACEBOOK_BASE_URL"); err != nil {
		return err
	}
	if f.APIVersion != "" && !strings.HasPrefix(f.APIVersion, "v") {
		return fmt.Errorf("FACEBOOK_API_VERSION must look like v19.0, got %q", f.APIVersion)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("FACEBOOK_TIMEOUT must be positive")
	}
	if f.MaxRetries < 0 || f.MaxRetries > maxFacebookRetries {
		return fmt.Errorf("FACEBOOK_MAX_RETRIES must be between 0 and %d, got %d", maxFacebookRetries, f.MaxRetries)
	}
	if f.RequestsPerSecond < 0 {
		return fmt.Errorf("FACEBOOK_REQUESTS_PER_SECOND must not be negative")
	}
	if f.MaxMetricsPerRequest < 1 || f.MaxMetricsPerRequest > 50 {
		return fmt.Errorf("FACEBOOK_MAX_METRICS_PER_REQUEST must be between 1 and 50, got %d", f.MaxMetricsPerRequest)
	}
	if f.PostsLimit < 1 || f.PostsLimit > 100 {
		return fmt.Errorf("FACEBOOK_POSTS_LIMIT must be between 1 and 100, got %d", f.PostsLimit)
	}
	if !validPeriods[f.PageInsightsPeriod] {
		return fmt.Errorf("facebook.page_insights_period %q is not a known period", f.PageInsightsPeriod)
	}
	if !validPeriods[f.PostInsightsPeriod] {
		return fmt.Errorf("facebook.post_insights_period %q is not a known period", f.PostInsightsPeriod)
	}
	if containsPlaceholder(f.AppSecret) {
		return fmt.Errorf("FACEBOOK_APP_SECRET contains a placeholder value")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.StaleAfter <= 0 {
		return fmt.Errorf("SYNC_STALE_AFTER must be positive")
	}
	if c.Sync.PageWorkers < 1 {
		return fmt.Errorf("SYNC_PAGE_WORKERS must be at least 1, got %d", c.Sync.PageWorkers)
	}
	if c.Sync.SchedulerEnabled && c.Sync.SchedulerInterval < time.Minute {
		return fmt.Errorf("SYNC_SCHEDULER_INTERVAL must be at least 1m, got %s", c.Sync.SchedulerInterval)
	}
	return nil
}

func (c *Config) validateTokens() error {
	if c.Tokens.RefreshThreshold <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_THRESHOLD must be positive")
	}
	if c.Tokens.LongLivedLifetime <= c.Tokens.RefreshThreshold {
		return fmt.Errorf("tokens.long_lived_lifetime must exceed the refresh threshold")
	}
	if c.Tokens.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Tokens.EncryptionKey)
		if err != nil {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be base64: %w", err)
		}
		if len(key) < 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to at least 32 bytes, got %d", len(key))
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("DATABASE_MAX_CONNS must be at least 1")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb or postgres, got %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := &c.Queue
	switch q.Transport {
	case "channel":
	case "nats":
		if !q.EmbeddedNATS && q.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when QUEUE_TRANSPORT=nats without an embedded server")
		}
	default:
		return fmt.Errorf("QUEUE_TRANSPORT must be channel or nats, got %q", q.Transport)
	}
	if q.Topic == "" || q.PoisonTopic == "" {
		return fmt.Errorf("queue topics must not be empty")
	}
	if q.Topic == q.PoisonTopic {
		return fmt.Errorf("queue.poison_topic must differ from queue.topic")
	}
	if q.Subscribers < 1 {
		return fmt.Errorf("QUEUE_SUBSCRIBERS must be at least 1")
	}
	if q.MaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

// validateSecurity requires a JWT secret in production; without one every
// protected route answers 401.
func (c *Config) validateSecurity() error {
	if c.IsProduction() && c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be json or console; got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// placeholderPatterns flag values copied from sample configs.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, p := range placeholderPatterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}
