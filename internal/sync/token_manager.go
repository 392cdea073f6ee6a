// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models"
)

const (
	// DefaultRefreshThreshold is how close to expiry a token is refreshed.
	DefaultRefreshThreshold = 7 * 24 * time.Hour

	// DefaultLongLivedLifetime is the lifetime granted to an exchanged user token.
	DefaultLongLivedLifetime = 60 * 24 * time.Hour
)

// TokenState is the lifecycle state of an integration's user token.
type TokenState int

const (
	// TokenValid has more than the refresh threshold remaining.
	TokenValid TokenState = iota
	// TokenExpiringSoon is inside the threshold, or has no known expiry.
	TokenExpiringSoon
	// TokenRefreshed was just exchanged; it reads as Valid on the next check.
	TokenRefreshed
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpiringSoon:
		return "expiring_soon"
	case TokenRefreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// ShouldRefresh reports whether a token expiring at expiresAt must be
// refreshed at now. An unknown expiry is never trusted.
func ShouldRefresh(expiresAt *time.Time, now time.Time) bool {
	return shouldRefreshWithin(expiresAt, now, DefaultRefreshThreshold)
}

func shouldRefreshWithin(expiresAt *time.Time, now time.Time, threshold time.Duration) bool {
	if expiresAt == nil {
		return true
	}
	return expiresAt.Sub(now) < threshold
}

// ClassifyToken maps an expiry to Valid or ExpiringSoon.
func ClassifyToken(expiresAt *time.Time, now time.Time, threshold time.Duration) TokenState {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	if shouldRefreshWithin(expiresAt, now, threshold) {
		return TokenExpiringSoon
	}
	return TokenValid
}

// TokenManager keeps the caller's user token and derived page tokens fresh.
// Caller identity comes from the request context (see auth.ContextWithUserID).
type TokenManager struct {
	store     Store
	client    GraphAPI
	threshold time.Duration
	lifetime  time.Duration
	now       func() time.Time
}

// NewTokenManager creates a token manager. A nil cfg uses the defaults.
func NewTokenManager(store Store, client GraphAPI, cfg *config.TokensConfig) *TokenManager {
	tm := &TokenManager{
		store:     store,
		client:    client,
		threshold: DefaultRefreshThreshold,
		lifetime:  DefaultLongLivedLifetime,
		now:       time.Now,
	}
	if cfg != nil {
		if cfg.RefreshThreshold > 0 {
			tm.threshold = cfg.RefreshThreshold
		}
		if cfg.LongLivedLifetime > 0 {
			tm.lifetime = cfg.LongLivedLifetime
		}
	}
	return tm
}

// currentIntegration resolves the caller and loads their integration.
func (tm *TokenManager) currentIntegration(ctx context.Context) (string, *models.Integration, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", nil, ErrNotAuthenticated
	}
	integration, err := loadIntegration(ctx, tm.store, userID)
	if err != nil {
		return "", nil, err
	}
	return userID, integration, nil
}

// loadIntegration maps a missing integration to ErrNoIntegration.
func loadIntegration(ctx context.Context, store Store, userID string) (*models.Integration, error) {
	integration, err := store.GetIntegrationByUser(ctx, userID, models.PlatformFacebook)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return nil, ErrNoIntegration
	}
	return integration, nil
}

// ConnectIntegration exchanges a short-lived user token from the login flow
// for a long-lived one and stores it as the caller's integration. An
// existing integration keeps its ID and last sync time; only the token and
// expiry are replaced. Nothing is stored when the exchange fails.
func (tm *TokenManager) ConnectIntegration(ctx context.Context, shortLivedToken string) (*models.Integration, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	longLived, err := tm.client.ExchangeForLongLivedToken(ctx, shortLivedToken)
	if err != nil {
		metrics.RecordTokenRefresh("connect", false)
		return nil, err
	}

	expiresAt := tm.now().UTC().Add(tm.lifetime)
	integration := &models.Integration{
		UserID:         userID,
		Platform:       models.PlatformFacebook,
		AccessToken:    longLived,
		TokenExpiresAt: &expiresAt,
	}
	if err := tm.store.UpsertIntegration(ctx, integration); err != nil {
		metrics.RecordTokenRefresh("connect", false)
		return nil, fmt.Errorf("failed to store integration: %w", err)
	}

	metrics.RecordTokenRefresh("connect", true)
	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("integration_id", integration.ID).
		Time("expires_at", expiresAt).
		Msg("Facebook integration connected")

	return integration, nil
}

// RefreshUserAccessToken exchanges the stored user token for a new long-lived
// token and persists it. On any failure the stored token is left untouched.
func (tm *TokenManager) RefreshUserAccessToken(ctx context.Context) (*models.UserTokenRefresh, error) {
	userID, integration, err := tm.currentIntegration(ctx)
	if err != nil {
		return nil, err
	}
	return tm.refreshUserToken(ctx, userID, integration)
}

func (tm *TokenManager) refreshUserToken(ctx context.Context, userID string, integration *models.Integration) (*models.UserTokenRefresh, error) {
	newToken, err := tm.client.ExchangeForLongLivedToken(ctx, integration.AccessToken)
	if err != nil {
		metrics.RecordTokenRefresh("user", false)
		return nil, err
	}

	expiresAt := tm.now().UTC().Add(tm.lifetime)
	if err := tm.store.UpdateIntegrationToken(ctx, integration.ID, newToken, expiresAt); err != nil {
		metrics.RecordTokenRefresh("user", false)
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	metrics.RecordTokenRefresh("user", true)
	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("integration_id", integration.ID).
		Str("state", TokenRefreshed.String()).
		Time("expires_at", expiresAt).
		Msg("User access token refreshed")

	return &models.UserTokenRefresh{AccessToken: newToken, ExpiresAt: expiresAt}, nil
}

// RefreshPageAccessTokens re-derives page tokens from the stored user token.
// Each page is updated independently; a failed update is logged and skipped.
func (tm *TokenManager) RefreshPageAccessTokens(ctx context.Context) (int, error) {
	_, integration, err := tm.currentIntegration(ctx)
	if err != nil {
		return 0, err
	}
	return tm.refreshPageTokens(ctx, integration.AccessToken)
}

func (tm *TokenManager) refreshPageTokens(ctx context.Context, userToken string) (int, error) {
	pages, err := tm.client.FetchOwnedPages(ctx, userToken)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch owned pages: %w", err)
	}

	refreshed := 0
	for _, page := range pages {
		if page.ID == "" || page.AccessToken == "" {
			continue
		}
		found, err := tm.store.UpdatePageAccessToken(ctx, page.ID, page.AccessToken)
		if err != nil {
			metrics.RecordTokenRefresh("page", false)
			logging.Ctx(ctx).Warn().Err(err).Str("page_id", page.ID).Msg("Failed to update page access token")
			continue
		}
		if !found {
			// Not synced yet; the next sync stores it with its token.
			continue
		}
		metrics.RecordTokenRefresh("page", true)
		refreshed++
	}
	return refreshed, nil
}

// RefreshAllTokens refreshes the user token and then every page token.
//
// Page tokens are derived from the user token, so they are only fetched
// after the user token refresh succeeds. When it fails the result reports
// no pages and the page step is never attempted.
func (tm *TokenManager) RefreshAllTokens(ctx context.Context) (*models.RefreshResult, error) {
	userID, integration, err := tm.currentIntegration(ctx)
	if err != nil {
		return &models.RefreshResult{}, err
	}
	return tm.refreshAll(ctx, userID, integration)
}

func (tm *TokenManager) refreshAll(ctx context.Context, userID string, integration *models.Integration) (*models.RefreshResult, error) {
	user, err := tm.refreshUserToken(ctx, userID, integration)
	if err != nil {
		return &models.RefreshResult{}, err
	}

	pages, err := tm.refreshPageTokens(ctx, user.AccessToken)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("User token refreshed but page tokens were not")
		return &models.RefreshResult{UserTokenRefreshed: true}, nil
	}

	return &models.RefreshResult{UserTokenRefreshed: true, PagesRefreshed: pages}, nil
}

// AutoRefreshTokensIfNeeded refreshes all tokens when the user token is
// inside the refresh threshold, and does nothing otherwise.
func (tm *TokenManager) AutoRefreshTokensIfNeeded(ctx context.Context) (*models.AutoRefreshResult, error) {
	userID, integration, err := tm.currentIntegration(ctx)
	if err != nil {
		return nil, err
	}

	if !shouldRefreshWithin(integration.TokenExpiresAt, tm.now(), tm.threshold) {
		return &models.AutoRefreshResult{
			Refreshed: false,
			Message:   "Token is still valid, no refresh needed",
		}, nil
	}

	result, err := tm.refreshAll(ctx, userID, integration)
	if err != nil {
		return &models.AutoRefreshResult{
			Refreshed: false,
			Message:   "Token refresh failed: " + err.Error(),
		}, err
	}

	return &models.AutoRefreshResult{
		Refreshed: true,
		Message:   fmt.Sprintf("Refreshed user token and %d page tokens", result.PagesRefreshed),
	}, nil
}

// GetTokenExpirationInfo reports when the caller's user token expires.
// DaysUntilExpiration is rounded down and is negative once expired.
func (tm *TokenManager) GetTokenExpirationInfo(ctx context.Context) (*models.TokenExpirationInfo, error) {
	_, integration, err := tm.currentIntegration(ctx)
	if err != nil {
		return nil, err
	}

	now := tm.now()
	info := &models.TokenExpirationInfo{
		NeedsRefresh: shouldRefreshWithin(integration.TokenExpiresAt, now, tm.threshold),
	}
	if integration.TokenExpiresAt != nil {
		expiresAt := *integration.TokenExpiresAt
		days := int(math.Floor(expiresAt.Sub(now).Hours() / 24))
		info.ExpiresAt = &expiresAt
		info.DaysUntilExpiration = &days
	}
	return info, nil
}
