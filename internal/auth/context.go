// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package auth

import (
	"context"
)

type contextKey string

const (
	// ClaimsContextKey holds the verified *Claims of the caller.
	ClaimsContextKey contextKey = "claims"

	userIDContextKey contextKey = "user-id"
)

// ContextWithUserID returns a context carrying the authenticated user id.
// An empty id leaves the context unauthenticated.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithClaims stores verified claims and the subject as user id.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ClaimsContextKey, claims)
	return ContextWithUserID(ctx, claims.Subject)
}

// ClaimsFromContext returns the caller's verified claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
