// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserIDFromContext(t *testing.T) {
	t.Parallel()

	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("empty context should not carry a user id")
	}

	ctx := ContextWithUserID(context.Background(), "user-1")
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-1" {
		t.Errorf("UserIDFromContext() = (%q, %v), want (user-1, true)", id, ok)
	}

	if _, ok := UserIDFromContext(ContextWithUserID(context.Background(), "")); ok {
		t.Error("empty user id should leave the context unauthenticated")
	}
}

func TestContextWithClaims(t *testing.T) {
	t.Parallel()

	claims := &Claims{Email: "a@example.org", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}}
	ctx := ContextWithClaims(context.Background(), claims)

	got, ok := ClaimsFromContext(ctx)
	if !ok || got.Email != "a@example.org" {
		t.Fatalf("ClaimsFromContext() = (%v, %v)", got, ok)
	}
	if id, _ := UserIDFromContext(ctx); id != "user-2" {
		t.Errorf("user id = %q, want user-2", id)
	}

	if ContextWithClaims(context.Background(), nil) != context.Background() {
		t.Error("nil claims should return the original context")
	}
}
