// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package auth

import (
	"net/http"
	"strings"

	"github.com/tomtom215/pagesight/internal/logging"
)

// Middleware attaches caller identity from a bearer token.
type Middleware struct {
	verifier *JWTVerifier
}

// NewMiddleware creates identity middleware. A nil verifier leaves every
// request unauthenticated.
func NewMiddleware(verifier *JWTVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Identify verifies the Authorization header and, on success, stores the
// claims and user id in the request context. Requests without a valid token
// pass through unauthenticated; operations that need a user reject them.
func (m *Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || m.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Bearer token rejected")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
