// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package auth carries caller identity and protects platform tokens at rest.

Pagesight does not run login flows. The host application authenticates users
and sends its access token (a Supabase-style HS256 JWT) as a bearer token.
Middleware.Identify verifies it with JWTVerifier and stores the claims in the
request context; UserIDFromContext is what the sync and token operations read.

TokenEncryptor wraps AES-256-GCM with an HKDF-derived key. Stores call it on
every access token they write and read when TOKEN_ENCRYPTION_KEY is set.
Values written before the key was configured remain readable.
*/
package auth
