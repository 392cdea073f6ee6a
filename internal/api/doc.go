// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package api exposes sync, token and insight operations over HTTP using chi.

Endpoints:

	PUT  /api/v1/integrations/facebook  connect an account, body {"access_token": "..."}
	POST /api/v1/sync                   run a sync now, body {"manual": bool}
	POST /api/v1/sync/background        queue a sync, 202 Accepted
	GET  /api/v1/sync/status            last sync time and last run stats
	POST /api/v1/tokens/refresh         exchange user token, then page tokens
	GET  /api/v1/tokens/expiration      user token expiry and refresh advice
	GET  /api/v1/pages                  pages synced through the caller's account
	GET  /api/v1/insights/{subjectID}   stored processed insights for an owned page or post
	GET  /health, /health/live, /health/ready
	GET  /metrics                       Prometheus exposition
	GET  /swagger/*                     OpenAPI UI and doc.json

Every /api/v1 route requires "Authorization: Bearer <jwt>". The token's sub
claim is the user id passed to the sync and token managers.

Responses use the models.APIResponse envelope. Errors carry a code and a
message telling the caller what to do next:

	401 NOT_AUTHENTICATED   missing or invalid token
	404 NO_INTEGRATION      no connected Facebook account
	404 NOT_FOUND           page or post not synced through the caller's account
	502 UPSTREAM_ERROR      Facebook rejected or throttled the request
	400 VALIDATION_ERROR    malformed body or query
	429 RATE_LIMITED        per-user limit exceeded
	500 INTERNAL_ERROR      anything else

Middleware order: request id, real IP, access log, panic recovery, CORS, then
per group security headers, metrics, identity, rate limit and RequireUser.
*/
package api
