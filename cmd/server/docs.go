// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package main

// General API information for swag. Regenerate the docs package with:
//
//	swag init -g cmd/server/docs.go -o docs --parseInternal
//
// @title Pagesight API
// @version 1.0
// @description Syncs Facebook Page, post and insight data from the Graph API for connected users and serves the stored insights.
// @description
// @description ## Getting started
// @description
// @description 1. Obtain a short-lived user token from the Facebook login flow.
// @description 2. `PUT /integrations/facebook` with `{"access_token": "..."}` to store a long-lived token.
// @description 3. `POST /sync` (or `/sync/background`) to pull pages, posts and insights.
// @description 4. Read `GET /pages` and `GET /insights/{subjectID}`.
// @description
// @description ## Error Responses
// @description
// @description Errors use the standard envelope with a machine readable code and a message that says what to do next:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {"code": "NO_INTEGRATION", "message": "Connect your Facebook account before syncing"},
// @description   "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/pagesight/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT bearer token, sent as "Bearer <token>". The sub claim identifies the caller.
//
// @tag.name integrations
// @tag.description Connect a Facebook account
//
// @tag.name sync
// @tag.description Run, queue and inspect syncs
//
// @tag.name tokens
// @tag.description Long-lived token refresh and expiry
//
// @tag.name pages
// @tag.description Pages synced through the caller's account
//
// @tag.name insights
// @tag.description Stored, normalized insights
