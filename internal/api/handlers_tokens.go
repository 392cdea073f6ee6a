// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import "net/http"

// ConnectRequest carries the short-lived user token from the Facebook login flow.
type ConnectRequest struct {
	AccessToken string `json:"access_token" validate:"required,min=10,max=4096"`
}

// ConnectFacebook exchanges a short-lived login token for a long-lived one
// and stores it as the caller's integration. Reconnecting replaces the
// token and keeps the integration's ID and sync history.
//
// @Summary Connect a Facebook account
// @Description Exchanges the short-lived user token from the login flow for a long-lived token (about 60 days) and stores it as the caller's integration
// @Tags integrations
// @Accept json
// @Produce json
// @Param request body ConnectRequest true "Short-lived user access token"
// @Success 200 {object} models.APIResponse{data=models.Integration}
// @Failure 400 {object} models.APIResponse "Missing or malformed token"
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 502 {object} models.APIResponse "Facebook refused the exchange"
// @Security BearerAuth
// @Router /integrations/facebook [put]
func (h *Handler) ConnectFacebook(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidation, "Request body must be JSON like {\"access_token\": \"...\"}", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	integration, err := h.deps.Tokens.ConnectIntegration(r.Context(), req.AccessToken)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, integration)
}

// RefreshTokens exchanges the caller's user token and then refreshes every
// page token with it.
//
// @Summary Refresh tokens
// @Description Exchanges the stored user token for a new long-lived token, then re-derives every page token from it
// @Tags tokens
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.RefreshResult}
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No connected Facebook account"
// @Failure 502 {object} models.APIResponse "Facebook refused the exchange"
// @Security BearerAuth
// @Router /tokens/refresh [post]
func (h *Handler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Tokens.RefreshAllTokens(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, result)
}

// TokenExpiration reports when the caller's user token expires.
//
// @Summary Get token expiration
// @Description Reports when the caller's user token expires and whether it is inside the refresh threshold
// @Tags tokens
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.TokenExpirationInfo}
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No connected Facebook account"
// @Security BearerAuth
// @Router /tokens/expiration [get]
func (h *Handler) TokenExpiration(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Tokens.GetTokenExpirationInfo(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, info)
}
