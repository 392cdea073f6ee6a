// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/models"
	pagesync "github.com/tomtom215/pagesight/internal/sync"
)

// Pages lists the pages synced through the caller's integration.
// Page tokens are never serialized.
//
// @Summary List synced pages
// @Description Returns every page synced through the caller's Facebook integration, ordered by name. Pages shared by several admins are listed for each of them.
// @Tags pages
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.Page}
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No connected Facebook account"
// @Security BearerAuth
// @Router /pages [get]
func (h *Handler) Pages(w http.ResponseWriter, r *http.Request) {
	integration, err := h.callerIntegration(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	pages, err := h.deps.Store.ListPages(r.Context(), integration.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if pages == nil {
		pages = []models.Page{}
	}
	respondSuccess(w, r, http.StatusOK, pages)
}

// callerIntegration loads the Facebook integration of the caller in ctx.
func (h *Handler) callerIntegration(ctx context.Context) (*models.Integration, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, pagesync.ErrNotAuthenticated
	}
	integration, err := h.deps.Store.GetIntegrationByUser(ctx, userID, models.PlatformFacebook)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return nil, pagesync.ErrNoIntegration
	}
	return integration, nil
}

// authorizeSubject fails with ErrSubjectNotFound unless subjectID is a page
// linked to integrationID or a post published on such a page.
func (h *Handler) authorizeSubject(ctx context.Context, integrationID, subjectID string) error {
	page, err := h.deps.Store.GetPage(ctx, integrationID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check page ownership: %w", err)
	}
	if page != nil {
		return nil
	}

	post, err := h.deps.Store.GetPost(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check post ownership: %w", err)
	}
	if post == nil {
		return ErrSubjectNotFound
	}

	page, err = h.deps.Store.GetPage(ctx, integrationID, post.PageID)
	if err != nil {
		return fmt.Errorf("failed to check page ownership: %w", err)
	}
	if page == nil {
		return ErrSubjectNotFound
	}
	return nil
}
