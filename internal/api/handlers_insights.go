// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pagesight/internal/models"
)

// defaultInsightWindow is the range served when from is omitted.
const defaultInsightWindow = 30 * 24 * time.Hour

// InsightsQuery selects stored processed insights for one page or post.
type InsightsQuery struct {
	SubjectID string `validate:"required,graphid"`
	Period    string `validate:"omitempty,period"`
	From      string `validate:"omitempty,datetime=2006-01-02"`
	To        string `validate:"omitempty,datetime=2006-01-02"`
}

// Insights returns processed insights for a subject, grouped by date and
// period. The subject must be a page synced through the caller's integration
// or a post on one; every admin of a shared page sees the same records.
//
// Query: period (day, week, days_28, lifetime), from and to as YYYY-MM-DD.
// The range defaults to the last 30 days.
//
// @Summary Get stored insights
// @Description Returns processed insights for a page or post the caller has synced, one record per date and period
// @Tags insights
// @Produce json
// @Param subjectID path string true "Page or post ID"
// @Param period query string false "Insight period (day, week, days_28, lifetime)"
// @Param from query string false "Start date (YYYY-MM-DD), defaults to 30 days before to"
// @Param to query string false "End date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} models.APIResponse{data=[]models.InsightProcessed}
// @Failure 400 {object} models.APIResponse "Invalid subject ID, period or date range"
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No integration, or the subject is not one of the caller's pages or posts"
// @Security BearerAuth
// @Router /insights/{subjectID} [get]
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := InsightsQuery{
		SubjectID: chi.URLParam(r, "subjectID"),
		Period:    q.Get("period"),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	if apiErr := validateRequest(&query); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	to := h.now().UTC()
	if query.To != "" {
		to, _ = time.Parse(time.DateOnly, query.To)
	}
	from := to.Add(-defaultInsightWindow)
	if query.From != "" {
		from, _ = time.Parse(time.DateOnly, query.From)
	}
	if from.After(to) {
		respondError(w, r, http.StatusBadRequest, codeValidation, "from must not be after to", nil)
		return
	}

	integration, err := h.callerIntegration(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.authorizeSubject(r.Context(), integration.ID, query.SubjectID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	records, err := h.deps.Store.GetInsightProcessed(r.Context(), query.SubjectID, query.Period, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.InsightProcessed{}
	}
	respondSuccess(w, r, http.StatusOK, records)
}
