// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/middleware"
)

// Router binds handlers and middleware into a chi route tree.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. authMW attaches caller identity from bearer
// tokens; chiMW supplies CORS and rate limiting.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMW *ChiMiddleware) *Router {
	if authMW == nil {
		authMW = auth.NewMiddleware(nil)
	}
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, auth: authMW, chiMiddleware: chiMW}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/health", router.handler.Health)
		r.Get("/health/live", router.handler.HealthLive)
		r.Get("/health/ready", router.handler.HealthReady)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Serves the spec registered by the generated docs package.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.auth.Identify)
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(RequireUser)

		r.Put("/integrations/facebook", router.handler.ConnectFacebook)

		r.Post("/sync", router.handler.Sync)
		r.Post("/sync/background", router.handler.SyncBackground)
		r.Get("/sync/status", router.handler.SyncStatus)

		r.Post("/tokens/refresh", router.handler.RefreshTokens)
		r.Get("/tokens/expiration", router.handler.TokenExpiration)

		r.Get("/pages", router.handler.Pages)
		r.Get("/insights/{subjectID}", router.handler.Insights)
	})

	return r
}
