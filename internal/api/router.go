// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package api serves the subscription, search and admin HTTP endpoints
// using the Chi router. Every JSON response uses the APIResponse envelope.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tomtom215/releasewatch/docs" // registers the swagger document
	"github.com/tomtom215/releasewatch/internal/auth"
	"github.com/tomtom215/releasewatch/internal/middleware"
)

// DenyAdmin renders auth rejections in the API envelope.
func DenyAdmin(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := CodeUnauthorized
	message := "Admin token required"
	if status == http.StatusForbidden {
		code = CodeForbidden
		message = "Admin role required"
	}
	respondError(w, r, status, code, message, err)
}

// NewRouter builds the HTTP handler tree. admin may be nil, in which case
// admin endpoints are not guarded.
func NewRouter(h *Handler, mw *ChiMiddleware, admin *auth.Middleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if admin == nil {
		admin = auth.NewMiddleware(nil, DenyAdmin)
	}

	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeRouteNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	// Probes and scrapes get a permissive limit.
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/health", h.Health)
		r.Get("/health/live", h.Live)
		r.Get("/health/ready", h.Ready)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(mw.LimitBody())

		r.Post("/subscribe", h.Subscribe)
		r.Get("/subscribe", h.GetSubscription)
		r.Post("/update-telegram-id", h.UpdateTelegramID)
		r.Post("/update-phone-number", h.UpdatePhoneNumber)
		r.Get("/search_artists", h.SearchArtists)
		r.Get("/search-artists", h.SearchArtists)

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdmin)
			r.Get("/notifications", h.ListNotifications)
			r.Post("/cycles", h.RunCycle)
			r.Get("/cycles/last", h.LastCycle)
		})
	})

	return r
}
