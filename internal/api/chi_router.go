// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/middleware"
)

// Router builds the chi route tree.
type Router struct {
	handler       *Handler
	cfg           *config.Config
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for handler.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{
		handler: handler,
		cfg:     cfg,
		chiMiddleware: NewChiMiddleware(&ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Server.CORSOrigins,
			CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
			CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			CORSMaxAge:         86400,
			RateLimitRequests:  cfg.Server.RequestsPerMinute,
			RateLimitWindow:    time.Minute,
		}),
	}
}

// SetupChi returns the HTTP handler with every route mounted.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	mw := router.chiMiddleware
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)

		r.Route("/health", func(r chi.Router) {
			r.Use(mw.RateLimitCustom(RateLimitHealth))
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.With(mw.RateLimitCustom(RateLimitWebhook)).Post("/webhooks/github", h.GitHubWebhook)

		r.Route("/auth", func(r chi.Router) {
			r.Use(mw.RateLimitCustom(RateLimitAuth))
			r.Post("/start", h.AuthStart)
			r.Post("/exchange", h.AuthExchange)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Use(middleware.APIKey(router.cfg.Server.APIKey))

			r.Get("/search/url", h.SearchURL)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/invitations", h.ListInvitations)
				r.With(mw.RateLimitCustom(RateLimitUpstream)).Post("/invitations/refresh", h.RefreshInvitations)
				r.With(mw.RateLimitCustom(RateLimitUpstream)).Post("/invitations/{inviteID}/accept", h.AcceptInvitation)
				r.With(mw.RateLimitCustom(RateLimitUpstream)).Post("/invitations/{inviteID}/decline", h.DeclineInvitation)

				r.Post("/index", h.IndexBranch)
				r.Get("/branches", h.ListBranches)
				r.Get("/search", h.Search)
			})
		})
	})

	return r
}
