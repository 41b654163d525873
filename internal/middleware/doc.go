// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package middleware provides chi-compatible HTTP middleware for the API.

Key Components:

  - RequestID: request and correlation ids for structured logging
  - PrometheusMetrics: request count, latency and in-flight instrumentation
  - APIKey: bearer token check for per-user routes
  - SecurityHeaders: response hardening headers

Middleware Stack:

The router installs the middleware in this order:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors)
	r.Use(rateLimit)
	r.Group(func(r chi.Router) {
	    r.Use(middleware.APIKey(cfg.Server.APIKey))
	    ...
	})

Metrics are labelled with the chi route pattern rather than the raw path, so
/api/v1/users/42/invitations and /api/v1/users/7/invitations share a series.
*/
package middleware
