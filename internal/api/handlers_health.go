// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 3 * time.Second

// HealthStatus is the readiness payload.
type HealthStatus struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady checks the database and the search engine. It returns 503
// when either is unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:        "ready",
		Checks:        map[string]string{},
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	runCheck := func(name string, check func(context.Context) error) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			status.Checks[name] = "unavailable"
			status.Status = "degraded"
			return
		}
		status.Checks[name] = "ok"
	}
	runCheck("database", h.deps.Store.Ping)
	runCheck("search", h.deps.SearchLive.Health)

	rw := NewResponseWriter(w, r)
	if status.Status != "ready" {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Dependencies unavailable", status)
		return
	}
	rw.Success(status)
}
