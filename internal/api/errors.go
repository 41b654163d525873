// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"errors"
	"net/http"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/invites"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/worker"
)

// serviceError renders err from the engine with the matching status.
// Messages for 5xx responses are generic; the cause is logged.
func (rw *ResponseWriter) serviceError(err error) {
	switch {
	case errors.Is(err, apperr.ErrUserNotFound):
		rw.NotFound("Identity is not linked")
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Resource not found")
	case errors.Is(err, apperr.ErrReauthRequired):
		rw.Error(http.StatusUnauthorized, ErrCodeReauthRequired, "GitHub authorization expired; link the account again")
	case errors.Is(err, invites.ErrInvalidFilter),
		errors.Is(err, worker.ErrInvalidTarget),
		errors.Is(err, search.ErrEmptyQuery):
		rw.BadRequest(err.Error())
	case errors.Is(err, apperr.ErrUpstreamRejected):
		logging.Ctx(rw.r.Context()).Warn().Err(err).Int("upstream_status", apperr.StatusCode(err)).Msg("Upstream rejected request")
		rw.Error(http.StatusBadGateway, ErrCodeExternalServiceFail, "Upstream rejected the request")
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		logging.Ctx(rw.r.Context()).Warn().Err(err).Msg("Upstream unavailable")
		rw.ServiceUnavailable("Upstream service unavailable, retry later")
	default:
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Request failed")
		rw.InternalError("Internal error")
	}
}
