// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

// oauthStateTTL is how long an authorization attempt may take.
const oauthStateTTL = 10 * time.Minute

// AuthStartResponse is returned by POST /auth/start.
type AuthStartResponse struct {
	AuthorizeURL string    `json:"authorize_url"`
	State        string    `json:"state"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LinkedIdentity is returned by POST /auth/exchange.
type LinkedIdentity struct {
	GitHubUserID int64  `json:"github_user_id"`
	GitHubLogin  string `json:"github_login"`
}

// originFingerprint ties a state to the client that requested it.
func originFingerprint(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.Header.Get("Origin") + "|" + r.UserAgent()))
	return hex.EncodeToString(sum[:])[:16]
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthStart begins linking a GitHub identity. Only the configured redirect
// URI is accepted.
func (h *Handler) AuthStart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req AuthStartRequest
	if !decodeJSON(rw, w, r, &req) {
		return
	}
	if req.RedirectURI != h.cfg.Server.RedirectURI() {
		rw.BadRequest("Invalid redirect_uri")
		return
	}

	state, err := newState()
	if err != nil {
		rw.InternalError("Failed to generate state")
		return
	}
	if err := h.deps.Store.CreateOAuthState(r.Context(), state, oauthStateTTL, originFingerprint(r), req.RedirectURI); err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(AuthStartResponse{
		AuthorizeURL: h.deps.OAuth.AuthCodeURL(state),
		State:        state,
		ExpiresAt:    time.Now().Add(oauthStateTTL),
	})
}

// AuthExchange finishes the link flow: it consumes the state, trades the
// code for a token pair and stores the encrypted credential.
func (h *Handler) AuthExchange(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req AuthExchangeRequest
	if !decodeJSON(rw, w, r, &req) {
		return
	}

	// The state is single use whatever the outcome.
	st, err := h.deps.Store.ConsumeOAuthState(r.Context(), req.State)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.BadRequest("Invalid or expired state")
			return
		}
		rw.DatabaseError(err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(st.Fingerprint), []byte(originFingerprint(r))) != 1 {
		logging.Ctx(r.Context()).Warn().Msg("OAuth state used from a different origin")
		rw.BadRequest("State origin mismatch")
		return
	}
	if st.RedirectURI != req.RedirectURI {
		rw.BadRequest("Redirect URI mismatch")
		return
	}

	pair, err := h.deps.OAuth.ExchangeCode(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		rw.serviceError(err)
		return
	}
	user, err := h.deps.OAuth.GetAuthenticatedUser(r.Context(), pair.AccessToken)
	if err != nil {
		rw.serviceError(err)
		return
	}
	if err := h.deps.Tokens.Link(r.Context(), user.ID, user.Login, pair); err != nil {
		rw.serviceError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("github_user_id", user.ID).Str("login", user.Login).Msg("GitHub identity linked")
	rw.Success(LinkedIdentity{GitHubUserID: user.ID, GitHubLogin: user.Login})
}
