// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"context"
	"net/http"

	"github.com/SuperSonnix71/github-invite-plus/internal/invites"
)

// RefreshResult is returned by the refresh endpoint.
type RefreshResult struct {
	Pending int `json:"pending"`
}

// ListInvitations returns cached invitations.
//
// Query parameters: status (pending|accepted|declined|unknown|all, default
// pending), limit (default 100, max 200), offset.
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}

	limit := clamp(getIntParam(r, "limit", invites.DefaultLimit), 1, invites.MaxLimit)
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	list, err := h.deps.Invitations.List(r.Context(), userID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		rw.serviceError(err)
		return
	}
	rw.SuccessWithPagination(list, &PaginationMeta{
		Count:   len(list),
		Offset:  offset,
		Limit:   limit,
		HasMore: len(list) == limit,
	})
}

// RefreshInvitations reconciles the identity's invitations with GitHub now
// and returns the pending count.
func (h *Handler) RefreshInvitations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}

	pending, err := h.deps.Invitations.Refresh(r.Context(), userID)
	if err != nil {
		rw.serviceError(err)
		return
	}
	rw.Success(RefreshResult{Pending: pending})
}

// AcceptInvitation accepts an invitation on GitHub.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	h.decideInvitation(w, r, h.deps.Invitations.Accept)
}

// DeclineInvitation declines an invitation on GitHub.
func (h *Handler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	h.decideInvitation(w, r, h.deps.Invitations.Decline)
}

func (h *Handler) decideInvitation(w http.ResponseWriter, r *http.Request,
	decide func(ctx context.Context, githubUserID, inviteID int64) error) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}
	inviteID, ok := pathID(r, "inviteID")
	if !ok {
		rw.BadRequest("Invalid invitation id")
		return
	}

	if err := decide(r.Context(), userID, inviteID); err != nil {
		rw.serviceError(err)
		return
	}
	rw.Success(map[string]int64{"invite_id": inviteID})
}
