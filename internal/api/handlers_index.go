// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"net/http"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/validation"
)

// Branch listing limits.
const (
	defaultBranchLimit = 200
	maxBranchLimit     = 500
)

// IndexBranchResponse is returned when a branch is queued.
type IndexBranchResponse struct {
	JobID   string `json:"job_id"`
	Created bool   `json:"created"`
}

// IndexBranch queues an index_branch job and records the branch in the
// identity's index configuration. A job already queued or running for the
// same branch is returned with created=false.
func (h *Handler) IndexBranch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}
	var req IndexBranchRequest
	if !decodeJSON(rw, w, r, &req) {
		return
	}

	jobID, created, err := h.deps.Jobs.EnqueueIndexBranch(r.Context(), userID, req.Repo, req.Branch)
	if err != nil {
		rw.serviceError(err)
		return
	}
	// The job is already durable; a config write failure only loses the
	// bookkeeping row.
	if _, err := h.deps.Store.UpsertRepoIndexConfig(r.Context(), userID, req.Repo, req.Branch); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Int64("github_user_id", userID).Str("repo", req.Repo).Msg("Failed to record index config")
	}

	rw.Accepted(IndexBranchResponse{JobID: jobID, Created: created})
}

// ListBranches returns the identity's branch index state, most recently
// indexed first. Query parameters: repo (optional), limit (default 200, max
// 500).
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}

	repo := r.URL.Query().Get("repo")
	if repo != "" && !validation.IsRepoFullName(repo) {
		rw.BadRequest("repo must be of the form owner/name")
		return
	}
	limit := clamp(getIntParam(r, "limit", defaultBranchLimit), 1, maxBranchLimit)

	states, err := h.deps.Store.ListBranchStates(r.Context(), userID, repo, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(states, &PaginationMeta{
		Count:   len(states),
		Limit:   limit,
		HasMore: len(states) == limit,
	})
}
