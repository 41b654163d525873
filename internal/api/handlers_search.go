// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/validation"
)

const githubSearchURL = "https://github.com/search"

// splitBranches parses a comma-separated branch list.
func splitBranches(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Search runs a highlighted code search over the identity's index.
//
// Query parameters: repo (required), q (required), branches (comma
// separated), limit (default 20, max 50).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := pathID(r, "userID")
	if !ok {
		rw.BadRequest("Invalid user id")
		return
	}

	q := r.URL.Query()
	req := SearchRequest{
		Repo:     q.Get("repo"),
		Query:    strings.TrimSpace(q.Get("q")),
		Branches: splitBranches(q.Get("branches")),
		Limit:    getIntParam(r, "limit", search.DefaultLimit),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.deps.Search.Search(r.Context(), search.Query{
		GitHubUserID: userID,
		Text:         req.Query,
		Repo:         req.Repo,
		Branches:     req.Branches,
		Limit:        req.Limit,
	})
	if err != nil {
		rw.serviceError(err)
		return
	}
	rw.Success(result)
}

// SearchURL builds a github.com code search link for the same query, for
// repositories that are not indexed.
func (h *Handler) SearchURL(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()
	req := SearchURLRequest{
		Repo:   q.Get("repo"),
		Query:  strings.TrimSpace(q.Get("q")),
		Branch: q.Get("branch"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	params := url.Values{}
	params.Set("q", "repo:"+req.Repo+" "+req.Query)
	params.Set("type", "code")
	if req.Branch != "" {
		params.Set("ref", req.Branch)
	}
	rw.Success(map[string]string{"url": githubSearchURL + "?" + params.Encode()})
}
