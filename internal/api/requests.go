// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

// Request structs validated with go-playground/validator tags. The
// repo_full_name and branch_name tags are registered by the validation
// package.

// IndexBranchRequest is the body of POST /users/{userID}/index.
type IndexBranchRequest struct {
	Repo   string `json:"repo" validate:"required,repo_full_name"`
	Branch string `json:"branch" validate:"required,branch_name"`
}

// SearchRequest holds the query parameters of GET /users/{userID}/search.
type SearchRequest struct {
	Repo     string   `validate:"required,repo_full_name"`
	Query    string   `validate:"required,max=512"`
	Branches []string `validate:"max=20,dive,branch_name"`
	Limit    int      `validate:"min=0,max=50"`
}

// SearchURLRequest holds the query parameters of GET /search/url.
type SearchURLRequest struct {
	Repo   string `validate:"required,repo_full_name"`
	Query  string `validate:"required,max=512"`
	Branch string `validate:"omitempty,branch_name"`
}

// AuthStartRequest is the body of POST /auth/start.
type AuthStartRequest struct {
	RedirectURI string `json:"redirect_uri" validate:"required,url"`
}

// AuthExchangeRequest is the body of POST /auth/exchange.
type AuthExchangeRequest struct {
	Code        string `json:"code" validate:"required,max=512"`
	State       string `json:"state" validate:"required,max=128"`
	RedirectURI string `json:"redirect_uri" validate:"required,url"`
}
