// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

// CodeDocument is one indexed file in the document store.
type CodeDocument struct {
	ID      string `json:"id"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// SearchHit is a highlighted match returned to the UI.
type SearchHit struct {
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// SearchResult is the response of a code search.
type SearchResult struct {
	Hits               []SearchHit `json:"hits"`
	EstimatedTotalHits int         `json:"estimated_total_hits"`
	ProcessingTimeMs   int         `json:"processing_time_ms"`
}
