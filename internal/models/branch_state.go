// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

import "time"

// BranchIndexStatus is the lifecycle state of one indexed branch.
type BranchIndexStatus string

const (
	BranchIndexing BranchIndexStatus = "indexing"
	BranchIndexed  BranchIndexStatus = "indexed"
	BranchFailed   BranchIndexStatus = "failed"
)

// BranchIndexState records what was last indexed for one
// (identity, repository, branch). At most one row exists per key.
type BranchIndexState struct {
	GitHubUserID int64             `json:"github_user_id"`
	RepoFullName string            `json:"repo_full_name"`
	Branch       string            `json:"branch"`
	HeadSHA      string            `json:"head_sha"`
	IndexedAt    time.Time         `json:"indexed_at"`
	Status       BranchIndexStatus `json:"status"`
	LastError    string            `json:"last_error,omitempty"`
}

// BranchRef identifies a branch of a repository.
type BranchRef struct {
	RepoFullName string
	Branch       string
}

// RepoIndexConfig is a user's request to keep branches of a repository indexed.
type RepoIndexConfig struct {
	ID            int64     `json:"id"`
	GitHubUserID  int64     `json:"github_user_id"`
	RepoFullName  string    `json:"repo_full_name"`
	BranchPattern string    `json:"branch_pattern"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
