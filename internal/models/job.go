// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// JobType tags the payload schema of a job.
type JobType string

// JobTypeIndexBranch is currently the only job type.
const JobTypeIndexBranch JobType = "index_branch"

// JobStatus is the queue state of a job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether no further transition happens without a new enqueue.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// DefaultMaxAttempts is applied when enqueue is given a non-positive limit.
const DefaultMaxAttempts = 3

// Job is a durable unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// IndexBranchPayload is the payload of an index_branch job. Its encoding
// must be deterministic: the queue deduplicates on the encoded bytes.
type IndexBranchPayload struct {
	GitHubUserID int64  `json:"githubUserId"`
	RepoFullName string `json:"repoFullName"`
	Branch       string `json:"branch"`
}

// Encode returns the canonical serialized payload.
func (p IndexBranchPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// IndexBranchPayloadPrefix is the leading bytes of every encoded payload
// for the identity. The store matches an identity's jobs with it.
func IndexBranchPayloadPrefix(githubUserID int64) string {
	return `{"githubUserId":` + strconv.FormatInt(githubUserID, 10) + `,`
}

// DecodeIndexBranchPayload parses and checks an index_branch payload.
func DecodeIndexBranchPayload(raw []byte) (IndexBranchPayload, error) {
	var p IndexBranchPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode index_branch payload: %w", err)
	}
	if p.GitHubUserID == 0 || p.RepoFullName == "" || p.Branch == "" {
		return p, fmt.Errorf("index_branch payload missing fields: %s", raw)
	}
	return p, nil
}
