// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/validation"
)

// ErrInvalidTarget is returned for a malformed repository or branch name.
var ErrInvalidTarget = errors.New("invalid repository or branch")

// JobStore inserts jobs.
type JobStore interface {
	EnqueueJob(ctx context.Context, jobType models.JobType, payload []byte, maxAttempts int) (id string, created bool, err error)
}

// Enqueuer creates index jobs. Enqueue is idempotent: while an identical
// job is queued or running its id is returned and created is false.
type Enqueuer struct {
	store       JobStore
	maxAttempts int
}

// NewEnqueuer creates an enqueuer. maxAttempts < 1 uses the model default.
func NewEnqueuer(store JobStore, maxAttempts int) *Enqueuer {
	if maxAttempts < 1 {
		maxAttempts = models.DefaultMaxAttempts
	}
	return &Enqueuer{store: store, maxAttempts: maxAttempts}
}

// EnqueueIndexBranch queues an index_branch job.
func (e *Enqueuer) EnqueueIndexBranch(ctx context.Context, githubUserID int64, repo, branch string) (jobID string, created bool, err error) {
	if githubUserID <= 0 || !validation.IsRepoFullName(repo) || !validation.IsBranchName(branch) {
		return "", false, fmt.Errorf("%w: %q @ %q", ErrInvalidTarget, repo, branch)
	}

	payload, err := models.IndexBranchPayload{GitHubUserID: githubUserID, RepoFullName: repo, Branch: branch}.Encode()
	if err != nil {
		return "", false, err
	}
	jobID, created, err = e.store.EnqueueJob(ctx, models.JobTypeIndexBranch, payload, e.maxAttempts)
	if err != nil {
		return "", false, err
	}
	metrics.RecordEnqueue(string(models.JobTypeIndexBranch), created)
	logging.Ctx(ctx).Debug().
		Str("job_id", jobID).
		Bool("created", created).
		Int64("github_user_id", githubUserID).
		Str("repo", repo).
		Str("branch", branch).
		Msg("Index job enqueued")
	return jobID, created, nil
}

// Recoverer resets orphaned running jobs.
type Recoverer interface {
	RecoverStuckJobs(ctx context.Context) (int64, error)
}

// RecoverStuckJobs requeues jobs left running by an unclean shutdown. Call it
// once at startup, before the scheduler starts.
func RecoverStuckJobs(ctx context.Context, r Recoverer) (int64, error) {
	n, err := r.RecoverStuckJobs(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.JobsRecovered.Add(float64(n))
		logging.Warn().Int64("jobs", n).Msg("Requeued jobs left running by previous process")
	}
	return n, nil
}

// CleanupStore is the retention surface of the store.
type CleanupStore interface {
	CleanupDoneJobs(ctx context.Context, cutoff time.Time) (int64, error)
	CleanupExpiredOAuthStates(ctx context.Context) (int64, error)
}

// Cleaner purges done jobs past retention and expired OAuth states.
type Cleaner struct {
	store     CleanupStore
	retention time.Duration
	now       func() time.Time
}

// NewCleaner creates a cleaner.
func NewCleaner(store CleanupStore, retention time.Duration) *Cleaner {
	return &Cleaner{store: store, retention: retention, now: time.Now}
}

// Cleanup runs one pass. Errors are logged; the next pass retries.
func (c *Cleaner) Cleanup(ctx context.Context) {
	if n, err := c.store.CleanupExpiredOAuthStates(ctx); err != nil {
		logging.Warn().Err(err).Msg("OAuth state cleanup failed")
	} else if n > 0 {
		metrics.CleanupDeleted.WithLabelValues("oauth_states").Add(float64(n))
		logging.Debug().Int64("deleted", n).Msg("Expired OAuth states removed")
	}

	cutoff := c.now().Add(-c.retention)
	if n, err := c.store.CleanupDoneJobs(ctx, cutoff); err != nil {
		logging.Warn().Err(err).Msg("Job cleanup failed")
	} else if n > 0 {
		metrics.CleanupDeleted.WithLabelValues("jobs").Add(float64(n))
		logging.Debug().Int64("deleted", n).Time("cutoff", cutoff).Msg("Old done jobs removed")
	}
}
