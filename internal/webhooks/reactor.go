// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package webhooks reacts to GitHub webhook events.
//
// The Reactor turns three event kinds into local state changes: a push
// re-indexes or forgets a branch, a repository deletion drops the repository
// everywhere, and an app authorization revocation erases an identity. Every
// handler is idempotent; applying the same event twice leaves the same state.
package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
)

// Store is the state the reactor touches.
type Store interface {
	ListBranchIdentities(ctx context.Context, repo, branch string, status models.BranchIndexStatus) ([]int64, error)
	ListRepoIdentities(ctx context.Context, repo string) ([]int64, error)
	DeleteBranchState(ctx context.Context, githubUserID int64, repo, branch string) error
	DeleteRepoData(ctx context.Context, repo string) error
	CredentialExists(ctx context.Context, githubUserID int64) (bool, error)
	DeleteIdentityData(ctx context.Context, githubUserID int64) error
}

// Documents is the document store surface.
type Documents interface {
	DeleteByFilter(ctx context.Context, githubUserID int64, filter string) error
	DeleteIndex(ctx context.Context, githubUserID int64) error
}

// Enqueuer queues re-index jobs.
type Enqueuer interface {
	EnqueueIndexBranch(ctx context.Context, githubUserID int64, repo, branch string) (jobID string, created bool, err error)
}

// Reactor applies webhook events.
type Reactor struct {
	store Store
	docs  Documents
	jobs  Enqueuer
}

// NewReactor creates a reactor.
func NewReactor(store Store, docs Documents, jobs Enqueuer) *Reactor {
	return &Reactor{store: store, docs: docs, jobs: jobs}
}

// OnPush handles a push to repo@branch. For a live branch it enqueues one
// re-index job per identity that has the branch indexed and returns the
// number of new jobs. For a deleted branch it removes the branch's documents
// and state for every identity holding it.
func (r *Reactor) OnPush(ctx context.Context, repo, branch string, deleted bool) (int, error) {
	if deleted {
		return 0, r.forgetBranch(ctx, repo, branch)
	}

	ids, err := r.store.ListBranchIdentities(ctx, repo, branch, models.BranchIndexed)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	var errs []error
	for _, id := range ids {
		jobID, created, err := r.jobs.EnqueueIndexBranch(ctx, id, repo, branch)
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue for %d: %w", id, err))
			continue
		}
		if created {
			enqueued++
			metrics.WebhookJobsEnqueued.Inc()
		}
		logging.Ctx(ctx).Info().
			Int64("github_user_id", id).
			Str("repo", repo).
			Str("branch", branch).
			Str("job_id", jobID).
			Bool("created", created).
			Msg("Push triggered re-index")
	}
	return enqueued, errors.Join(errs...)
}

func (r *Reactor) forgetBranch(ctx context.Context, repo, branch string) error {
	ids, err := r.store.ListBranchIdentities(ctx, repo, branch, "")
	if err != nil {
		return err
	}

	filter := search.BranchFilter(repo, branch)
	var errs []error
	for _, id := range ids {
		// State goes only once the documents are gone, so a failure here is
		// retried on redelivery.
		if err := r.docs.DeleteByFilter(ctx, id, filter); err != nil {
			errs = append(errs, fmt.Errorf("delete documents for %d: %w", id, err))
			continue
		}
		if err := r.store.DeleteBranchState(ctx, id, repo, branch); err != nil {
			errs = append(errs, err)
			continue
		}
		logging.Ctx(ctx).Info().
			Int64("github_user_id", id).
			Str("repo", repo).
			Str("branch", branch).
			Msg("Deleted branch removed from index")
	}
	return errors.Join(errs...)
}

// OnResourceDeleted removes every document, branch state and index
// configuration for the repository across all identities.
func (r *Reactor) OnResourceDeleted(ctx context.Context, repo string) error {
	ids, err := r.store.ListRepoIdentities(ctx, repo)
	if err != nil {
		return err
	}

	filter := search.RepoFilter(repo)
	var errs []error
	for _, id := range ids {
		if err := r.docs.DeleteByFilter(ctx, id, filter); err != nil {
			errs = append(errs, fmt.Errorf("delete documents for %d: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := r.store.DeleteRepoData(ctx, repo); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("repo", repo).Int("identities", len(ids)).Msg("Deleted repository removed from index")
	return nil
}

// OnCredentialRevoked erases the identity: its whole document index and all
// rows it owns. Unknown identities are ignored.
func (r *Reactor) OnCredentialRevoked(ctx context.Context, githubUserID int64) error {
	exists, err := r.store.CredentialExists(ctx, githubUserID)
	if err != nil {
		return err
	}
	if !exists {
		logging.Ctx(ctx).Debug().Int64("github_user_id", githubUserID).Msg("Revocation for unknown identity ignored")
		return nil
	}

	if err := r.docs.DeleteIndex(ctx, githubUserID); err != nil {
		return fmt.Errorf("delete index for %d: %w", githubUserID, err)
	}
	if err := r.store.DeleteIdentityData(ctx, githubUserID); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Int64("github_user_id", githubUserID).Msg("Authorization revoked, identity data removed")
	return nil
}
