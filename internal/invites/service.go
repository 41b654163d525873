// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package invites keeps the local invitation table in step with GitHub.
//
// Service serves the per-identity operations (list, refresh, accept,
// decline). Reconciler runs Refresh for every linked identity on a timer with
// a small fan-out; one identity failing never stops the others.
package invites

import (
	"context"
	"errors"
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/github"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// Paging bounds for List.
const (
	DefaultLimit = 100
	MaxLimit     = 200
)

// ErrInvalidFilter is returned for an unknown status filter.
var ErrInvalidFilter = errors.New("invalid status filter")

// Store is the invitation persistence the service needs.
type Store interface {
	GetCredential(ctx context.Context, githubUserID int64) (*models.UserCredential, error)
	ReconcileInvitations(ctx context.Context, githubUserID int64, invites []models.UpstreamInvitation, etag string) error
	CountPendingInvitations(ctx context.Context, githubUserID int64) (int, error)
	ListInvitations(ctx context.Context, githubUserID int64, status models.InvitationStatus, limit, offset int) ([]models.Invitation, error)
	GetInvitation(ctx context.Context, githubUserID, inviteID int64) (*models.Invitation, error)
	SetInvitationStatus(ctx context.Context, githubUserID, inviteID int64, status models.InvitationStatus) error
}

// Provider is the upstream invitation API.
type Provider interface {
	ListInvitations(ctx context.Context, token, etag string) (*github.InvitationList, error)
	AcceptInvitation(ctx context.Context, token string, inviteID int64) error
	DeclineInvitation(ctx context.Context, token string, inviteID int64) error
}

// TokenSource returns a usable access token for an identity.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, githubUserID int64) (string, error)
}

// Service implements the invitation operations.
type Service struct {
	store    Store
	provider Provider
	tokens   TokenSource
}

// NewService creates a service.
func NewService(store Store, provider Provider, tokens TokenSource) *Service {
	return &Service{store: store, provider: provider, tokens: tokens}
}

// Refresh pulls the identity's pending invitations and reconciles them. It
// returns the number of pending invitations afterwards.
//
// A not-modified answer leaves every row untouched.
func (s *Service) Refresh(ctx context.Context, githubUserID int64) (int, error) {
	token, err := s.tokens.GetValidAccessToken(ctx, githubUserID)
	if err != nil {
		return 0, err
	}

	cred, err := s.store.GetCredential(ctx, githubUserID)
	if err != nil {
		return 0, fmt.Errorf("load invitation cursor: %w", err)
	}

	list, err := s.provider.ListInvitations(ctx, token, cred.InvitesETag)
	if err != nil {
		return 0, err
	}
	if list.NotModified {
		metrics.ReconcileIdentities.WithLabelValues("not_modified").Inc()
		return s.store.CountPendingInvitations(ctx, githubUserID)
	}

	if err := s.store.ReconcileInvitations(ctx, githubUserID, list.Invitations, list.ETag); err != nil {
		return 0, err
	}
	metrics.ReconcileIdentities.WithLabelValues("updated").Inc()
	metrics.InvitationsSeen.Add(float64(len(list.Invitations)))

	logging.Ctx(ctx).Debug().
		Int64("github_user_id", githubUserID).
		Int("pending", len(list.Invitations)).
		Msg("Invitations reconciled")
	return len(list.Invitations), nil
}

// List returns stored invitations newest first. An empty filter means
// pending; "all" selects every status. Limit is clamped to [1, MaxLimit].
func (s *Service) List(ctx context.Context, githubUserID int64, statusFilter string, limit, offset int) ([]models.Invitation, error) {
	status, err := models.ParseStatusFilter(statusFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, statusFilter)
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListInvitations(ctx, githubUserID, status, limit, offset)
}

// Accept accepts an invitation upstream and records the decision.
func (s *Service) Accept(ctx context.Context, githubUserID, inviteID int64) error {
	return s.decide(ctx, githubUserID, inviteID, models.InvitationAccepted, s.provider.AcceptInvitation)
}

// Decline declines an invitation upstream and records the decision.
func (s *Service) Decline(ctx context.Context, githubUserID, inviteID int64) error {
	return s.decide(ctx, githubUserID, inviteID, models.InvitationDeclined, s.provider.DeclineInvitation)
}

func (s *Service) decide(ctx context.Context, githubUserID, inviteID int64, status models.InvitationStatus,
	mutate func(ctx context.Context, token string, inviteID int64) error) error {
	// Only invitations the identity owns may be touched.
	if _, err := s.store.GetInvitation(ctx, githubUserID, inviteID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load invitation %d: %w", inviteID, err)
	}

	token, err := s.tokens.GetValidAccessToken(ctx, githubUserID)
	if err != nil {
		return err
	}
	if err := mutate(ctx, token, inviteID); err != nil {
		return err
	}
	if err := s.store.SetInvitationStatus(ctx, githubUserID, inviteID, status); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Int64("github_user_id", githubUserID).
		Int64("invite_id", inviteID).
		Str("status", string(status)).
		Msg("Invitation decided")
	return nil
}
