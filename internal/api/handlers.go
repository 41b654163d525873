// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"context"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/github"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/webhooks"
)

// Store is the relational state read directly by handlers.
type Store interface {
	Ping(ctx context.Context) error
	CreateOAuthState(ctx context.Context, state string, ttl time.Duration, fingerprint, redirectURI string) error
	ConsumeOAuthState(ctx context.Context, state string) (*models.OAuthState, error)
	ListBranchStates(ctx context.Context, githubUserID int64, repo string, limit int) ([]models.BranchIndexState, error)
	UpsertRepoIndexConfig(ctx context.Context, githubUserID int64, repo, pattern string) (*models.RepoIndexConfig, error)
}

// Invitations is the invitation service.
type Invitations interface {
	Refresh(ctx context.Context, githubUserID int64) (int, error)
	List(ctx context.Context, githubUserID int64, statusFilter string, limit, offset int) ([]models.Invitation, error)
	Accept(ctx context.Context, githubUserID, inviteID int64) error
	Decline(ctx context.Context, githubUserID, inviteID int64) error
}

// Enqueuer queues index jobs.
type Enqueuer interface {
	EnqueueIndexBranch(ctx context.Context, githubUserID int64, repo, branch string) (jobID string, created bool, err error)
}

// Searcher runs code searches.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*models.SearchResult, error)
}

// HealthChecker reports search engine health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// OAuthProvider runs the GitHub side of the link flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenPair, error)
	GetAuthenticatedUser(ctx context.Context, token string) (*github.User, error)
}

// Linker stores a freshly linked identity.
type Linker interface {
	Link(ctx context.Context, githubUserID int64, login string, pair *models.TokenPair) error
}

// WebhookReactor applies a verified webhook delivery.
type WebhookReactor interface {
	Handle(ctx context.Context, event string, body []byte) (webhooks.Outcome, error)
}

// Dependencies wires the handler to the engine.
type Dependencies struct {
	Store       Store
	Invitations Invitations
	Jobs        Enqueuer
	Search      Searcher
	SearchLive  HealthChecker
	OAuth       OAuthProvider
	Tokens      Linker
	Reactor     WebhookReactor
	Deliveries  webhooks.DeliveryTracker
}

// Handler holds the request handlers.
type Handler struct {
	cfg  *config.Config
	deps Dependencies

	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, deps Dependencies) *Handler {
	return &Handler{cfg: cfg, deps: deps, startTime: time.Now()}
}
