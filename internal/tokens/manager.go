// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package tokens keeps GitHub user access tokens valid.
//
// GetValidAccessToken serves a stored token while it is comfortably inside
// its lifetime and otherwise refreshes it. Concurrent callers for the same
// identity share a single in-flight refresh (golang.org/x/sync/singleflight),
// so an identity costs at most one upstream refresh per expiry window.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

const (
	// DefaultSkew is how long before expiry a token is already refreshed.
	DefaultSkew = 5 * time.Minute

	// refreshTimeout bounds a shared refresh independently of whichever
	// caller happened to start it.
	refreshTimeout = 45 * time.Second
)

// Store is the credential persistence the manager needs.
type Store interface {
	GetCredential(ctx context.Context, githubUserID int64) (*models.UserCredential, error)
	UpsertCredential(ctx context.Context, cred *models.UserCredential) error
	UpdateCredentialTokens(ctx context.Context, githubUserID int64, accessEnc string, accessExp time.Time, refreshEnc string, refreshExp time.Time) error
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// Cipher encrypts tokens at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Manager is the token lifecycle manager.
type Manager struct {
	store     Store
	refresher Refresher
	cipher    Cipher
	skew      time.Duration
	flights   singleflight.Group
	now       func() time.Time
}

// NewManager creates a manager with the default skew.
func NewManager(store Store, refresher Refresher, cipher Cipher) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		cipher:    cipher,
		skew:      DefaultSkew,
		now:       time.Now,
	}
}

// GetValidAccessToken returns a usable access token for the identity.
//
// It fails with apperr.ErrUserNotFound when no credential is stored and with
// apperr.ErrReauthRequired once the refresh token itself has expired. Refresh
// failures are returned as-is and never retried here.
func (m *Manager) GetValidAccessToken(ctx context.Context, githubUserID int64) (string, error) {
	cred, err := m.credential(ctx, githubUserID)
	if err != nil {
		return "", err
	}

	if m.fresh(cred) {
		return m.decrypt(cred.AccessTokenEnc, "access")
	}

	key := strconv.FormatInt(githubUserID, 10)
	v, err, shared := m.flights.Do(key, func() (any, error) {
		// The flight outlives a cancelled first caller; others may be waiting.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(fctx, githubUserID)
	})
	if shared {
		metrics.TokenRefreshesCoalesced.Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh runs inside the single flight for one identity.
func (m *Manager) refresh(ctx context.Context, githubUserID int64) (string, error) {
	// Re-read: a flight that finished just before this one started may have
	// already stored a fresh token.
	cred, err := m.credential(ctx, githubUserID)
	if err != nil {
		return "", err
	}
	if m.fresh(cred) {
		return m.decrypt(cred.AccessTokenEnc, "access")
	}

	if !cred.RefreshTokenExpiresAt.After(m.now()) {
		metrics.TokenRefreshes.WithLabelValues("reauth_required").Inc()
		logging.Info().Int64("github_user_id", githubUserID).Msg("Refresh token expired, re-auth required")
		return "", apperr.ErrReauthRequired
	}

	refreshToken, err := m.decrypt(cred.RefreshTokenEnc, "refresh")
	if err != nil {
		return "", err
	}

	pair, err := m.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		outcome := "failure"
		if errors.Is(err, apperr.ErrReauthRequired) {
			outcome = "reauth_required"
		}
		metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
		logging.Warn().Err(err).Int64("github_user_id", githubUserID).Msg("Token refresh failed")
		return "", fmt.Errorf("refresh token for %d: %w", githubUserID, err)
	}
	if pair.RefreshToken == "" || pair.RefreshToken == refreshToken {
		// Not rotated. The oauth2 client echoes the sent token back, so only a
		// new token earns a new expiry.
		pair.RefreshToken = refreshToken
		pair.RefreshTokenExpiresAt = cred.RefreshTokenExpiresAt
	}

	accessEnc, refreshEnc, err := m.encryptPair(pair)
	if err != nil {
		return "", err
	}
	if err := m.store.UpdateCredentialTokens(ctx, githubUserID, accessEnc, pair.AccessTokenExpiresAt,
		refreshEnc, pair.RefreshTokenExpiresAt); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", apperr.ErrUserNotFound
		}
		return "", fmt.Errorf("persist refreshed tokens for %d: %w", githubUserID, err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Debug().Int64("github_user_id", githubUserID).Time("expires_at", pair.AccessTokenExpiresAt).Msg("Access token refreshed")
	return pair.AccessToken, nil
}

// Link stores the token pair of a newly linked (or re-linked) identity.
func (m *Manager) Link(ctx context.Context, githubUserID int64, login string, pair *models.TokenPair) error {
	accessEnc, refreshEnc, err := m.encryptPair(pair)
	if err != nil {
		return err
	}
	return m.store.UpsertCredential(ctx, &models.UserCredential{
		GitHubUserID:          githubUserID,
		GitHubLogin:           login,
		AccessTokenEnc:        accessEnc,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenEnc:       refreshEnc,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenUpdatedAt:        m.now().UTC(),
	})
}

func (m *Manager) credential(ctx context.Context, githubUserID int64) (*models.UserCredential, error) {
	cred, err := m.store.GetCredential(ctx, githubUserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load credential %d: %w", githubUserID, err)
	}
	return cred, nil
}

func (m *Manager) fresh(cred *models.UserCredential) bool {
	return cred.AccessTokenExpiresAt.After(m.now().Add(m.skew))
}

func (m *Manager) decrypt(enc, kind string) (string, error) {
	plain, err := m.cipher.Decrypt(enc)
	if err != nil {
		return "", fmt.Errorf("decrypt %s token: %w", kind, err)
	}
	return plain, nil
}

func (m *Manager) encryptPair(pair *models.TokenPair) (accessEnc, refreshEnc string, err error) {
	if accessEnc, err = m.cipher.Encrypt(pair.AccessToken); err != nil {
		return "", "", fmt.Errorf("encrypt access token: %w", err)
	}
	if refreshEnc, err = m.cipher.Encrypt(pair.RefreshToken); err != nil {
		return "", "", fmt.Errorf("encrypt refresh token: %w", err)
	}
	return accessEnc, refreshEnc, nil
}
