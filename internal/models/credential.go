// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

import "time"

// UserCredential is the persisted, encrypted token pair for one identity.
// Tokens are stored in encrypted form only.
type UserCredential struct {
	GitHubUserID          int64
	GitHubLogin           string
	AccessTokenEnc        string
	AccessTokenExpiresAt  time.Time
	RefreshTokenEnc       string
	RefreshTokenExpiresAt time.Time
	TokenUpdatedAt        time.Time

	// InvitesETag is the conditional-request cursor for the invitation list.
	InvitesETag string
}

// TokenPair is a freshly issued, unencrypted token pair.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// OAuthState is a pending authorization request created by the link flow.
type OAuthState struct {
	State       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Fingerprint string
	RedirectURI string
}
