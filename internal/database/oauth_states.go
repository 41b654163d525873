// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// CreateOAuthState stores a one-time authorization state.
func (db *DB) CreateOAuthState(ctx context.Context, state string, ttl time.Duration, fingerprint, redirectURI string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := db.now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO oauth_states (state, created_at, expires_at, fingerprint, redirect_uri)
		VALUES (?, ?, ?, ?, ?)`,
		state, now, now.Add(ttl), fingerprint, redirectURI)
	if err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes and returns a state. Unknown and expired states
// both yield ErrNotFound.
func (db *DB) ConsumeOAuthState(ctx context.Context, state string) (*models.OAuthState, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var st models.OAuthState
	err := db.conn.QueryRowContext(ctx, `
		DELETE FROM oauth_states WHERE state = ?
		RETURNING state, created_at, expires_at, fingerprint, redirect_uri`, state).Scan(
		&st.State, &st.CreatedAt, &st.ExpiresAt, &st.Fingerprint, &st.RedirectURI)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	if !st.ExpiresAt.After(db.now()) {
		return nil, ErrNotFound
	}
	return &st, nil
}

// CleanupExpiredOAuthStates deletes states past their expiry.
func (db *DB) CleanupExpiredOAuthStates(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < ?`, db.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up oauth states: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
