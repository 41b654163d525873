// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// UpsertCredential stores the linked identity and its encrypted tokens.
// Re-linking overwrites the token pair but keeps the invitation cursor.
func (db *DB) UpsertCredential(ctx context.Context, cred *models.UserCredential) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	updatedAt := cred.TokenUpdatedAt
	if updatedAt.IsZero() {
		updatedAt = db.now()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO credentials (
			github_user_id, github_login, access_token_enc, access_token_expires_at,
			refresh_token_enc, refresh_token_expires_at, token_updated_at, invites_etag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (github_user_id) DO UPDATE SET
			github_login = excluded.github_login,
			access_token_enc = excluded.access_token_enc,
			access_token_expires_at = excluded.access_token_expires_at,
			refresh_token_enc = excluded.refresh_token_enc,
			refresh_token_expires_at = excluded.refresh_token_expires_at,
			token_updated_at = excluded.token_updated_at`,
		cred.GitHubUserID, cred.GitHubLogin, cred.AccessTokenEnc, cred.AccessTokenExpiresAt.UTC(),
		cred.RefreshTokenEnc, cred.RefreshTokenExpiresAt.UTC(), updatedAt.UTC(), nullString(cred.InvitesETag))
	if err != nil {
		return fmt.Errorf("failed to upsert credential %d: %w", cred.GitHubUserID, err)
	}
	return nil
}

// GetCredential returns the credential row or ErrNotFound.
func (db *DB) GetCredential(ctx context.Context, githubUserID int64) (*models.UserCredential, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		cred models.UserCredential
		etag sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT github_user_id, github_login, access_token_enc, access_token_expires_at,
			refresh_token_enc, refresh_token_expires_at, token_updated_at, invites_etag
		FROM credentials WHERE github_user_id = ?`, githubUserID).Scan(
		&cred.GitHubUserID, &cred.GitHubLogin, &cred.AccessTokenEnc, &cred.AccessTokenExpiresAt,
		&cred.RefreshTokenEnc, &cred.RefreshTokenExpiresAt, &cred.TokenUpdatedAt, &etag)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	cred.InvitesETag = etag.String
	return &cred, nil
}

// UpdateCredentialTokens persists a refreshed token pair in one statement.
func (db *DB) UpdateCredentialTokens(ctx context.Context, githubUserID int64, accessEnc string, accessExp time.Time, refreshEnc string, refreshExp time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE credentials SET
			access_token_enc = ?, access_token_expires_at = ?,
			refresh_token_enc = ?, refresh_token_expires_at = ?,
			token_updated_at = ?
		WHERE github_user_id = ?`,
		accessEnc, accessExp.UTC(), refreshEnc, refreshExp.UTC(), db.now(), githubUserID)
	if err != nil {
		return fmt.Errorf("failed to update tokens for %d: %w", githubUserID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCredentialIDs returns every linked identity in ascending order.
func (db *DB) ListCredentialIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT github_user_id FROM credentials ORDER BY github_user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer closeQuietly(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan credential id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CredentialExists reports whether an identity is linked.
func (db *DB) CredentialExists(ctx context.Context, githubUserID int64) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE github_user_id = ?`, githubUserID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check credential %d: %w", githubUserID, err)
	}
	return n > 0, nil
}

// DeleteIdentityData removes every row owned by the identity: branch state,
// repo config, invitations, the credential and its jobs. A running job is
// left to its worker; it fails on the missing credential. Idempotent.
func (db *DB) DeleteIdentityData(ctx context.Context, githubUserID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return retryOnConflict(ctx, func() (err error) {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackOnError(tx, &err)

		for _, table := range []string{"branch_index_state", "repo_index_config", "invitations", "credentials"} {
			// Table names are constants from the list above.
			if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE github_user_id = ?", githubUserID); err != nil {
				return fmt.Errorf("failed to delete %s for %d: %w", table, githubUserID, err)
			}
		}
		if _, err = tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE type = ? AND status <> 'running' AND starts_with(payload_json, ?)`,
			string(models.JobTypeIndexBranch), models.IndexBranchPayloadPrefix(githubUserID)); err != nil {
			return fmt.Errorf("failed to delete jobs for %d: %w", githubUserID, err)
		}
		return tx.Commit()
	})
}
