// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// ReconcileInvitations applies one upstream snapshot for an identity in a
// single transaction: every returned invitation is upserted as pending, every
// other pending row becomes unknown, and the conditional-request cursor is
// stored. Rows are never deleted.
func (db *DB) ReconcileInvitations(ctx context.Context, githubUserID int64, invites []models.UpstreamInvitation, etag string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return retryOnConflict(ctx, func() (err error) {
		now := db.now()

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackOnError(tx, &err)

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO invitations (
				invite_id, github_user_id, repository_full_name, inviter_login,
				created_at, updated_at, status, last_seen_at
			) VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
			ON CONFLICT (invite_id) DO UPDATE SET
				repository_full_name = excluded.repository_full_name,
				inviter_login = excluded.inviter_login,
				updated_at = excluded.updated_at,
				status = excluded.status,
				last_seen_at = excluded.last_seen_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare invitation upsert: %w", err)
		}
		defer closeWithLog(stmt, "prepared statement")

		ids := make([]any, 0, len(invites)+2)
		ids = append(ids, now, githubUserID)
		for _, inv := range invites {
			if _, err = stmt.ExecContext(ctx, inv.ID, githubUserID, inv.RepositoryFullName,
				nullString(inv.InviterLogin), inv.CreatedAt.UTC(), now, now); err != nil {
				return fmt.Errorf("failed to upsert invitation %d: %w", inv.ID, err)
			}
			ids = append(ids, inv.ID)
		}

		staleQuery := `UPDATE invitations SET status = 'unknown', updated_at = ?
			WHERE github_user_id = ? AND status = 'pending'`
		if len(invites) > 0 {
			staleQuery += ` AND invite_id NOT IN (` + placeholders(len(invites)) + `)`
		}
		if _, err = tx.ExecContext(ctx, staleQuery, ids...); err != nil {
			return fmt.Errorf("failed to mark stale invitations: %w", err)
		}

		if _, err = tx.ExecContext(ctx, `UPDATE credentials SET invites_etag = ? WHERE github_user_id = ?`,
			nullString(etag), githubUserID); err != nil {
			return fmt.Errorf("failed to store invitation cursor: %w", err)
		}

		return tx.Commit()
	})
}

// CountPendingInvitations returns the number of pending invitations.
func (db *DB) CountPendingInvitations(ctx context.Context, githubUserID int64) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invitations WHERE github_user_id = ? AND status = 'pending'`,
		githubUserID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	return n, nil
}

const invitationColumns = `invite_id, github_user_id, repository_full_name, inviter_login,
	created_at, updated_at, status, last_seen_at`

// ListInvitations returns invitations newest first. An empty status selects
// every status.
func (db *DB) ListInvitations(ctx context.Context, githubUserID int64, status models.InvitationStatus, limit, offset int) ([]models.Invitation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE github_user_id = ?`
	args := []any{githubUserID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, invite_id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer closeQuietly(rows)

	invites := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// GetInvitation returns one invitation owned by the identity, or ErrNotFound.
func (db *DB) GetInvitation(ctx context.Context, githubUserID, inviteID int64) (*models.Invitation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE github_user_id = ? AND invite_id = ?`,
		githubUserID, inviteID)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return inv, nil
}

// SetInvitationStatus records a user decision on an invitation.
func (db *DB) SetInvitationStatus(ctx context.Context, githubUserID, inviteID int64, status models.InvitationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: invitation %q", ErrInvalidStatus, status)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE invitations SET status = ?, updated_at = ? WHERE github_user_id = ? AND invite_id = ?`,
		string(status), db.now(), githubUserID, inviteID)
	if err != nil {
		return fmt.Errorf("failed to update invitation %d: %w", inviteID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var (
		inv     models.Invitation
		inviter sql.NullString
		status  string
	)
	if err := row.Scan(&inv.InviteID, &inv.GitHubUserID, &inv.RepositoryFullName, &inviter,
		&inv.CreatedAt, &inv.UpdatedAt, &status, &inv.LastSeenAt); err != nil {
		return nil, err
	}
	inv.InviterLogin = inviter.String
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
