// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// MarkBranchIndexing records the start of an indexing run at headSHA and
// clears any previous error.
func (db *DB) MarkBranchIndexing(ctx context.Context, githubUserID int64, repo, branch, headSHA string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO branch_index_state (github_user_id, repo_full_name, branch, head_sha, indexed_at, status, last_error)
		VALUES (?, ?, ?, ?, ?, 'indexing', NULL)
		ON CONFLICT (github_user_id, repo_full_name, branch) DO UPDATE SET
			head_sha = excluded.head_sha,
			indexed_at = excluded.indexed_at,
			status = excluded.status,
			last_error = NULL`,
		githubUserID, repo, branch, headSHA, db.now())
	if err != nil {
		return fmt.Errorf("failed to mark %s@%s indexing: %w", repo, branch, err)
	}
	return nil
}

// MarkBranchIndexed records a successful run.
func (db *DB) MarkBranchIndexed(ctx context.Context, githubUserID int64, repo, branch, headSHA string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE branch_index_state
		SET head_sha = ?, indexed_at = ?, status = 'indexed', last_error = NULL
		WHERE github_user_id = ? AND repo_full_name = ? AND branch = ?`,
		headSHA, db.now(), githubUserID, repo, branch)
	if err != nil {
		return fmt.Errorf("failed to mark %s@%s indexed: %w", repo, branch, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkBranchFailed records a failed run on an existing row. A run that failed
// before MarkBranchIndexing leaves no row behind, so a job for an erased
// identity cannot bring its state back.
func (db *DB) MarkBranchFailed(ctx context.Context, githubUserID int64, repo, branch, lastError string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		UPDATE branch_index_state SET status = 'failed', last_error = ?
		WHERE github_user_id = ? AND repo_full_name = ? AND branch = ?`,
		lastError, githubUserID, repo, branch)
	if err != nil {
		return fmt.Errorf("failed to mark %s@%s failed: %w", repo, branch, err)
	}
	return nil
}

const branchStateColumns = `github_user_id, repo_full_name, branch, head_sha, indexed_at, status, last_error`

// GetBranchState returns the state row or ErrNotFound.
func (db *DB) GetBranchState(ctx context.Context, githubUserID int64, repo, branch string) (*models.BranchIndexState, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+branchStateColumns+` FROM branch_index_state
		WHERE github_user_id = ? AND repo_full_name = ? AND branch = ?`, githubUserID, repo, branch)
	st, err := scanBranchState(row)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return st, nil
}

// ListBranchStates returns an identity's branch states, most recent first.
// An empty repo lists every repository.
func (db *DB) ListBranchStates(ctx context.Context, githubUserID int64, repo string, limit int) ([]models.BranchIndexState, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + branchStateColumns + ` FROM branch_index_state WHERE github_user_id = ?`
	args := []any{githubUserID}
	if repo != "" {
		query += ` AND repo_full_name = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY indexed_at DESC, repo_full_name, branch LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list branch states: %w", err)
	}
	defer closeQuietly(rows)

	states := []models.BranchIndexState{}
	for rows.Next() {
		st, err := scanBranchState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch state: %w", err)
		}
		states = append(states, *st)
	}
	return states, rows.Err()
}

// ListBranchIdentities returns the identities holding a state row for the
// branch. A non-empty status restricts the match.
func (db *DB) ListBranchIdentities(ctx context.Context, repo, branch string, status models.BranchIndexStatus) ([]int64, error) {
	query := `SELECT DISTINCT github_user_id FROM branch_index_state WHERE repo_full_name = ? AND branch = ?`
	args := []any{repo, branch}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	return db.queryIDs(ctx, query+` ORDER BY github_user_id`, args...)
}

// ListRepoIdentities returns the identities holding any state for the repository.
func (db *DB) ListRepoIdentities(ctx context.Context, repo string) ([]int64, error) {
	return db.queryIDs(ctx, `SELECT DISTINCT github_user_id FROM branch_index_state
		WHERE repo_full_name = ? ORDER BY github_user_id`, repo)
}

// DeleteBranchState removes one branch state row. Idempotent.
func (db *DB) DeleteBranchState(ctx context.Context, githubUserID int64, repo, branch string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `DELETE FROM branch_index_state
		WHERE github_user_id = ? AND repo_full_name = ? AND branch = ?`, githubUserID, repo, branch)
	if err != nil {
		return fmt.Errorf("failed to delete branch state %s@%s: %w", repo, branch, err)
	}
	return nil
}

// DeleteRepoData removes branch state and index configuration for the
// repository across all identities. Idempotent.
func (db *DB) DeleteRepoData(ctx context.Context, repo string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return retryOnConflict(ctx, func() (err error) {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer rollbackOnError(tx, &err)

		if _, err = tx.ExecContext(ctx, `DELETE FROM branch_index_state WHERE repo_full_name = ?`, repo); err != nil {
			return fmt.Errorf("failed to delete branch states for %s: %w", repo, err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM repo_index_config WHERE repo_full_name = ?`, repo); err != nil {
			return fmt.Errorf("failed to delete index config for %s: %w", repo, err)
		}
		return tx.Commit()
	})
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer closeQuietly(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBranchState(row rowScanner) (*models.BranchIndexState, error) {
	var (
		st      models.BranchIndexState
		status  string
		lastErr sql.NullString
	)
	if err := row.Scan(&st.GitHubUserID, &st.RepoFullName, &st.Branch, &st.HeadSHA,
		&st.IndexedAt, &status, &lastErr); err != nil {
		return nil, err
	}
	st.Status = models.BranchIndexStatus(status)
	st.LastError = lastErr.String
	return &st, nil
}
