// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// UpsertRepoIndexConfig records (or re-enables) a branch pattern the identity
// wants indexed.
func (db *DB) UpsertRepoIndexConfig(ctx context.Context, githubUserID int64, repo, pattern string) (*models.RepoIndexConfig, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := db.now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO repo_index_config (github_user_id, repo_full_name, branch_pattern, enabled, created_at, updated_at)
		VALUES (?, ?, ?, true, ?, ?)
		ON CONFLICT (github_user_id, repo_full_name, branch_pattern) DO UPDATE SET
			enabled = true,
			updated_at = excluded.updated_at`,
		githubUserID, repo, pattern, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert index config %s/%s: %w", repo, pattern, err)
	}

	var c models.RepoIndexConfig
	err = db.conn.QueryRowContext(ctx, `
		SELECT id, github_user_id, repo_full_name, branch_pattern, enabled, created_at, updated_at
		FROM repo_index_config
		WHERE github_user_id = ? AND repo_full_name = ? AND branch_pattern = ?`,
		githubUserID, repo, pattern).Scan(
		&c.ID, &c.GitHubUserID, &c.RepoFullName, &c.BranchPattern, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read index config %s/%s: %w", repo, pattern, err)
	}
	return &c, nil
}

// ListRepoIndexConfigs returns an identity's index configuration.
func (db *DB) ListRepoIndexConfigs(ctx context.Context, githubUserID int64) ([]models.RepoIndexConfig, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, github_user_id, repo_full_name, branch_pattern, enabled, created_at, updated_at
		FROM repo_index_config WHERE github_user_id = ?
		ORDER BY repo_full_name, branch_pattern`, githubUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list index config: %w", err)
	}
	defer closeQuietly(rows)

	configs := []models.RepoIndexConfig{}
	for rows.Next() {
		var c models.RepoIndexConfig
		if err := rows.Scan(&c.ID, &c.GitHubUserID, &c.RepoFullName, &c.BranchPattern,
			&c.Enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan index config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
