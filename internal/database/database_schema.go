// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema creation and migrations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the schema DDL.
//
// DuckDB NOTES:
//   - No foreign keys: deletes across tables are explicit (see DeleteIdentityData).
//   - Only primary/unique keys on columns that are never updated. DuckDB checks
//     unique indexes eagerly within a transaction, so indexing mutable columns
//     like jobs.status turns ordinary updates into constraint errors.
//   - All timestamps are UTC TIMESTAMP.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			github_user_id BIGINT PRIMARY KEY,
			github_login TEXT NOT NULL,
			access_token_enc TEXT NOT NULL,
			access_token_expires_at TIMESTAMP NOT NULL,
			refresh_token_enc TEXT NOT NULL,
			refresh_token_expires_at TIMESTAMP NOT NULL,
			token_updated_at TIMESTAMP NOT NULL,
			invites_etag TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS oauth_states (
			state TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			redirect_uri TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS invitations (
			invite_id BIGINT PRIMARY KEY,
			github_user_id BIGINT NOT NULL,
			repository_full_name TEXT NOT NULL,
			inviter_login TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','accepted','declined','unknown')),
			last_seen_at TIMESTAMP NOT NULL
		);`,

		`CREATE SEQUENCE IF NOT EXISTS repo_index_config_id_seq START 1;`,

		`CREATE TABLE IF NOT EXISTS repo_index_config (
			id BIGINT PRIMARY KEY DEFAULT nextval('repo_index_config_id_seq'),
			github_user_id BIGINT NOT NULL,
			repo_full_name TEXT NOT NULL,
			branch_pattern TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (github_user_id, repo_full_name, branch_pattern)
		);`,

		`CREATE TABLE IF NOT EXISTS branch_index_state (
			github_user_id BIGINT NOT NULL,
			repo_full_name TEXT NOT NULL,
			branch TEXT NOT NULL,
			head_sha TEXT NOT NULL,
			indexed_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('indexing','indexed','failed')),
			last_error TEXT,
			PRIMARY KEY (github_user_id, repo_full_name, branch)
		);`,

		`CREATE SEQUENCE IF NOT EXISTS jobs_seq START 1;`,

		// seq breaks created_at ties so dequeue order is strictly FIFO.
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('jobs_seq'),
			type TEXT NOT NULL CHECK (type IN ('index_branch')),
			payload_json TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('queued','running','done','failed')),
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_error TEXT
		);`,
	}
}
