// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package dbtest opens throwaway DuckDB stores for tests in other packages.
package dbtest

import (
	"testing"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
)

// semaphore limits concurrent DuckDB instances; too many concurrent CGO
// connections under CI resource pressure can hang.
var semaphore = make(chan struct{}, 2)

// New opens an in-memory database through the production constructor and
// closes it when the test completes.
func New(t testing.TB) *database.DB {
	t.Helper()

	semaphore <- struct{}{}
	t.Cleanup(func() { <-semaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}
