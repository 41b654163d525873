// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

func tempDatabase(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gip.duckdb")
}

func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"jobs", "invites", "cleanup"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"db", "format"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, tempDatabase(t), "--format", "yaml", "jobs", "stats")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if code := GetExitCode(err); code != ExitCommandError {
		t.Errorf("exit code = %d, want %d", code, ExitCommandError)
	}
}

func TestJobs_EnqueueListStatsRecover(t *testing.T) {
	dbPath := tempDatabase(t)

	out, err := execute(t, dbPath, "jobs", "enqueue", "--user", "42", "--repo", "octo/app", "--branch", "main")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.HasPrefix(out, "queued ") {
		t.Errorf("enqueue output = %q", out)
	}

	out, err = execute(t, dbPath, "jobs", "enqueue", "--user", "42", "--repo", "octo/app", "--branch", "main")
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if !strings.HasPrefix(out, "already pending ") {
		t.Errorf("duplicate enqueue output = %q", out)
	}

	out, err = execute(t, dbPath, "--format", "json", "jobs", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var jobs []models.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if jobs[0].Status != models.JobQueued {
		t.Errorf("status = %q, want %q", jobs[0].Status, models.JobQueued)
	}

	out, err = execute(t, dbPath, "jobs", "list", "--status", "queued")
	if err != nil {
		t.Fatalf("text list: %v", err)
	}
	if !strings.Contains(out, "42 octo/app@main") {
		t.Errorf("text list missing target:\n%s", out)
	}

	out, err = execute(t, dbPath, "jobs", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "queued") || !strings.Contains(out, "1") {
		t.Errorf("stats output = %q", out)
	}

	out, err = execute(t, dbPath, "jobs", "recover")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if out != "requeued 0 job(s)\n" {
		t.Errorf("recover output = %q", out)
	}
}

func TestJobs_Errors(t *testing.T) {
	dbPath := tempDatabase(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown status", []string{"jobs", "list", "--status", "paused"}},
		{"bad repo", []string{"jobs", "enqueue", "--user", "42", "--repo", "no-slash", "--branch", "main"}},
		{"bad user", []string{"jobs", "enqueue", "--user", "0", "--repo", "octo/app", "--branch", "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dbPath, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := GetExitCode(err); code != ExitCommandError {
				t.Errorf("exit code = %d, want %d (%v)", code, ExitCommandError, err)
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	dbPath := tempDatabase(t)
	if _, err := execute(t, dbPath, "jobs", "enqueue", "--user", "7", "--repo", "octo/app", "--branch", "dev"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	out, err := execute(t, dbPath, "--format", "json", "cleanup", "--retention", "1h")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	var result map[string]int64
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode cleanup output: %v", err)
	}
	if result["done_jobs_remaining"] != 0 {
		t.Errorf("done_jobs_remaining = %d, want 0", result["done_jobs_remaining"])
	}
}

func seedInvitations(t *testing.T, dbPath string) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	err = db.UpsertCredential(ctx, &models.UserCredential{
		GitHubUserID:          42,
		GitHubLogin:           "octocat",
		AccessTokenEnc:        "enc-access",
		AccessTokenExpiresAt:  now.Add(time.Hour),
		RefreshTokenEnc:       "enc-refresh",
		RefreshTokenExpiresAt: now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("upsert credential: %v", err)
	}
	err = db.ReconcileInvitations(ctx, 42, []models.UpstreamInvitation{
		{ID: 1001, RepositoryFullName: "octo/app", InviterLogin: "hubot", CreatedAt: now},
		{ID: 1002, RepositoryFullName: "octo/lib", InviterLogin: "hubot", CreatedAt: now},
	}, `"etag-1"`)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
}

func TestInvites_ListAndIdentities(t *testing.T) {
	dbPath := tempDatabase(t)
	seedInvitations(t, dbPath)

	out, err := execute(t, dbPath, "invites", "list", "--user", "42")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, repo := range []string{"octo/app", "octo/lib"} {
		if !strings.Contains(out, repo) {
			t.Errorf("list output missing %s:\n%s", repo, out)
		}
	}

	out, err = execute(t, dbPath, "--format", "json", "invites", "identities")
	if err != nil {
		t.Fatalf("identities: %v", err)
	}
	var ids []struct {
		GitHubUserID int64 `json:"github_user_id"`
		Pending      int   `json:"pending"`
	}
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("decode identities: %v\n%s", err, out)
	}
	if len(ids) != 1 || ids[0].GitHubUserID != 42 || ids[0].Pending != 2 {
		t.Errorf("identities = %+v, want one identity 42 with 2 pending", ids)
	}

	_, err = execute(t, dbPath, "invites", "list", "--user", "42", "--status", "expired")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("invalid status: exit code = %d, want %d", GetExitCode(err), ExitCommandError)
	}
}

func TestGetExitCode(t *testing.T) {
	if got := GetExitCode(errors.New("plain")); got != ExitFailure {
		t.Errorf("plain error = %d, want %d", got, ExitFailure)
	}
	wrapped := WrapExitError(ExitCommandError, "bad input", errors.New("cause"))
	if got := GetExitCode(wrapped); got != ExitCommandError {
		t.Errorf("ExitError = %d, want %d", got, ExitCommandError)
	}
	if wrapped.Error() != "bad input: cause" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Err) {
		t.Error("ExitError should unwrap to its cause")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate(long) = %q", got)
	}
}
