// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

import (
	"bytes"
	"strings"
	"testing"
)

func TestIndexBranchPayload_EncodeIsDeterministic(t *testing.T) {
	t.Parallel()

	p := IndexBranchPayload{GitHubUserID: 1, RepoFullName: "org/repo", Branch: "main"}
	a, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := IndexBranchPayload{Branch: "main", RepoFullName: "org/repo", GitHubUserID: 1}.Encode()
	if !bytes.Equal(a, b) {
		t.Errorf("encodings differ: %s vs %s", a, b)
	}
	want := `{"githubUserId":1,"repoFullName":"org/repo","branch":"main"}`
	if string(a) != want {
		t.Errorf("Encode() = %s, want %s", a, want)
	}
}

func TestIndexBranchPayloadPrefix(t *testing.T) {
	t.Parallel()

	raw, err := IndexBranchPayload{GitHubUserID: 42, RepoFullName: "org/repo", Branch: "main"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		id   int64
		want bool
	}{
		{42, true},
		{4, false},
		{420, false},
		{-42, false},
	}
	for _, tt := range tests {
		if got := strings.HasPrefix(string(raw), IndexBranchPayloadPrefix(tt.id)); got != tt.want {
			t.Errorf("prefix(%d) matches %s = %v, want %v", tt.id, raw, got, tt.want)
		}
	}
}

func TestDecodeIndexBranchPayload(t *testing.T) {
	t.Parallel()

	if _, err := DecodeIndexBranchPayload([]byte(`{"githubUserId":1,"repoFullName":"org/repo"}`)); err == nil {
		t.Error("expected error for missing branch")
	}
	if _, err := DecodeIndexBranchPayload([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
	p, err := DecodeIndexBranchPayload([]byte(`{"githubUserId":7,"repoFullName":"a/b","branch":"dev"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.GitHubUserID != 7 || p.Branch != "dev" {
		t.Errorf("decoded %+v", p)
	}
}

func TestParseStatusFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    InvitationStatus
		wantErr bool
	}{
		{"", InvitationPending, false},
		{"all", "", false},
		{"unknown", InvitationUnknown, false},
		{"accepted", InvitationAccepted, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatusFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatusFilter(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseStatusFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()
	if JobQueued.Terminal() || JobRunning.Terminal() {
		t.Error("queued/running must not be terminal")
	}
	if !JobDone.Terminal() || !JobFailed.Terminal() {
		t.Error("done/failed must be terminal")
	}
}
