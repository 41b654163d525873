// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("Timestamp = false, want true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("repo", "org/repo").Msg("branch indexed")

	out := buf.String()
	if !strings.Contains(out, "branch indexed") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, `"repo":"org/repo"`) {
		t.Errorf("output missing field: %s", out)
	}
}

func TestInitWithFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gip.log")

	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf, File: FileConfig{Path: path, MaxSizeMB: 1}})
	Info().Msg("mirrored")
	Init(DefaultConfig())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "mirrored") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(buf.String(), "mirrored") {
		t.Errorf("primary output missing message: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	if got := SanitizeValue("refs/heads/main\n{\"level\":\"error\"}"); strings.Contains(got, "\n") {
		t.Errorf("newline not escaped: %q", got)
	}
	long := strings.Repeat("a", 1000)
	if got := SanitizeValue(long); len(got) > maxLoggedValueLen+3 {
		t.Errorf("len = %d, want <= %d", len(got), maxLoggedValueLen+3)
	}
	if got := SanitizeValue("org/repo"); got != "org/repo" {
		t.Errorf("SanitizeValue(org/repo) = %q", got)
	}
}
