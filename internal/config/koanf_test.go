// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GITHUB_APP_CLIENT_ID", "Iv1.abc")
	t.Setenv("GITHUB_APP_CLIENT_SECRET", "secret")
	t.Setenv("TOKEN_ENC_KEY_BASE64", testKey)
}

func TestLoadWithKoanf_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Indexer.Concurrency != 6 {
		t.Errorf("Indexer.Concurrency = %d, want 6", cfg.Indexer.Concurrency)
	}
	if cfg.Indexer.MaxBlobBytes != 512000 {
		t.Errorf("Indexer.MaxBlobBytes = %d, want 512000", cfg.Indexer.MaxBlobBytes)
	}
	if cfg.Worker.BaseInterval != 500*time.Millisecond || cfg.Worker.MaxInterval != 10*time.Second {
		t.Errorf("Worker intervals = %v/%v, want 500ms/10s", cfg.Worker.BaseInterval, cfg.Worker.MaxInterval)
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("Worker.MaxAttempts = %d, want 3", cfg.Worker.MaxAttempts)
	}
	if got := cfg.Invites.PollInterval(); got != 180*time.Second {
		t.Errorf("Invites.PollInterval() = %v, want 3m0s", got)
	}
	if cfg.Search.URL != "http://localhost:7700" {
		t.Errorf("Search.URL = %s, want http://localhost:7700", cfg.Search.URL)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("INDEX_CONCURRENCY", "4")
	t.Setenv("MAX_BLOB_BYTES", "1024")
	t.Setenv("WORKER_MAX_INTERVAL", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MEILI_URL", "http://meili:7700")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Indexer.Concurrency != 4 {
		t.Errorf("Indexer.Concurrency = %d, want 4", cfg.Indexer.Concurrency)
	}
	if cfg.Indexer.MaxBlobBytes != 1024 {
		t.Errorf("Indexer.MaxBlobBytes = %d, want 1024", cfg.Indexer.MaxBlobBytes)
	}
	if cfg.Worker.MaxInterval != 30*time.Second {
		t.Errorf("Worker.MaxInterval = %v, want 30s", cfg.Worker.MaxInterval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Search.URL != "http://meili:7700" {
		t.Errorf("Search.URL = %s", cfg.Search.URL)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "indexer:\n  max_files_per_branch: 100\ninvites:\n  poll_interval_seconds: 60\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	if got := FilePath(); got != path {
		t.Errorf("FilePath() = %q, want %q", got, path)
	}

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Indexer.MaxFilesPerBranch != 100 {
		t.Errorf("Indexer.MaxFilesPerBranch = %d, want 100", cfg.Indexer.MaxFilesPerBranch)
	}
	if cfg.Invites.PollIntervalSeconds != 60 {
		t.Errorf("Invites.PollIntervalSeconds = %d, want 60", cfg.Invites.PollIntervalSeconds)
	}
}

func TestLoadWithKoanf_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"concurrency above max", map[string]string{"INDEX_CONCURRENCY": "21"}, "Concurrency"},
		{"poll interval below min", map[string]string{"INVITE_POLL_INTERVAL_SECONDS": "5"}, "PollIntervalSeconds"},
		{"short webhook secret", map[string]string{"WEBHOOK_SECRET": "short"}, "Secret"},
		{"short key", map[string]string{"TOKEN_ENC_KEY_BASE64": base64.StdEncoding.EncodeToString([]byte("short"))}, "at least 32 bytes"},
		{"inverted intervals", map[string]string{"WORKER_MAX_INTERVAL": "100ms"}, "WORKER_MAX_INTERVAL"},
		{"meili url with path", map[string]string{"MEILI_URL": "http://meili:7700/x"}, "MEILI_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"MEILI_URL":                    "search.url",
		"INVITE_POLL_INTERVAL_SECONDS": "invites.poll_interval_seconds",
		"TOKEN_ENC_KEY_BASE64":         "security.token_encryption_key",
		"HOME":                         "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestServerConfig_RedirectURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"derived from base url", ServerConfig{BaseURL: "https://gip.example/"}, "https://gip.example/api/v1/auth/callback"},
		{"explicit", ServerConfig{BaseURL: "https://gip.example", OAuthRedirectURI: "https://app.example/cb"}, "https://app.example/cb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.RedirectURI(); got != tt.want {
				t.Errorf("RedirectURI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestURLRule(t *testing.T) {
	tests := []struct {
		rule    urlRule
		raw     string
		wantErr bool
	}{
		{urlRule{env: "MEILI_URL"}, "http://meili:7700", false},
		{urlRule{env: "MEILI_URL"}, "http://meili:7700/", false},
		{urlRule{env: "MEILI_URL"}, "http://meili:7700/x", true},
		{urlRule{env: "MEILI_URL"}, "ftp://meili:7700", true},
		{urlRule{env: "MEILI_URL"}, "http://", true},
		{urlRule{env: "GITHUB_API_URL", allowPath: true}, "https://ghe.example.com/api/v3", false},
		{urlRule{env: "GITHUB_API_URL", allowPath: true}, "https://api.github.com?x=1", true},
		{urlRule{env: "GITHUB_OAUTH_URL"}, "https://github.com#frag", true},
	}
	for _, tt := range tests {
		err := tt.rule.check(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s check(%q) = %v, wantErr %v", tt.rule.env, tt.raw, err, tt.wantErr)
		}
		if err != nil && !strings.Contains(err.Error(), tt.rule.env) {
			t.Errorf("error %q does not name %s", err, tt.rule.env)
		}
	}
}
