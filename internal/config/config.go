// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package config loads and validates the runtime configuration of the sync
// engine and provides the credential encryptor used for tokens at rest.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: explicit mapping in envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	GitHub     GitHubConfig     `koanf:"github"`
	Security   SecurityConfig   `koanf:"security"`
	Webhook    WebhookConfig    `koanf:"webhook"`
	Search     SearchConfig     `koanf:"search"`
	Indexer    IndexerConfig    `koanf:"indexer"`
	Worker     WorkerConfig     `koanf:"worker"`
	Invites    InvitesConfig    `koanf:"invites"`
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// BaseURL is the externally reachable URL, used for OAuth redirects.
	BaseURL string `koanf:"base_url"`

	// ShutdownTimeout bounds graceful shutdown of the whole process.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RequestsPerMinute is the per-client API rate limit.
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=1"`

	CORSOrigins []string `koanf:"cors_origins"`

	// APIKey, when set, is required as a bearer token on per-user routes.
	// Session handling lives in front of this service.
	APIKey string `koanf:"api_key" validate:"omitempty,min=16"`

	// OAuthRedirectURI is the only redirect_uri accepted by the link flow.
	// Empty means BaseURL + "/api/v1/auth/callback".
	OAuthRedirectURI string `koanf:"oauth_redirect_uri" validate:"omitempty,url"`
}

// RedirectURI returns the OAuth redirect URI accepted by the link flow.
func (s ServerConfig) RedirectURI() string {
	if s.OAuthRedirectURI != "" {
		return s.OAuthRedirectURI
	}
	return strings.TrimSuffix(s.BaseURL, "/") + "/api/v1/auth/callback"
}

// GitHubConfig holds the GitHub App client settings.
type GitHubConfig struct {
	ClientID     string `koanf:"client_id" validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`

	// APIURL is the REST base URL (https://api.github.com).
	APIURL string `koanf:"api_url" validate:"required,http_url"`

	// OAuthURL hosts /login/oauth/access_token (https://github.com).
	OAuthURL string `koanf:"oauth_url" validate:"required,http_url"`

	// RequestTimeout applies to every upstream call.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// RateLimitRPS throttles outgoing REST calls across all identities.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"min=1"`
}

// SecurityConfig holds secrets for data at rest.
type SecurityConfig struct {
	// TokenEncryptionKey is base64 key material (at least 32 bytes decoded).
	TokenEncryptionKey string `koanf:"token_encryption_key" validate:"required,base64"`
}

// EncryptionKey decodes TokenEncryptionKey.
func (s SecurityConfig) EncryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_ENC_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) < minKeyMaterial {
		return nil, fmt.Errorf("TOKEN_ENC_KEY_BASE64 must decode to at least %d bytes, got %d", minKeyMaterial, len(key))
	}
	return key, nil
}

// WebhookConfig controls the GitHub webhook receiver.
type WebhookConfig struct {
	// Secret verifies X-Hub-Signature-256. Webhooks are refused while empty.
	Secret string `koanf:"secret" validate:"omitempty,min=20"`

	// DedupeTTL is how long a delivery id is remembered.
	DedupeTTL time.Duration `koanf:"dedupe_ttl" validate:"gt=0"`

	// DedupeStore is "memory" or "badger".
	DedupeStore string `koanf:"dedupe_store" validate:"oneof=memory badger"`
	DedupePath  string `koanf:"dedupe_path"`

	// DedupeMaxEntries bounds the memory store; the oldest claims are evicted.
	DedupeMaxEntries int `koanf:"dedupe_max_entries" validate:"gt=0"`
}

// SearchConfig holds the document store (Meilisearch) settings.
type SearchConfig struct {
	URL       string `koanf:"url" validate:"required,http_url"`
	MasterKey string `koanf:"master_key"`

	RequestTimeout   time.Duration `koanf:"request_timeout" validate:"gt=0"`
	TaskPollInterval time.Duration `koanf:"task_poll_interval" validate:"gt=0"`
	TaskTimeout      time.Duration `koanf:"task_timeout" validate:"gt=0"`

	// IndexCacheSize bounds the per-identity "index ensured" cache.
	IndexCacheSize int           `koanf:"index_cache_size" validate:"min=1"`
	IndexCacheTTL  time.Duration `koanf:"index_cache_ttl" validate:"gt=0"`
}

// IndexerConfig bounds the cost of one branch indexing run.
type IndexerConfig struct {
	MaxBlobBytes      int64 `koanf:"max_blob_bytes" validate:"min=1"`
	MaxFilesPerBranch int   `koanf:"max_files_per_branch" validate:"min=1"`
	Concurrency       int   `koanf:"concurrency" validate:"min=1,max=20"`
	BatchMaxDocs      int   `koanf:"batch_max_docs" validate:"min=1"`
	BatchMaxBytes     int   `koanf:"batch_max_bytes" validate:"min=1"`
}

// WorkerConfig holds the job scheduler policy.
type WorkerConfig struct {
	BaseInterval time.Duration `koanf:"base_interval" validate:"gt=0"`
	MaxInterval  time.Duration `koanf:"max_interval" validate:"gt=0"`
	MaxAttempts  int           `koanf:"max_attempts" validate:"min=1"`

	// JobRetention is how long done jobs are kept before cleanup.
	JobRetention time.Duration `koanf:"job_retention" validate:"gt=0"`
}

// InvitesConfig holds the invitation reconciler policy.
type InvitesConfig struct {
	PollIntervalSeconds int `koanf:"poll_interval_seconds" validate:"min=30"`
	Concurrency         int `koanf:"concurrency" validate:"min=1,max=20"`
}

// PollInterval returns the reconcile period.
func (c InvitesConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file, or ":memory:" for tests.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
}

// Load loads configuration from defaults, file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
