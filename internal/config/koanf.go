// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/github-invite-plus/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8787,
			Timeout:           30 * time.Second,
			BaseURL:           "http://localhost:8787",
			ShutdownTimeout:   15 * time.Second,
			RequestsPerMinute: 240,
			CORSOrigins:       []string{},
		},
		GitHub: GitHubConfig{
			APIURL:         "https://api.github.com",
			OAuthURL:       "https://github.com",
			RequestTimeout: 30 * time.Second,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Webhook: WebhookConfig{
			DedupeTTL:        24 * time.Hour,
			DedupeStore:      "memory",
			DedupePath:       "./data/webhook-deliveries",
			DedupeMaxEntries: 10000,
		},
		Search: SearchConfig{
			URL:              "http://localhost:7700",
			RequestTimeout:   30 * time.Second,
			TaskPollInterval: 250 * time.Millisecond,
			TaskTimeout:      5 * time.Minute,
			IndexCacheSize:   10000,
			IndexCacheTTL:    24 * time.Hour,
		},
		Indexer: IndexerConfig{
			MaxBlobBytes:      512000,
			MaxFilesPerBranch: 20000,
			Concurrency:       6,
			BatchMaxDocs:      500,
			BatchMaxBytes:     10 * 1024 * 1024,
		},
		Worker: WorkerConfig{
			BaseInterval: 500 * time.Millisecond,
			MaxInterval:  10 * time.Second,
			MaxAttempts:  3,
			JobRetention: 7 * 24 * time.Hour,
		},
		Invites: InvitesConfig{
			PollIntervalSeconds: 180,
			Concurrency:         3,
		},
		Database: DatabaseConfig{
			Path:      "./data/gip.duckdb",
			MaxMemory: "1GB",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureBackoff:   15 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources, highest priority
// last: defaults, config file, environment.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FilePath returns the config file Load would read, or "" when none exists.
func FilePath() string {
	return findConfigFile()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"port":             "server.port",
	"http_timeout":     "server.timeout",
	"base_url":         "server.base_url",
	"shutdown_timeout": "server.shutdown_timeout",
	"api_rpm":          "server.requests_per_minute",
	"cors_origins":     "server.cors_origins",
	"api_key":          "server.api_key",

	"oauth_redirect_uri": "server.oauth_redirect_uri",

	"github_app_client_id":     "github.client_id",
	"github_app_client_secret": "github.client_secret",
	"github_api_url":           "github.api_url",
	"github_oauth_url":         "github.oauth_url",
	"github_request_timeout":   "github.request_timeout",
	"github_rate_limit_rps":    "github.rate_limit_rps",
	"github_rate_limit_burst":  "github.rate_limit_burst",

	"token_enc_key_base64": "security.token_encryption_key",

	"webhook_secret":             "webhook.secret",
	"webhook_dedupe_ttl":         "webhook.dedupe_ttl",
	"webhook_dedupe_store":       "webhook.dedupe_store",
	"webhook_dedupe_path":        "webhook.dedupe_path",
	"webhook_dedupe_max_entries": "webhook.dedupe_max_entries",

	"meili_url":                "search.url",
	"meili_master_key":         "search.master_key",
	"meili_request_timeout":    "search.request_timeout",
	"meili_task_poll_interval": "search.task_poll_interval",
	"meili_task_timeout":       "search.task_timeout",
	"meili_index_cache_size":   "search.index_cache_size",
	"meili_index_cache_ttl":    "search.index_cache_ttl",

	"max_blob_bytes":             "indexer.max_blob_bytes",
	"max_index_files_per_branch": "indexer.max_files_per_branch",
	"index_concurrency":          "indexer.concurrency",
	"index_batch_docs":           "indexer.batch_max_docs",
	"index_batch_bytes":          "indexer.batch_max_bytes",

	"worker_base_interval": "worker.base_interval",
	"worker_max_interval":  "worker.max_interval",
	"job_max_attempts":     "worker.max_attempts",
	"job_retention":        "worker.job_retention",

	"invite_poll_interval_seconds": "invites.poll_interval_seconds",
	"invite_poll_concurrency":      "invites.concurrency",

	"database_path":     "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"log_level":       "logging.level",
	"log_format":      "logging.format",
	"log_caller":      "logging.caller",
	"log_file":        "logging.file",
	"log_max_size_mb": "logging.max_size_mb",
	"log_max_backups": "logging.max_backups",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
}

// envTransformFunc transforms environment variable names to koanf paths.
//
//	MEILI_URL -> search.url
//	INDEX_CONCURRENCY -> indexer.concurrency
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. The
// caller owns synchronisation of any state it reloads.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
