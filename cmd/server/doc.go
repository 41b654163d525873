// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package main is the github-invite-plus server.

The server keeps each linked GitHub identity's pending repository
invitations in sync, indexes chosen branches into Meilisearch for code
search, and reacts to GitHub webhooks.

# Application Architecture

	RootSupervisor ("github-invite-plus")
	├── DataSupervisor ("data-layer")
	│   └── delivery-gc (WEBHOOK_DEDUPE_STORE=badger only)
	├── BackgroundSupervisor ("background-layer")
	│   ├── worker-scheduler (index_branch jobs from DuckDB)
	│   └── invite-reconciler (every INVITE_POLL_INTERVAL_SECONDS)
	└── APISupervisor ("api-layer")
	    └── http-server

Startup order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, optional lumberjack file sink
 3. Database: DuckDB, then requeue of jobs left running by a crash
 4. GitHub client, token manager, Meilisearch client
 5. Invitation service and reconciler, indexing pipeline and scheduler
 6. Webhook delivery store and reactor
 7. HTTP router, then the supervisor tree

# Configuration

Required:
  - GITHUB_APP_CLIENT_ID, GITHUB_APP_CLIENT_SECRET
  - TOKEN_ENC_KEY_BASE64: base64 key material, at least 32 bytes decoded
  - MEILI_URL (default http://localhost:7700), MEILI_MASTER_KEY

Common:
  - PORT, HTTP_HOST, BASE_URL, OAUTH_REDIRECT_URI
  - API_KEY: bearer token for /api/v1/users/... routes
  - WEBHOOK_SECRET: enables X-Hub-Signature-256 verification
  - WEBHOOK_DEDUPE_STORE: memory or badger (WEBHOOK_DEDUPE_PATH)
  - INVITE_POLL_INTERVAL_SECONDS (default 180), INVITE_POLL_CONCURRENCY (3)
  - MAX_BLOB_BYTES, MAX_INDEX_FILES_PER_BRANCH, INDEX_CONCURRENCY
  - DATABASE_PATH, LOG_LEVEL, LOG_FORMAT, LOG_FILE

With a config file present, changes to logging.level apply without a
restart.

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains for
SHUTDOWN_TIMEOUT, the scheduler and reconciler finish their in-flight tick,
and the database closes last.

# Example Usage

	export GITHUB_APP_CLIENT_ID=Iv1.example
	export GITHUB_APP_CLIENT_SECRET=...
	export TOKEN_ENC_KEY_BASE64=$(openssl rand -base64 32)
	export MEILI_MASTER_KEY=...
	export API_KEY=$(openssl rand -hex 24)
	./github-invite-plus
*/
package main
