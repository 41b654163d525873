// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package config

import (
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/validation"
)

// Validate checks struct tag constraints first, then cross-field rules that
// tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateURLs(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	_, err := c.Security.EncryptionKey()
	return err
}

func (c *Config) validateURLs() error {
	checks := []struct {
		rule urlRule
		raw  string
	}{
		{urlRule{env: "GITHUB_API_URL", allowPath: true}, c.GitHub.APIURL},
		{urlRule{env: "GITHUB_OAUTH_URL"}, c.GitHub.OAuthURL},
		{urlRule{env: "MEILI_URL"}, c.Search.URL},
	}
	for _, chk := range checks {
		if err := chk.rule.check(chk.raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.MaxInterval < c.Worker.BaseInterval {
		return fmt.Errorf("WORKER_MAX_INTERVAL (%s) must be >= WORKER_BASE_INTERVAL (%s)",
			c.Worker.MaxInterval, c.Worker.BaseInterval)
	}
	if c.Indexer.BatchMaxBytes < int(c.Indexer.MaxBlobBytes) {
		return fmt.Errorf("INDEX_BATCH_BYTES (%d) must be >= MAX_BLOB_BYTES (%d)",
			c.Indexer.BatchMaxBytes, c.Indexer.MaxBlobBytes)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if c.Webhook.DedupeStore == "badger" && c.Webhook.DedupePath == "" {
		return fmt.Errorf("WEBHOOK_DEDUPE_PATH is required when WEBHOOK_DEDUPE_STORE=badger")
	}
	return nil
}

// WebhooksEnabled reports whether a webhook secret is configured. Without
// one the webhook endpoint refuses every delivery.
func (c *Config) WebhooksEnabled() bool {
	return c.Webhook.Secret != ""
}
