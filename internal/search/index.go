// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package search

import (
	"context"
	"fmt"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/cache"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// Meilisearch error codes this package reacts to.
const (
	codeIndexNotFound      = "index_not_found"
	codeIndexAlreadyExists = "index_already_exists"
)

// indexSettings is the configuration every identity index must carry.
var indexSettings = Settings{
	SearchableAttributes: []string{"content", "path"},
	FilterableAttributes: []string{"repo", "branch", "path"},
	SortableAttributes:   []string{},
}

// Indexes manages the per-identity indexes. The "ensured" cache is soft
// state: losing it costs one redundant create-or-configure round.
type Indexes struct {
	client  *Client
	ensured *cache.LRU[int64, struct{}]
}

// NewIndexes creates an index manager.
func NewIndexes(client *Client, cfg *config.SearchConfig) *Indexes {
	size := cfg.IndexCacheSize
	if size <= 0 {
		size = 10000
	}
	return &Indexes{
		client:  client,
		ensured: cache.NewLRU[int64, struct{}](size, cfg.IndexCacheTTL),
	}
}

// Client returns the underlying Meilisearch client.
func (x *Indexes) Client() *Client {
	return x.client
}

// Ensure makes sure the identity's index exists with the expected settings.
// An identity already in the cache only gets an existence check; if the
// index vanished the entry is dropped and the index is rebuilt.
func (x *Indexes) Ensure(ctx context.Context, githubUserID int64) error {
	name := IndexName(githubUserID)

	if _, cached := x.ensured.Get(githubUserID); cached {
		_, err := x.client.GetIndex(ctx, name)
		if err == nil {
			return nil
		}
		if !apperr.IsNotFound(err) {
			return err
		}
		x.ensured.Remove(githubUserID)
		logging.Info().Str("index", name).Msg("Cached index disappeared, recreating")
	}

	if _, err := x.client.GetIndex(ctx, name); err != nil {
		if !apperr.IsNotFound(err) {
			return err
		}
		taskUID, err := x.client.CreateIndex(ctx, name, "id")
		if err != nil {
			return err
		}
		task, err := x.client.WaitForTask(ctx, taskUID)
		if err != nil {
			return err
		}
		// A concurrent Ensure may have won the race.
		if task.Status != TaskSucceeded && !hasCode(task, codeIndexAlreadyExists) {
			return fmt.Errorf("failed to create index %s: %s %s", name, task.Status, task.ErrorMessage())
		}
	}

	taskUID, err := x.client.UpdateSettings(ctx, name, indexSettings)
	if err != nil {
		return err
	}
	task, err := x.client.WaitForTask(ctx, taskUID)
	if err != nil {
		return err
	}
	if task.Status != TaskSucceeded {
		return fmt.Errorf("failed to update index settings for %s: %s %s", name, task.Status, task.ErrorMessage())
	}

	x.ensured.Add(githubUserID, struct{}{})
	return nil
}

// Forget drops the identity from the "index ensured" cache.
func (x *Indexes) Forget(githubUserID int64) {
	x.ensured.Remove(githubUserID)
}

// IsEnsured reports whether the identity is cached as ensured.
func (x *Indexes) IsEnsured(githubUserID int64) bool {
	return x.ensured.Contains(githubUserID)
}

// DeleteByFilter removes every matching document from the identity's index
// and waits for the task. A missing index counts as success.
func (x *Indexes) DeleteByFilter(ctx context.Context, githubUserID int64, filter string) error {
	name := IndexName(githubUserID)
	taskUID, err := x.client.DeleteDocumentsByFilter(ctx, name, filter)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	task, err := x.client.WaitForTask(ctx, taskUID)
	if err != nil {
		return err
	}
	if task.Status != TaskSucceeded && !hasCode(task, codeIndexNotFound) {
		return fmt.Errorf("meilisearch delete task %d failed: %s", taskUID, task.ErrorMessage())
	}
	return nil
}

// AddDocuments enqueues an upsert batch and returns its task uid without
// waiting.
func (x *Indexes) AddDocuments(ctx context.Context, githubUserID int64, docs []models.CodeDocument) (int64, error) {
	return x.client.AddDocuments(ctx, IndexName(githubUserID), docs)
}

// WaitForTask waits for a task and fails on any non-success terminal state.
func (x *Indexes) WaitForTask(ctx context.Context, taskUID int64) error {
	task, err := x.client.WaitForTask(ctx, taskUID)
	if err != nil {
		return err
	}
	if task.Status != TaskSucceeded {
		return fmt.Errorf("meilisearch task %d failed: %s", taskUID, task.ErrorMessage())
	}
	return nil
}

// DeleteIndex drops the identity's whole index and forgets it. Deleting an
// index that does not exist succeeds.
func (x *Indexes) DeleteIndex(ctx context.Context, githubUserID int64) error {
	x.Forget(githubUserID)

	name := IndexName(githubUserID)
	taskUID, err := x.client.DeleteIndex(ctx, name)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	task, err := x.client.WaitForTask(ctx, taskUID)
	if err != nil {
		return err
	}
	if task.Status != TaskSucceeded && !hasCode(task, codeIndexNotFound) {
		return fmt.Errorf("failed to delete index %s: %s", name, task.ErrorMessage())
	}
	return nil
}

func hasCode(t *Task, code string) bool {
	return t.Error != nil && t.Error.Code == code
}
