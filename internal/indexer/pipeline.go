// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package indexer syncs one repository branch into the identity's search
// index.
//
// A run resolves the branch head, enumerates the recursive tree, drops the
// branch's previous documents and upserts the text blobs again. Blob fetching
// uses a fixed pool of workers over a shared cursor; documents are flushed in
// batches bounded by count and bytes, and every search task is awaited before
// the branch is marked indexed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/github"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
)

const (
	defaultBatchDocs  = 500
	defaultBatchBytes = 10 << 20
)

// TokenSource returns a usable access token for an identity.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, githubUserID int64) (string, error)
}

// GitSource reads repository content.
type GitSource interface {
	GetBranchHead(ctx context.Context, token, repo, branch string) (string, error)
	GetTree(ctx context.Context, token, repo, treeSHA string) (*github.Tree, error)
	GetBlob(ctx context.Context, token, repo, blobSHA string) ([]byte, error)
}

// DocumentStore is the per-identity search index.
type DocumentStore interface {
	Ensure(ctx context.Context, githubUserID int64) error
	DeleteByFilter(ctx context.Context, githubUserID int64, filter string) error
	AddDocuments(ctx context.Context, githubUserID int64, docs []models.CodeDocument) (int64, error)
	WaitForTask(ctx context.Context, taskUID int64) error
}

// StateStore persists branch index state.
type StateStore interface {
	MarkBranchIndexing(ctx context.Context, githubUserID int64, repo, branch, headSHA string) error
	MarkBranchIndexed(ctx context.Context, githubUserID int64, repo, branch, headSHA string) error
	MarkBranchFailed(ctx context.Context, githubUserID int64, repo, branch, lastError string) error
}

// Result summarizes a successful run.
type Result struct {
	HeadSHA string
	Indexed int
	Skipped int
}

// Pipeline indexes branches.
type Pipeline struct {
	cfg    config.IndexerConfig
	tokens TokenSource
	git    GitSource
	docs   DocumentStore
	state  StateStore
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg config.IndexerConfig, tokens TokenSource, git GitSource, docs DocumentStore, state StateStore) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BatchMaxDocs < 1 {
		cfg.BatchMaxDocs = defaultBatchDocs
	}
	if cfg.BatchMaxBytes < 1 {
		cfg.BatchMaxBytes = defaultBatchBytes
	}
	return &Pipeline{cfg: cfg, tokens: tokens, git: git, docs: docs, state: state}
}

// IndexBranch runs the whole pipeline for one branch. Any failure is stored
// on the branch state and returned for the caller's retry policy.
func (p *Pipeline) IndexBranch(ctx context.Context, githubUserID int64, repo, branch string) (*Result, error) {
	start := time.Now()
	log := logging.Ctx(ctx).With().Int64("github_user_id", githubUserID).Str("repo", repo).Str("branch", branch).Logger()

	res, err := p.run(ctx, githubUserID, repo, branch)
	if err != nil {
		indexed, skipped := 0, 0
		if res != nil {
			indexed, skipped = res.Indexed, res.Skipped
		}
		metrics.RecordIndexRun(time.Since(start), indexed, skipped, err)

		// The failure must be recorded even when ctx is what failed.
		if markErr := p.state.MarkBranchFailed(context.WithoutCancel(ctx), githubUserID, repo, branch, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("Failed to record branch failure")
		}
		log.Error().Err(err).Msg("Indexing failed")
		return nil, err
	}

	metrics.RecordIndexRun(time.Since(start), res.Indexed, res.Skipped, nil)
	log.Info().
		Str("head_sha", res.HeadSHA).
		Int("indexed", res.Indexed).
		Int("skipped", res.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Indexing complete")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, githubUserID int64, repo, branch string) (*Result, error) {
	// The token comes first: a revoked identity must not get its index back.
	token, err := p.tokens.GetValidAccessToken(ctx, githubUserID)
	if err != nil {
		return nil, err
	}

	if err := p.docs.Ensure(ctx, githubUserID); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	head, err := p.git.GetBranchHead(ctx, token, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve branch head: %w", err)
	}
	if err := p.state.MarkBranchIndexing(ctx, githubUserID, repo, branch, head); err != nil {
		return nil, err
	}

	tree, err := p.git.GetTree(ctx, token, repo, head)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	if tree.Truncated {
		return nil, apperr.Truncated("repository tree is truncated, cannot index %s@%s completely", repo, branch)
	}

	blobs := make([]github.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.IsBlob() && IsProbablyText(e.Path) {
			blobs = append(blobs, e)
		}
	}
	if len(blobs) > p.cfg.MaxFilesPerBranch {
		return nil, apperr.Truncated("Too many files to index (%d blobs, max %d)", len(blobs), p.cfg.MaxFilesPerBranch)
	}

	logging.Ctx(ctx).Info().
		Int64("github_user_id", githubUserID).
		Str("repo", repo).
		Str("branch", branch).
		Int("blobs", len(blobs)).
		Msg("Indexing branch")

	if err := p.docs.DeleteByFilter(ctx, githubUserID, search.BranchFilter(repo, branch)); err != nil {
		return nil, fmt.Errorf("clear previous documents: %w", err)
	}

	f := &fetcher{p: p, githubUserID: githubUserID, token: token, repo: repo, branch: branch, blobs: blobs}
	res := &Result{HeadSHA: head}
	taskUIDs, err := f.run(ctx)
	res.Indexed, res.Skipped = int(f.indexed.Load()), int(f.skipped.Load())
	if err != nil {
		return res, err
	}

	for _, uid := range taskUIDs {
		if err := p.docs.WaitForTask(ctx, uid); err != nil {
			return res, err
		}
	}

	if err := p.state.MarkBranchIndexed(ctx, githubUserID, repo, branch, head); err != nil {
		return res, err
	}
	return res, nil
}

// fetcher is one run's blob fetch stage.
type fetcher struct {
	p            *Pipeline
	githubUserID int64
	token        string
	repo         string
	branch       string
	blobs        []github.TreeEntry

	cursor  atomic.Int64
	indexed atomic.Int64
	skipped atomic.Int64

	mu       sync.Mutex
	taskUIDs []int64
}

func (f *fetcher) run(ctx context.Context) ([]int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < f.p.cfg.Concurrency; i++ {
		g.Go(func() error { return f.work(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f.taskUIDs, nil
}

func (f *fetcher) work(ctx context.Context) error {
	var (
		batch      []models.CodeDocument
		batchBytes int
	)
	for {
		i := int(f.cursor.Add(1) - 1)
		if i >= len(f.blobs) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, ok := f.fetch(ctx, f.blobs[i])
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			f.skipped.Add(1)
			continue
		}

		batch = append(batch, doc)
		batchBytes += len(doc.Content)
		if len(batch) >= f.p.cfg.BatchMaxDocs || batchBytes >= f.p.cfg.BatchMaxBytes {
			if err := f.flush(ctx, batch); err != nil {
				return err
			}
			batch, batchBytes = nil, 0
		}
	}
	if len(batch) > 0 {
		return f.flush(ctx, batch)
	}
	return nil
}

// fetch downloads one blob; ok is false when the blob is skipped.
func (f *fetcher) fetch(ctx context.Context, e github.TreeEntry) (models.CodeDocument, bool) {
	maxBytes := f.p.cfg.MaxBlobBytes
	if e.Size > maxBytes {
		return models.CodeDocument{}, false
	}

	content, err := f.p.git.GetBlob(ctx, f.token, f.repo, e.SHA)
	if err != nil {
		if ctx.Err() == nil {
			ev := logging.Ctx(ctx).Warn()
			if errors.Is(err, apperr.ErrTransientContent) {
				ev = logging.Ctx(ctx).Debug()
			}
			ev.Err(err).Str("repo", f.repo).Str("branch", f.branch).Str("path", e.Path).Msg("Blob skipped")
		}
		return models.CodeDocument{}, false
	}
	if int64(len(content)) > maxBytes || IsBinary(content) {
		return models.CodeDocument{}, false
	}

	return models.CodeDocument{
		ID:      search.DocumentID(f.repo, f.branch, e.Path),
		Repo:    f.repo,
		Branch:  f.branch,
		Path:    e.Path,
		SHA:     e.SHA,
		Content: strings.ToValidUTF8(string(content), "�"),
	}, true
}

func (f *fetcher) flush(ctx context.Context, batch []models.CodeDocument) error {
	uid, err := f.p.docs.AddDocuments(ctx, f.githubUserID, batch)
	if err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	f.indexed.Add(int64(len(batch)))

	f.mu.Lock()
	f.taskUIDs = append(f.taskUIDs, uid)
	f.mu.Unlock()
	return nil
}
