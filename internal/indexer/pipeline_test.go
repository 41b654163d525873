// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package indexer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/database/dbtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/github/githubtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/indexer"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/search/searchtest"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetValidAccessToken(context.Context, int64) (string, error) {
	return s.token, s.err
}

type harness struct {
	pipeline *indexer.Pipeline
	gh       *githubtest.Server
	meili    *searchtest.Server
	db       *database.DB
}

func testIndexerConfig() config.IndexerConfig {
	return config.IndexerConfig{
		MaxBlobBytes:      1024,
		MaxFilesPerBranch: 100,
		Concurrency:       3,
		BatchMaxDocs:      500,
		BatchMaxBytes:     10 << 20,
	}
}

func newHarness(t *testing.T, cfg config.IndexerConfig, tokens indexer.TokenSource) *harness {
	t.Helper()

	gh := githubtest.NewServer()
	t.Cleanup(gh.Close)
	gh.AddUser(1, "octocat", "tok", "")

	meili := searchtest.NewServer()
	t.Cleanup(meili.Close)
	searchCfg := &config.SearchConfig{
		URL:              meili.URL,
		RequestTimeout:   5 * time.Second,
		TaskPollInterval: 5 * time.Millisecond,
		TaskTimeout:      5 * time.Second,
		IndexCacheSize:   10,
		IndexCacheTTL:    time.Hour,
	}
	indexes := search.NewIndexes(search.NewClient(searchCfg), searchCfg)

	db := dbtest.New(t)
	if tokens == nil {
		tokens = staticTokens{token: "tok"}
	}
	return &harness{
		pipeline: indexer.NewPipeline(cfg, tokens, gh.Client(), indexes, db),
		gh:       gh,
		meili:    meili,
		db:       db,
	}
}

func (h *harness) state(t *testing.T, repo, branch string) *models.BranchIndexState {
	t.Helper()
	st, err := h.db.GetBranchState(context.Background(), 1, repo, branch)
	if err != nil {
		t.Fatalf("GetBranchState() error = %v", err)
	}
	return st
}

func docPaths(docs []models.CodeDocument) []string {
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	return paths
}

func TestIndexBranch_SkipsBinaryAndIndexesText(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	h.gh.AddBranch("org/repo", "main", "abc123",
		githubtest.File{Path: "src/main.go", Content: []byte("package main\n\nfunc main() {}\n")},
		githubtest.File{Path: "README", Content: []byte("hello")},
		githubtest.File{Path: "assets/data.dat", Content: []byte("DAT\x00\x01\x02")},
		githubtest.File{Path: "logo.png", Content: []byte("not fetched")},
	)

	res, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if err != nil {
		t.Fatalf("IndexBranch() error = %v", err)
	}
	if res.HeadSHA != "abc123" || res.Indexed != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v, want head abc123, 2 indexed, 1 skipped", res)
	}

	docs := h.meili.Documents("code_u_1")
	if len(docs) != 2 {
		t.Fatalf("documents = %v, want 2", docPaths(docs))
	}
	for _, d := range docs {
		if d.Repo != "org/repo" || d.Branch != "main" {
			t.Errorf("doc %s has repo=%s branch=%s", d.Path, d.Repo, d.Branch)
		}
		if d.Path == "assets/data.dat" || d.Path == "logo.png" {
			t.Errorf("binary %s was indexed", d.Path)
		}
	}

	st := h.state(t, "org/repo", "main")
	if st.Status != models.BranchIndexed || st.HeadSHA != "abc123" || st.LastError != "" {
		t.Errorf("state = %+v, want indexed at abc123", st)
	}
	if got := h.gh.Calls("blob"); got != 3 {
		t.Errorf("blob fetches = %d, want 3 (png filtered by extension)", got)
	}
}

func TestIndexBranch_ReindexDoesNotDuplicate(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	ctx := context.Background()
	files := []githubtest.File{
		{Path: "a.go", Content: []byte("package a")},
		{Path: "b.go", Content: []byte("package b")},
	}
	h.gh.AddBranch("org/repo", "main", "c1", files...)

	for i := 0; i < 2; i++ {
		if _, err := h.pipeline.IndexBranch(ctx, 1, "org/repo", "main"); err != nil {
			t.Fatalf("run %d error = %v", i, err)
		}
	}
	if got := len(h.meili.Documents("code_u_1")); got != 2 {
		t.Errorf("documents after two runs = %d, want 2", got)
	}

	// A file removed upstream disappears on the next run.
	h.gh.AddBranch("org/repo", "main", "c2", files[0])
	if _, err := h.pipeline.IndexBranch(ctx, 1, "org/repo", "main"); err != nil {
		t.Fatal(err)
	}
	docs := h.meili.Documents("code_u_1")
	if len(docs) != 1 || docs[0].Path != "a.go" {
		t.Errorf("documents = %v, want [a.go]", docPaths(docs))
	}
	if st := h.state(t, "org/repo", "main"); st.HeadSHA != "c2" {
		t.Errorf("head = %s, want c2", st.HeadSHA)
	}
}

func TestIndexBranch_OtherBranchesUntouched(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	h.meili.Seed("code_u_1", models.CodeDocument{ID: "keep", Repo: "org/repo", Branch: "dev", Path: "dev.go"})
	h.gh.AddBranch("org/repo", "main", "c1", githubtest.File{Path: "a.go", Content: []byte("package a")})

	if _, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main"); err != nil {
		t.Fatal(err)
	}
	if got := len(h.meili.Documents("code_u_1")); got != 2 {
		t.Errorf("documents = %d, want 2", got)
	}
}

func TestIndexBranch_TruncatedTree(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	h.gh.AddBranch("org/repo", "main", "abc123", githubtest.File{Path: "a.go", Content: []byte("package a")})
	h.gh.SetTruncated("org/repo", "abc123", true)

	_, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if !errors.Is(err, apperr.ErrTruncatedOrOversized) {
		t.Fatalf("err = %v, want ErrTruncatedOrOversized", err)
	}

	st := h.state(t, "org/repo", "main")
	if st.Status != models.BranchFailed || !strings.Contains(st.LastError, "truncated") {
		t.Errorf("state = %+v, want failed with truncation message", st)
	}
	if got := h.gh.Calls("blob"); got != 0 {
		t.Errorf("blob fetches = %d, want 0", got)
	}
}

func TestIndexBranch_FileCountCeiling(t *testing.T) {
	cfg := testIndexerConfig()
	cfg.MaxFilesPerBranch = 2
	h := newHarness(t, cfg, nil)
	h.gh.AddBranch("org/repo", "main", "c1",
		githubtest.File{Path: "a.go", Content: []byte("a")},
		githubtest.File{Path: "b.go", Content: []byte("b")},
		githubtest.File{Path: "c.go", Content: []byte("c")},
		githubtest.File{Path: "d.png", Content: []byte("d")},
	)

	_, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if !errors.Is(err, apperr.ErrTruncatedOrOversized) {
		t.Fatalf("err = %v, want ErrTruncatedOrOversized", err)
	}
	if want := "Too many files to index (3 blobs, max 2)"; !strings.Contains(err.Error(), want) {
		t.Errorf("err = %q, want it to mention %q", err, want)
	}
	if got := h.gh.Calls("blob"); got != 0 {
		t.Errorf("blob fetches = %d, want 0", got)
	}
	if got := h.meili.TaskCount(searchtest.TaskDocumentDelete); got != 0 {
		t.Errorf("delete tasks = %d, want 0", got)
	}
}

func TestIndexBranch_SkipsOversizedAndUnreadableBlobs(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	h.gh.AddBranch("org/repo", "main", "c1",
		githubtest.File{Path: "ok.go", Content: []byte("package ok")},
		githubtest.File{Path: "huge.sql", Content: []byte("--"), Size: 1 << 20},
		githubtest.File{Path: "big.txt", Content: []byte(strings.Repeat("x", 2048))},
		githubtest.File{Path: "odd.txt", Content: []byte("x"), Encoding: "utf-8"},
	)

	res, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if err != nil {
		t.Fatalf("IndexBranch() error = %v", err)
	}
	if res.Indexed != 1 || res.Skipped != 3 {
		t.Errorf("result = %+v, want 1 indexed, 3 skipped", res)
	}
	if st := h.state(t, "org/repo", "main"); st.Status != models.BranchIndexed {
		t.Errorf("status = %s, want indexed", st.Status)
	}
}

func TestIndexBranch_BatchesUpserts(t *testing.T) {
	cfg := testIndexerConfig()
	cfg.BatchMaxDocs = 2
	cfg.Concurrency = 1
	h := newHarness(t, cfg, nil)

	var files []githubtest.File
	for i := 0; i < 5; i++ {
		files = append(files, githubtest.File{Path: fmt.Sprintf("f%d.go", i), Content: []byte(fmt.Sprintf("package f%d", i))})
	}
	h.gh.AddBranch("org/repo", "main", "c1", files...)

	res, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if err != nil {
		t.Fatal(err)
	}
	if res.Indexed != 5 {
		t.Errorf("indexed = %d, want 5", res.Indexed)
	}
	if got := h.meili.TaskCount(searchtest.TaskDocumentAdd); got != 3 {
		t.Errorf("upsert batches = %d, want 3", got)
	}
	if got := len(h.meili.Documents("code_u_1")); got != 5 {
		t.Errorf("documents = %d, want 5", got)
	}
}

func TestIndexBranch_FailedUpsertTaskFailsBranch(t *testing.T) {
	h := newHarness(t, testIndexerConfig(), nil)
	h.gh.AddBranch("org/repo", "main", "c1", githubtest.File{Path: "a.go", Content: []byte("package a")})
	h.meili.FailNext(searchtest.TaskDocumentAdd, "payload too large")

	_, err := h.pipeline.IndexBranch(context.Background(), 1, "org/repo", "main")
	if err == nil || !strings.Contains(err.Error(), "payload too large") {
		t.Fatalf("err = %v, want task failure", err)
	}
	st := h.state(t, "org/repo", "main")
	if st.Status != models.BranchFailed || !strings.Contains(st.LastError, "payload too large") {
		t.Errorf("state = %+v, want failed", st)
	}
}

func TestIndexBranch_TokenFailureRecorded(t *testing.T) {
	ctx := context.Background()

	t.Run("prior row is marked failed", func(t *testing.T) {
		h := newHarness(t, testIndexerConfig(), staticTokens{err: apperr.ErrReauthRequired})
		if err := h.db.MarkBranchIndexing(ctx, 1, "org/repo", "main", "abc"); err != nil {
			t.Fatal(err)
		}

		_, err := h.pipeline.IndexBranch(ctx, 1, "org/repo", "main")
		if !errors.Is(err, apperr.ErrReauthRequired) {
			t.Fatalf("err = %v, want ErrReauthRequired", err)
		}
		if st := h.state(t, "org/repo", "main"); st.Status != models.BranchFailed || st.HeadSHA != "abc" {
			t.Errorf("state = %+v, want failed@abc", st)
		}
	})

	t.Run("no row or index is created", func(t *testing.T) {
		h := newHarness(t, testIndexerConfig(), staticTokens{err: apperr.ErrReauthRequired})

		_, err := h.pipeline.IndexBranch(ctx, 1, "org/repo", "main")
		if !errors.Is(err, apperr.ErrReauthRequired) {
			t.Fatalf("err = %v, want ErrReauthRequired", err)
		}
		if st, err := h.db.GetBranchState(ctx, 1, "org/repo", "main"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("GetBranchState() = %+v, %v; want ErrNotFound", st, err)
		}
		if h.meili.HasIndex(search.IndexName(1)) {
			t.Error("index created for an identity without a usable token")
		}
	})
}

func TestIndexBranch_MissingBranch(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, testIndexerConfig(), nil)
	if err := h.db.MarkBranchIndexing(ctx, 1, "org/repo", "gone", "old"); err != nil {
		t.Fatal(err)
	}
	_, err := h.pipeline.IndexBranch(ctx, 1, "org/repo", "gone")
	if !apperr.IsNotFound(err) {
		t.Fatalf("err = %v, want upstream 404", err)
	}
	if st := h.state(t, "org/repo", "gone"); st.Status != models.BranchFailed {
		t.Errorf("status = %s, want failed", st.Status)
	}

	_, err = h.pipeline.IndexBranch(ctx, 1, "org/repo", "never")
	if !apperr.IsNotFound(err) {
		t.Fatalf("err = %v, want upstream 404", err)
	}
	if _, err := h.db.GetBranchState(ctx, 1, "org/repo", "never"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetBranchState(never) = %v, want ErrNotFound", err)
	}
}
