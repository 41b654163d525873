// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/database/dbtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/github/githubtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/invites"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/search/searchtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/tokens"
	"github.com/SuperSonnix71/github-invite-plus/internal/webhooks"
	"github.com/SuperSonnix71/github-invite-plus/internal/worker"
)

const (
	testAPIKey        = "test-api-key-0123456789"
	testWebhookSecret = "test-webhook-secret-0123"
	testUserAgent     = "gip-test/1.0"
)

type apiFixture struct {
	server *httptest.Server
	cfg    *config.Config
	db     *database.DB
	gh     *githubtest.Server
	meili  *searchtest.Server
	tok    *tokens.Manager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gh := githubtest.NewServer()
	t.Cleanup(gh.Close)
	meili := searchtest.NewServer()
	t.Cleanup(meili.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL:           "http://localhost:8787",
			RequestsPerMinute: 10000,
			APIKey:            testAPIKey,
			OAuthRedirectURI:  gh.URL + "/callback",
		},
		Webhook: config.WebhookConfig{Secret: testWebhookSecret, DedupeTTL: time.Hour},
		Search: config.SearchConfig{
			URL:              meili.URL,
			RequestTimeout:   5 * time.Second,
			TaskPollInterval: 5 * time.Millisecond,
			TaskTimeout:      5 * time.Second,
			IndexCacheSize:   10,
			IndexCacheTTL:    time.Hour,
		},
	}

	cipher, err := config.NewCredentialEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	db := dbtest.New(t)
	client := gh.Client()
	tok := tokens.NewManager(db, client, cipher)
	searchClient := search.NewClient(&cfg.Search)
	indexes := search.NewIndexes(searchClient, &cfg.Search)
	jobs := worker.NewEnqueuer(db, 3)

	handler := NewHandler(cfg, Dependencies{
		Store:       db,
		Invitations: invites.NewService(db, client, tok),
		Jobs:        jobs,
		Search:      search.NewService(indexes),
		SearchLive:  searchClient,
		OAuth:       client,
		Tokens:      tok,
		Reactor:     webhooks.NewReactor(db, indexes, jobs),
		Deliveries:  webhooks.NewMemoryTracker(100, time.Hour),
	})
	server := httptest.NewServer(NewRouter(cfg, handler).SetupChi())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, cfg: cfg, db: db, gh: gh, meili: meili, tok: tok}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if resp.Header.Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, envelope
}

// user calls a per-user route with the API key.
func (f *apiFixture) user(t *testing.T, method, path string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()
	return f.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + testAPIKey})
}

func (f *apiFixture) linkUser(t *testing.T, id int64, access string) {
	t.Helper()
	f.gh.AddUser(id, "user", access, "")
	err := f.tok.Link(context.Background(), id, "user", &models.TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  time.Now().Add(24 * time.Hour),
		RefreshToken:          "refresh-" + access,
		RefreshTokenExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

// decodeData re-decodes the envelope payload into dst.
func decodeData(t *testing.T, env APIResponse, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp, env := f.do(t, http.MethodGet, "/api/v1/health/live", nil, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("live = %d %+v", resp.StatusCode, env)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/health/ready", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d, want 200", resp.StatusCode)
	}

	f.meili.SetHealthy(false)
	resp, env = f.do(t, http.MethodGet, "/api/v1/health/ready", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready with search down = %d, want 503", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestUserRoutesRequireAPIKey(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/users/1/branches", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without key = %d, want 401", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/v1/users/1/branches", nil, map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", resp.StatusCode)
	}
	resp, _ = f.user(t, http.MethodGet, "/api/v1/users/1/branches", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with key = %d, want 200", resp.StatusCode)
	}
}

func TestIndexBranch(t *testing.T) {
	f := newAPIFixture(t)
	body := IndexBranchRequest{Repo: "octo/app", Branch: "feature/x"}

	resp, env := f.user(t, http.MethodPost, "/api/v1/users/42/index", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%+v)", resp.StatusCode, env.Error)
	}
	var first IndexBranchResponse
	decodeData(t, env, &first)
	if first.JobID == "" || !first.Created {
		t.Errorf("first enqueue = %+v", first)
	}

	_, env = f.user(t, http.MethodPost, "/api/v1/users/42/index", body)
	var second IndexBranchResponse
	decodeData(t, env, &second)
	if second.JobID != first.JobID || second.Created {
		t.Errorf("second enqueue = %+v, want same job not created", second)
	}

	configs, err := f.db.ListRepoIndexConfigs(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 1 || configs[0].BranchPattern != "feature/x" {
		t.Errorf("index configs = %+v", configs)
	}

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"bad repo", "/api/v1/users/42/index", IndexBranchRequest{Repo: "no-slash", Branch: "main"}, http.StatusBadRequest},
		{"bad branch", "/api/v1/users/42/index", IndexBranchRequest{Repo: "octo/app", Branch: "a..b"}, http.StatusBadRequest},
		{"missing fields", "/api/v1/users/42/index", map[string]string{}, http.StatusBadRequest},
		{"not json", "/api/v1/users/42/index", []byte("{"), http.StatusBadRequest},
		{"bad user", "/api/v1/users/abc/index", body, http.StatusBadRequest},
		{"zero user", "/api/v1/users/0/index", body, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := f.user(t, http.MethodPost, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestListBranches(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	for _, b := range []string{"main", "dev"} {
		if err := f.db.MarkBranchIndexing(ctx, 42, "octo/app", b, "sha-"+b); err != nil {
			t.Fatal(err)
		}
		if err := f.db.MarkBranchIndexed(ctx, 42, "octo/app", b, "sha-"+b); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.db.MarkBranchIndexing(ctx, 42, "octo/other", "main", "sha-other"); err != nil {
		t.Fatal(err)
	}
	if err := f.db.MarkBranchFailed(ctx, 42, "octo/other", "main", "boom"); err != nil {
		t.Fatal(err)
	}

	_, env := f.user(t, http.MethodGet, "/api/v1/users/42/branches", nil)
	var all []models.BranchIndexState
	decodeData(t, env, &all)
	if len(all) != 3 {
		t.Errorf("branches = %d, want 3", len(all))
	}

	_, env = f.user(t, http.MethodGet, "/api/v1/users/42/branches?repo=octo/app&limit=1", nil)
	var page []models.BranchIndexState
	decodeData(t, env, &page)
	if len(page) != 1 || page[0].RepoFullName != "octo/app" {
		t.Errorf("filtered page = %+v", page)
	}
	if env.Meta == nil || env.Meta.Pagination == nil || !env.Meta.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Meta)
	}

	resp, _ := f.user(t, http.MethodGet, "/api/v1/users/42/branches?repo=bad", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad repo = %d, want 400", resp.StatusCode)
	}
}

func TestInvitations(t *testing.T) {
	f := newAPIFixture(t)
	f.linkUser(t, 42, "tok-42")
	f.gh.SetInvitations(42,
		githubtest.Invitation{ID: 10, Repo: "octo/app", Inviter: "boss", CreatedAt: time.Now().Add(-time.Hour)},
		githubtest.Invitation{ID: 11, Repo: "octo/lib", Inviter: "boss", CreatedAt: time.Now()},
	)

	resp, env := f.user(t, http.MethodPost, "/api/v1/users/42/invitations/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh = %d (%+v)", resp.StatusCode, env.Error)
	}
	var refreshed RefreshResult
	decodeData(t, env, &refreshed)
	if refreshed.Pending != 2 {
		t.Errorf("pending = %d, want 2", refreshed.Pending)
	}

	_, env = f.user(t, http.MethodGet, "/api/v1/users/42/invitations", nil)
	var pending []models.Invitation
	decodeData(t, env, &pending)
	if len(pending) != 2 || pending[0].InviteID != 11 {
		t.Errorf("pending list = %+v, want newest first", pending)
	}

	resp, _ = f.user(t, http.MethodPost, "/api/v1/users/42/invitations/10/accept", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("accept = %d", resp.StatusCode)
	}
	resp, _ = f.user(t, http.MethodPost, "/api/v1/users/42/invitations/11/decline", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("decline = %d", resp.StatusCode)
	}
	if got := f.gh.Decisions(); len(got) != 2 {
		t.Errorf("upstream decisions = %v", got)
	}

	_, env = f.user(t, http.MethodGet, "/api/v1/users/42/invitations?status=accepted", nil)
	var accepted []models.Invitation
	decodeData(t, env, &accepted)
	if len(accepted) != 1 || accepted[0].InviteID != 10 {
		t.Errorf("accepted = %+v", accepted)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
		code   string
	}{
		{"unknown invitation", http.MethodPost, "/api/v1/users/42/invitations/999/accept", http.StatusNotFound, ErrCodeNotFound},
		{"bad invitation id", http.MethodPost, "/api/v1/users/42/invitations/x/accept", http.StatusBadRequest, ErrCodeBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/users/42/invitations?status=bogus", http.StatusBadRequest, ErrCodeBadRequest},
		{"unlinked identity", http.MethodPost, "/api/v1/users/7/invitations/refresh", http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := f.user(t, tt.method, tt.path, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestInvitations_UpstreamRejected(t *testing.T) {
	f := newAPIFixture(t)
	f.linkUser(t, 42, "tok-42")
	f.gh.RevokeAccessToken("tok-42")

	resp, env := f.user(t, http.MethodPost, "/api/v1/users/42/invitations/refresh", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeExternalServiceFail {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestSearch(t *testing.T) {
	f := newAPIFixture(t)
	for _, d := range []models.CodeDocument{
		{Repo: "octo/app", Branch: "main", Path: "main.go", Content: "func Hello() {}"},
		{Repo: "octo/app", Branch: "dev", Path: "dev.go", Content: "func Hello() { dev() }"},
		{Repo: "octo/lib", Branch: "main", Path: "lib.go", Content: "func Hello() {}"},
	} {
		d.ID = search.DocumentID(d.Repo, d.Branch, d.Path)
		f.meili.Seed(search.IndexName(42), d)
	}

	_, env := f.user(t, http.MethodGet, "/api/v1/users/42/search?repo=octo/app&q=Hello", nil)
	var result models.SearchResult
	decodeData(t, env, &result)
	if len(result.Hits) != 2 {
		t.Errorf("hits = %+v, want 2 in octo/app", result.Hits)
	}

	_, env = f.user(t, http.MethodGet, "/api/v1/users/42/search?repo=octo/app&q=Hello&branches=dev", nil)
	decodeData(t, env, &result)
	if len(result.Hits) != 1 || result.Hits[0].Branch != "dev" {
		t.Errorf("branch filtered hits = %+v", result.Hits)
	}
	if !bytes.Contains([]byte(result.Hits[0].Snippet), []byte("<mark>Hello</mark>")) {
		t.Errorf("snippet = %q, want highlight", result.Hits[0].Snippet)
	}

	for _, path := range []string{
		"/api/v1/users/42/search?repo=octo/app",
		"/api/v1/users/42/search?q=Hello",
		"/api/v1/users/42/search?repo=octo/app&q=Hello&branches=a..b",
		"/api/v1/users/42/search?repo=octo/app&q=Hello&limit=500",
	} {
		resp, env := f.user(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
			t.Errorf("%s = %d %+v, want 400 VALIDATION_FAILED", path, resp.StatusCode, env.Error)
		}
	}
}

func TestSearchURL(t *testing.T) {
	f := newAPIFixture(t)
	_, env := f.user(t, http.MethodGet, "/api/v1/search/url?repo=octo/app&q=Hello&branch=dev", nil)
	var out map[string]string
	decodeData(t, env, &out)
	want := "https://github.com/search?q=repo%3Aocto%2Fapp+Hello&ref=dev&type=code"
	if out["url"] != want {
		t.Errorf("url = %q, want %q", out["url"], want)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	f := newAPIFixture(t)
	resp, env := f.do(t, http.MethodGet, "/api/v1/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound || env.Success || env.Error.Code != ErrCodeNotFound {
		t.Errorf("not found = %d %+v", resp.StatusCode, env)
	}
}
