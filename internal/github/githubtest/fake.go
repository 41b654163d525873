// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package githubtest provides an in-memory GitHub API for tests.
//
// It serves the REST and OAuth endpoints the github package calls. Access
// tokens are registered per user; repository endpoints reject unknown tokens
// with 401 like the real API.
package githubtest

import (
	"crypto/sha1" //nolint:gosec // fake object ids
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/github"
)

// File is one blob in a fake repository.
type File struct {
	Path    string
	Content []byte

	// Size overrides the tree entry size when non-zero.
	Size int64

	// Encoding overrides the blob encoding ("base64" by default).
	Encoding string
}

// Invitation is a pending repository invitation.
type Invitation struct {
	ID        int64
	Repo      string
	Inviter   string
	CreatedAt time.Time
}

type user struct {
	id          int64
	login       string
	invitations []Invitation
}

type tree struct {
	entries   []map[string]any
	truncated bool
}

type blob struct {
	content  []byte
	encoding string
}

// Server is a fake GitHub.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[int64]*user
	accessTokens  map[string]int64
	refreshTokens map[string]int64
	codes         map[string]int64
	heads         map[string]string // repo + "@" + branch -> sha
	trees         map[string]*tree  // repo + "@" + sha
	blobs         map[string]blob   // sha
	failures      map[string]int    // path prefix -> status
	calls         map[string]int
	decisions     []string
	refreshDelay  time.Duration
	keepRefresh   bool
	issued        int
}

// NewServer starts a fake GitHub; callers close it.
func NewServer() *Server {
	s := &Server{
		users:         make(map[int64]*user),
		accessTokens:  make(map[string]int64),
		refreshTokens: make(map[string]int64),
		codes:         make(map[string]int64),
		heads:         make(map[string]string),
		trees:         make(map[string]*tree),
		blobs:         make(map[string]blob),
		failures:      make(map[string]int),
		calls:         make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", s.handleToken)
	mux.HandleFunc("GET /user", s.handleUser)
	mux.HandleFunc("GET /user/repository_invitations", s.handleListInvitations)
	mux.HandleFunc("PATCH /user/repository_invitations/{id}", s.handleDecision("accepted"))
	mux.HandleFunc("DELETE /user/repository_invitations/{id}", s.handleDecision("declined"))
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/heads/{branch...}", s.handleRef)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/trees/{sha}", s.handleTree)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/blobs/{sha}", s.handleBlob)

	s.Server = httptest.NewServer(s.withFailures(mux))
	return s
}

// Config returns client settings pointing at the fake.
func (s *Server) Config() *config.GitHubConfig {
	return &config.GitHubConfig{
		ClientID:       "test-client",
		ClientSecret:   "test-secret",
		APIURL:         s.URL,
		OAuthURL:       s.URL,
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

// Client returns a github.Client talking to the fake.
func (s *Server) Client() *github.Client {
	return github.NewClient(s.Config(), s.URL+"/callback")
}

// AddUser registers an identity with a valid token pair.
func (s *Server) AddUser(id int64, login, accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		s.users[id] = &user{id: id, login: login}
	}
	if accessToken != "" {
		s.accessTokens[accessToken] = id
	}
	if refreshToken != "" {
		s.refreshTokens[refreshToken] = id
	}
}

// AddCode registers a one-time authorization code for an identity.
func (s *Server) AddCode(code string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = userID
}

// RevokeAccessToken makes an access token invalid.
func (s *Server) RevokeAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
}

// SetRefreshDelay slows down refresh grants.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// KeepRefreshTokens makes refresh grants return only a new access token,
// like an app whose refresh tokens do not rotate.
func (s *Server) KeepRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepRefresh = true
}

// SetInvitations replaces the pending invitations of an identity.
func (s *Server) SetInvitations(userID int64, invites ...Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &user{id: userID, login: "user" + strconv.FormatInt(userID, 10)}
		s.users[userID] = u
	}
	u.invitations = append([]Invitation(nil), invites...)
}

// AddBranch creates (or moves) a branch whose tree holds files.
func (s *Server) AddBranch(repo, branch, head string, files ...File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tree{}
	dirs := map[string]bool{}
	for _, f := range files {
		sum := sha1.Sum(append([]byte(f.Path+"\x00"), f.Content...)) //nolint:gosec // fake ids
		sha := hex.EncodeToString(sum[:])
		enc := f.Encoding
		if enc == "" {
			enc = "base64"
		}
		s.blobs[sha] = blob{content: f.Content, encoding: enc}

		size := f.Size
		if size == 0 {
			size = int64(len(f.Content))
		}
		if dir := parentDir(f.Path); dir != "" && !dirs[dir] {
			dirs[dir] = true
			t.entries = append(t.entries, map[string]any{"path": dir, "type": "tree", "sha": "tree-" + dir})
		}
		t.entries = append(t.entries, map[string]any{"path": f.Path, "type": "blob", "sha": sha, "size": size})
	}

	s.heads[repo+"@"+branch] = head
	s.trees[repo+"@"+head] = t
}

// SetTruncated marks the tree of a commit as truncated.
func (s *Server) SetTruncated(repo, head string, truncated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trees[repo+"@"+head]; ok {
		t.truncated = truncated
	}
}

// FailPath makes every request whose path starts with prefix fail.
// A zero status clears the failure.
func (s *Server) FailPath(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, prefix)
		return
	}
	s.failures[prefix] = status
}

// Calls returns how often an operation was served: "refresh", "exchange",
// "user", "invitations", "ref", "tree", "blob".
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Decisions returns the accept/decline calls seen, as "accepted:<id>".
func (s *Server) Decisions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.decisions...)
}

func (s *Server) withFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		for prefix, st := range s.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				status = st
				break
			}
		}
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authUser resolves the bearer token; the lock must be held.
func (s *Server) authUser(w http.ResponseWriter, r *http.Request) (*user, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	id, ok := s.accessTokens[token]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
		return nil, false
	}
	u, ok := s.users[id]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
		return nil, false
	}
	return u, true
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	delay := s.refreshDelay
	s.mu.Unlock()

	switch r.Form.Get("grant_type") {
	case "refresh_token":
		if delay > 0 {
			time.Sleep(delay)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls["refresh"]++

		old := r.Form.Get("refresh_token")
		id, ok := s.refreshTokens[old]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "bad_refresh_token", "error_description": "The refresh token passed is incorrect or expired."})
			return
		}
		if s.keepRefresh {
			s.issued++
			access := fmt.Sprintf("access-%d-%d", id, s.issued)
			s.accessTokens[access] = id
			writeJSON(w, http.StatusOK, map[string]any{"access_token": access, "token_type": "bearer", "expires_in": 28800})
			return
		}
		delete(s.refreshTokens, old)
		writeJSON(w, http.StatusOK, s.issue(id))

	case "authorization_code":
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls["exchange"]++

		code := r.Form.Get("code")
		id, ok := s.codes[code]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "bad_verification_code", "error_description": "The code passed is incorrect or expired."})
			return
		}
		delete(s.codes, code)
		writeJSON(w, http.StatusOK, s.issue(id))

	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

// issue mints a token pair; the lock must be held.
func (s *Server) issue(id int64) map[string]any {
	s.issued++
	access := fmt.Sprintf("access-%d-%d", id, s.issued)
	refresh := fmt.Sprintf("refresh-%d-%d", id, s.issued)
	s.accessTokens[access] = id
	s.refreshTokens[refresh] = id
	if _, ok := s.users[id]; !ok {
		s.users[id] = &user{id: id, login: "user" + strconv.FormatInt(id, 10)}
	}
	return map[string]any{
		"access_token":             access,
		"token_type":               "bearer",
		"expires_in":               28800,
		"refresh_token":            refresh,
		"refresh_token_expires_in": 15897600,
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["user"]++
	u, ok := s.authUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.id, "login": u.login})
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["invitations"]++
	u, ok := s.authUser(w, r)
	if !ok {
		return
	}

	invites := append([]Invitation(nil), u.invitations...)
	sort.Slice(invites, func(i, j int) bool { return invites[i].ID < invites[j].ID })

	etag := invitationsETag(invites)
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body := make([]map[string]any, 0, len(invites))
	for _, inv := range invites {
		item := map[string]any{
			"id":         inv.ID,
			"repository": map[string]any{"full_name": inv.Repo},
			"created_at": inv.CreatedAt.UTC().Format(time.RFC3339),
			"inviter":    nil,
		}
		if inv.Inviter != "" {
			item["inviter"] = map[string]any{"login": inv.Inviter}
		}
		body = append(body, item)
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDecision(decision string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.authUser(w, r)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		for i, inv := range u.invitations {
			if inv.ID == id {
				u.invitations = append(u.invitations[:i], u.invitations[i+1:]...)
				s.decisions = append(s.decisions, decision+":"+strconv.FormatInt(id, 10))
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	}
}

func (s *Server) handleRef(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ref"]++
	if _, ok := s.authUser(w, r); !ok {
		return
	}
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	head, ok := s.heads[repo+"@"+r.PathValue("branch")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/" + r.PathValue("branch"),
		"object": map[string]any{"sha": head, "type": "commit"},
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["tree"]++
	if _, ok := s.authUser(w, r); !ok {
		return
	}
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	sha := r.PathValue("sha")
	t, ok := s.trees[repo+"@"+sha]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": sha, "tree": t.entries, "truncated": t.truncated})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["blob"]++
	if _, ok := s.authUser(w, r); !ok {
		return
	}
	b, ok := s.blobs[r.PathValue("sha")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	content := ""
	if b.encoding == "base64" {
		content = base64.StdEncoding.EncodeToString(b.content)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sha":      r.PathValue("sha"),
		"encoding": b.encoding,
		"content":  content,
		"size":     len(b.content),
	})
}

func invitationsETag(invites []Invitation) string {
	h := sha1.New() //nolint:gosec // fake etag
	for _, inv := range invites {
		fmt.Fprintf(h, "%d|%s|%s|%d\n", inv.ID, inv.Repo, inv.Inviter, inv.CreatedAt.Unix())
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil))[:16] + `"`
}

func parentDir(path string) string {
	if i := strings.LastIndex(path, "/"); i > 0 {
		return path[:i]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
