// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package github is the client for the GitHub REST API and OAuth endpoints.

Every call made with a user access token goes through one shared token
bucket (golang.org/x/time/rate) and one circuit breaker. Failures come back
as *apperr.UpstreamError so callers classify them with errors.Is against
apperr.ErrUpstreamUnavailable and apperr.ErrUpstreamRejected.

Related Files:
  - invitations.go: repository invitation list/accept/decline
  - git.go: branch head, recursive tree and blob retrieval
  - oauth.go: authorization code exchange and token refresh
*/
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/breaker"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
)

const (
	serviceName = "github"
	userAgent   = "github-invite-plus/2.0"
	apiVersion  = "2022-11-28"

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 4 << 10
)

// Client talks to GitHub on behalf of linked identities.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker
	oauth      *oauth2.Config
	now        func() time.Time
}

// NewClient builds a client from the GitHub configuration. redirectURL is the
// OAuth callback registered for the GitHub App.
func NewClient(cfg *config.GitHubConfig, redirectURL string) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	oauthURL := strings.TrimSuffix(cfg.OAuthURL, "/")

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst),
		breaker:    breaker.New("github-api", breaker.Settings{}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   oauthURL + "/login/oauth/authorize",
				TokenURL:  oauthURL + "/login/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}
}

// BreakerState reports the circuit state for health output.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// requestConfig holds configuration for building HTTP requests
type requestConfig struct {
	operation string
	method    string
	path      string // relative to baseURL, or an absolute pagination URL
	query     url.Values
	token     string
	etag      string // sent as If-None-Match when set
}

// response is what callers need from a completed request.
type response struct {
	status int
	header http.Header
}

// doRequest executes one API request and decodes a 2xx JSON body into result.
// 304 Not Modified is returned as a success with an empty body.
func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result any) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.NewTransportError(serviceName, cfg.operation, err)
	}

	return breaker.Execute(c.breaker, func() (*response, error) {
		return c.send(ctx, cfg, result)
	})
}

func (c *Client) send(ctx context.Context, cfg requestConfig, result any) (*response, error) {
	reqURL := cfg.path
	if !strings.HasPrefix(reqURL, "http://") && !strings.HasPrefix(reqURL, "https://") {
		reqURL = c.baseURL + cfg.path
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.token)
	}
	if cfg.etag != "" {
		req.Header.Set("If-None-Match", cfg.etag)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(serviceName, cfg.operation, 0, time.Since(start))
		return nil, apperr.NewTransportError(serviceName, cfg.operation, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(serviceName, cfg.operation, resp.StatusCode, time.Since(start))

	out := &response{status: resp.StatusCode, header: resp.Header}

	if resp.StatusCode == http.StatusNotModified {
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.NewStatusError(serviceName, cfg.operation, resp.StatusCode, readErrorMessage(resp.Body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, apperr.NewTransportError(serviceName, cfg.operation, fmt.Errorf("decode response: %w", err))
		}
	}
	return out, nil
}

// readErrorMessage extracts GitHub's {"message": "..."} or falls back to the
// raw (bounded) body.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

// repoPath splits "owner/name" into an escaped /repos/{owner}/{name} prefix.
func repoPath(fullName string) (string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

// nextPageURL returns the rel="next" target of a Link header, or "".
func nextPageURL(h http.Header) string {
	for _, part := range strings.Split(h.Get("Link"), ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, attr := range segments[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}
