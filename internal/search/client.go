// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package search is the client for the Meilisearch document store and the
per-identity index management built on it.

Each linked identity owns one index (code_u_<id>). Every mutation returns an
asynchronous task; WaitForTask polls it to a terminal state.

Related Files:
  - tasks.go: task polling
  - index.go: per-identity index manager and "index ensured" cache
  - filter.go: filter expressions and document ids
  - service.go: highlighted code search
*/
package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/breaker"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

const (
	serviceName  = "meilisearch"
	maxErrorBody = 4 << 10
)

// Client talks to one Meilisearch instance.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	breaker      *breaker.Breaker
	pollInterval time.Duration
	taskTimeout  time.Duration
}

// NewClient creates a Meilisearch client from configuration.
func NewClient(cfg *config.SearchConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := cfg.TaskPollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		apiKey:       cfg.MasterKey,
		httpClient:   &http.Client{Timeout: timeout},
		breaker:      breaker.New("meilisearch", breaker.Settings{}),
		pollInterval: poll,
		taskTimeout:  taskTimeout,
	}
}

// BreakerState reports the circuit state for health output.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// Settings is the subset of index settings this service manages.
type Settings struct {
	SearchableAttributes []string `json:"searchableAttributes"`
	FilterableAttributes []string `json:"filterableAttributes"`
	SortableAttributes   []string `json:"sortableAttributes"`
}

// IndexInfo describes an existing index.
type IndexInfo struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primaryKey"`
}

// SearchRequest is the body of POST /indexes/{uid}/search.
type SearchRequest struct {
	Query                 string   `json:"q"`
	Filter                string   `json:"filter,omitempty"`
	Limit                 int      `json:"limit,omitempty"`
	AttributesToRetrieve  []string `json:"attributesToRetrieve,omitempty"`
	AttributesToHighlight []string `json:"attributesToHighlight,omitempty"`
	AttributesToCrop      []string `json:"attributesToCrop,omitempty"`
	CropLength            int      `json:"cropLength,omitempty"`
	HighlightPreTag       string   `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string   `json:"highlightPostTag,omitempty"`
}

// SearchResponse is the raw search reply.
type SearchResponse struct {
	Hits               []SearchDocument `json:"hits"`
	EstimatedTotalHits int              `json:"estimatedTotalHits"`
	ProcessingTimeMs   int              `json:"processingTimeMs"`
}

// SearchDocument is one hit with its highlighted copy.
type SearchDocument struct {
	Repo      string `json:"repo"`
	Branch    string `json:"branch"`
	Path      string `json:"path"`
	Formatted struct {
		Content string `json:"content"`
		Path    string `json:"path"`
	} `json:"_formatted"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// requestConfig holds configuration for building HTTP requests
type requestConfig struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
}

func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result any) error {
	return breaker.Do(c.breaker, func() error {
		return c.send(ctx, cfg, result)
	})
}

func (c *Client) send(ctx context.Context, cfg requestConfig, result any) error {
	body := io.Reader(http.NoBody)
	if cfg.body != nil {
		raw, err := json.Marshal(cfg.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", cfg.operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, c.baseURL+cfg.path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if cfg.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(serviceName, cfg.operation, 0, time.Since(start))
		return apperr.NewTransportError(serviceName, cfg.operation, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(serviceName, cfg.operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.NewStatusError(serviceName, cfg.operation, resp.StatusCode, readErrorMessage(resp.Body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return apperr.NewTransportError(serviceName, cfg.operation, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var e errorBody
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return strings.TrimSpace(string(raw))
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doRequest(ctx, requestConfig{operation: "health", method: http.MethodGet, path: "/health"}, &out); err != nil {
		return err
	}
	if out.Status != "available" {
		return apperr.NewStatusError(serviceName, "health", http.StatusServiceUnavailable, "status "+out.Status)
	}
	return nil
}

// GetIndex returns index metadata. A missing index is an upstream 404
// (see apperr.IsNotFound).
func (c *Client) GetIndex(ctx context.Context, uid string) (*IndexInfo, error) {
	var info IndexInfo
	if err := c.doRequest(ctx, requestConfig{
		operation: "get_index",
		method:    http.MethodGet,
		path:      "/indexes/" + url.PathEscape(uid),
	}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateIndex enqueues index creation.
func (c *Client) CreateIndex(ctx context.Context, uid, primaryKey string) (int64, error) {
	return c.enqueue(ctx, requestConfig{
		operation: "create_index",
		method:    http.MethodPost,
		path:      "/indexes",
		body:      map[string]string{"uid": uid, "primaryKey": primaryKey},
	})
}

// UpdateSettings enqueues a settings update.
func (c *Client) UpdateSettings(ctx context.Context, uid string, s Settings) (int64, error) {
	return c.enqueue(ctx, requestConfig{
		operation: "update_settings",
		method:    http.MethodPatch,
		path:      "/indexes/" + url.PathEscape(uid) + "/settings",
		body:      s,
	})
}

// DeleteDocumentsByFilter enqueues deletion of every document matching filter.
func (c *Client) DeleteDocumentsByFilter(ctx context.Context, uid, filter string) (int64, error) {
	return c.enqueue(ctx, requestConfig{
		operation: "delete_documents",
		method:    http.MethodPost,
		path:      "/indexes/" + url.PathEscape(uid) + "/documents/delete",
		body:      map[string]string{"filter": filter},
	})
}

// AddDocuments enqueues an upsert of docs keyed by id.
func (c *Client) AddDocuments(ctx context.Context, uid string, docs []models.CodeDocument) (int64, error) {
	return c.enqueue(ctx, requestConfig{
		operation: "add_documents",
		method:    http.MethodPost,
		path:      "/indexes/" + url.PathEscape(uid) + "/documents",
		query:     url.Values{"primaryKey": {"id"}},
		body:      docs,
	})
}

// DeleteIndex enqueues deletion of a whole index.
func (c *Client) DeleteIndex(ctx context.Context, uid string) (int64, error) {
	return c.enqueue(ctx, requestConfig{
		operation: "delete_index",
		method:    http.MethodDelete,
		path:      "/indexes/" + url.PathEscape(uid),
	})
}

// Search runs a query against one index.
func (c *Client) Search(ctx context.Context, uid string, req *SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.doRequest(ctx, requestConfig{
		operation: "search",
		method:    http.MethodPost,
		path:      "/indexes/" + url.PathEscape(uid) + "/search",
		body:      req,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// enqueue sends a mutation and returns the task uid Meilisearch assigned.
func (c *Client) enqueue(ctx context.Context, cfg requestConfig) (int64, error) {
	var summary struct {
		TaskUID *int64 `json:"taskUid"`
	}
	if err := c.doRequest(ctx, cfg, &summary); err != nil {
		return 0, err
	}
	if summary.TaskUID == nil {
		return 0, apperr.NewStatusError(serviceName, cfg.operation, http.StatusBadGateway, "response carried no taskUid")
	}
	return *summary.TaskUID, nil
}
