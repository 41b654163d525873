// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package search

import (
	"context"
	"errors"
	"strings"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// Search limits.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("search query is empty")

// Query is a code search scoped to one repository.
type Query struct {
	GitHubUserID int64
	Text         string
	Repo         string
	Branches     []string
	Limit        int
}

// Service runs highlighted code searches over identity indexes.
type Service struct {
	indexes *Indexes
}

// NewService creates a search service.
func NewService(indexes *Indexes) *Service {
	return &Service{indexes: indexes}
}

// Search ensures the identity's index and runs the query.
func (s *Service) Search(ctx context.Context, q Query) (*models.SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if err := s.indexes.Ensure(ctx, q.GitHubUserID); err != nil {
		return nil, err
	}

	resp, err := s.indexes.client.Search(ctx, IndexName(q.GitHubUserID), &SearchRequest{
		Query:                 text,
		Filter:                BranchesFilter(q.Repo, q.Branches),
		Limit:                 limit,
		AttributesToRetrieve:  []string{"repo", "branch", "path"},
		AttributesToHighlight: []string{"content"},
		AttributesToCrop:      []string{"content"},
		CropLength:            40,
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		return nil, err
	}

	result := &models.SearchResult{
		Hits:               make([]models.SearchHit, 0, len(resp.Hits)),
		EstimatedTotalHits: resp.EstimatedTotalHits,
		ProcessingTimeMs:   resp.ProcessingTimeMs,
	}
	for _, h := range resp.Hits {
		result.Hits = append(result.Hits, models.SearchHit{
			Repo:    h.Repo,
			Branch:  h.Branch,
			Path:    h.Path,
			Snippet: h.Formatted.Content,
		})
	}
	return result, nil
}
