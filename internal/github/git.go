// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
)

// User is the authenticated GitHub identity.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// TreeEntry is one node of a recursive git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob", "tree" or "commit"
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// IsBlob reports whether the entry is a file.
func (e TreeEntry) IsBlob() bool {
	return e.Type == "blob"
}

// Tree is a recursive listing of a commit's tree.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// GetAuthenticatedUser returns the identity that owns token.
func (c *Client) GetAuthenticatedUser(ctx context.Context, token string) (*User, error) {
	var u User
	if _, err := c.doRequest(ctx, requestConfig{
		operation: "get_user",
		method:    http.MethodGet,
		path:      "/user",
		token:     token,
	}, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 || u.Login == "" {
		return nil, apperr.NewStatusError(serviceName, "get_user", http.StatusBadGateway, "missing GitHub identity")
	}
	return &u, nil
}

// GetBranchHead resolves refs/heads/{branch} to a commit SHA.
func (c *Client) GetBranchHead(ctx context.Context, token, repo, branch string) (string, error) {
	base, err := repoPath(repo)
	if err != nil {
		return "", err
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if _, err := c.doRequest(ctx, requestConfig{
		operation: "get_branch_head",
		method:    http.MethodGet,
		path:      base + "/git/ref/heads/" + escapeRef(branch),
		token:     token,
	}, &ref); err != nil {
		return "", err
	}
	if ref.Object.SHA == "" {
		return "", apperr.NewStatusError(serviceName, "get_branch_head", http.StatusBadGateway, "missing branch sha")
	}
	return ref.Object.SHA, nil
}

// GetTree lists the tree of a commit recursively. Truncation is reported on
// the result, not as an error.
func (c *Client) GetTree(ctx context.Context, token, repo, treeSHA string) (*Tree, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	var tree Tree
	if _, err := c.doRequest(ctx, requestConfig{
		operation: "get_tree",
		method:    http.MethodGet,
		path:      base + "/git/trees/" + url.PathEscape(treeSHA),
		query:     url.Values{"recursive": {"1"}},
		token:     token,
	}, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// GetBlob returns the decoded bytes of a blob. A blob GitHub does not serve
// as base64 fails with apperr.ErrTransientContent.
func (c *Client) GetBlob(ctx context.Context, token, repo, blobSHA string) ([]byte, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	var blob struct {
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
		Size     int64  `json:"size"`
	}
	if _, err := c.doRequest(ctx, requestConfig{
		operation: "get_blob",
		method:    http.MethodGet,
		path:      base + "/git/blobs/" + url.PathEscape(blobSHA),
		token:     token,
	}, &blob); err != nil {
		return nil, err
	}

	if blob.Encoding != "base64" {
		return nil, fmt.Errorf("%w: unsupported blob encoding %q", apperr.ErrTransientContent, blob.Encoding)
	}
	if blob.Content == "" {
		if blob.Size == 0 {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: blob %s has no content", apperr.ErrTransientContent, blobSHA)
	}

	// GitHub wraps base64 content at 60 columns.
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode blob %s: %w", apperr.ErrTransientContent, blobSHA, err)
	}
	return content, nil
}

// escapeRef escapes each segment of a ref name, keeping the slashes.
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
