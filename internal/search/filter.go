// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package search

import (
	"crypto/sha1" //nolint:gosec // id disambiguation, not security
	"encoding/hex"
	"strconv"
	"strings"
)

// IndexName returns the index uid owned by an identity.
func IndexName(githubUserID int64) string {
	return "code_u_" + strconv.FormatInt(githubUserID, 10)
}

// QuoteValue renders s as a double-quoted filter literal.
func QuoteValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// RepoFilter matches every document of a repository.
func RepoFilter(repo string) string {
	return "repo = " + QuoteValue(repo)
}

// BranchFilter matches every document of one branch.
func BranchFilter(repo, branch string) string {
	return RepoFilter(repo) + " AND branch = " + QuoteValue(branch)
}

// BranchesFilter matches a repository, optionally narrowed to branches.
func BranchesFilter(repo string, branches []string) string {
	switch len(branches) {
	case 0:
		return RepoFilter(repo)
	case 1:
		return BranchFilter(repo, branches[0])
	}
	quoted := make([]string, len(branches))
	for i, b := range branches {
		quoted[i] = QuoteValue(b)
	}
	return RepoFilter(repo) + " AND branch IN [" + strings.Join(quoted, ", ") + "]"
}

// maxIDLength is Meilisearch's limit on document id length.
const maxIDLength = 511

// DocumentID derives a stable document id from repo, branch and path.
// Meilisearch ids allow only [A-Za-z0-9_-], so other bytes are replaced and a
// short hash of the original key keeps distinct paths distinct.
func DocumentID(repo, branch, path string) string {
	key := repo + ":" + branch + ":" + path
	sum := sha1.Sum([]byte(key)) //nolint:gosec // see import
	suffix := hex.EncodeToString(sum[:6])

	var b strings.Builder
	b.Grow(len(key) + len(suffix) + 1)
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	safe := b.String()
	if len(safe) > maxIDLength-len(suffix)-1 {
		safe = safe[:maxIDLength-len(suffix)-1]
	}
	return safe + "-" + suffix
}
