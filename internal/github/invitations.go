// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// invitesPerPage is GitHub's maximum page size.
const invitesPerPage = 100

// InvitationList is one conditional fetch of the pending invitations.
type InvitationList struct {
	Invitations []models.UpstreamInvitation

	// ETag is the cursor to send next time. On NotModified it echoes the
	// cursor that was sent.
	ETag        string
	NotModified bool
}

type repositoryInvitation struct {
	ID         int64 `json:"id"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Inviter *struct {
		Login string `json:"login"`
	} `json:"inviter"`
	CreatedAt time.Time `json:"created_at"`
}

// ListInvitations fetches every pending repository invitation for the token
// owner, following pagination. A non-empty etag is sent as If-None-Match and
// a 304 reply yields NotModified with no invitations.
func (c *Client) ListInvitations(ctx context.Context, token, etag string) (*InvitationList, error) {
	cfg := requestConfig{
		operation: "list_invitations",
		method:    http.MethodGet,
		path:      "/user/repository_invitations",
		query:     url.Values{"per_page": {strconv.Itoa(invitesPerPage)}},
		token:     token,
		etag:      etag,
	}

	out := &InvitationList{Invitations: []models.UpstreamInvitation{}}
	for {
		var page []repositoryInvitation
		resp, err := c.doRequest(ctx, cfg, &page)
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusNotModified {
			return &InvitationList{Invitations: []models.UpstreamInvitation{}, ETag: etag, NotModified: true}, nil
		}
		if out.ETag == "" {
			out.ETag = resp.header.Get("ETag")
		}

		for _, inv := range page {
			up := models.UpstreamInvitation{
				ID:                 inv.ID,
				RepositoryFullName: inv.Repository.FullName,
				CreatedAt:          inv.CreatedAt.UTC(),
			}
			if inv.Inviter != nil {
				up.InviterLogin = inv.Inviter.Login
			}
			out.Invitations = append(out.Invitations, up)
		}

		next := nextPageURL(resp.header)
		if next == "" {
			return out, nil
		}
		// Later pages carry their own query and are never conditional.
		cfg.path, cfg.query, cfg.etag = next, nil, ""
	}
}

// AcceptInvitation accepts a repository invitation.
func (c *Client) AcceptInvitation(ctx context.Context, token string, inviteID int64) error {
	_, err := c.doRequest(ctx, requestConfig{
		operation: "accept_invitation",
		method:    http.MethodPatch,
		path:      "/user/repository_invitations/" + strconv.FormatInt(inviteID, 10),
		token:     token,
	}, nil)
	return err
}

// DeclineInvitation declines a repository invitation.
func (c *Client) DeclineInvitation(ctx context.Context, token string, inviteID int64) error {
	_, err := c.doRequest(ctx, requestConfig{
		operation: "decline_invitation",
		method:    http.MethodDelete,
		path:      "/user/repository_invitations/" + strconv.FormatInt(inviteID, 10),
		token:     token,
	}, nil)
	return err
}
