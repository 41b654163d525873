// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package models

import (
	"fmt"
	"time"
)

// InvitationStatus is the local view of a repository invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"

	// InvitationUnknown marks a pending invitation that the provider stopped
	// returning. The row is kept for history.
	InvitationUnknown InvitationStatus = "unknown"
)

// Valid reports whether s is one of the known statuses.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationUnknown:
		return true
	}
	return false
}

// StatusFilterAll selects invitations of every status.
const StatusFilterAll = "all"

// ParseStatusFilter parses a list filter. The empty string means pending;
// "all" returns ok with an empty status.
func ParseStatusFilter(s string) (InvitationStatus, error) {
	switch s {
	case "":
		return InvitationPending, nil
	case StatusFilterAll:
		return "", nil
	}
	status := InvitationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid invitation status filter %q", s)
	}
	return status, nil
}

// Invitation is a repository collaboration invitation owned by one identity.
type Invitation struct {
	InviteID           int64            `json:"invite_id"`
	GitHubUserID       int64            `json:"github_user_id"`
	RepositoryFullName string           `json:"repository_full_name"`
	InviterLogin       string           `json:"inviter_login,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Status             InvitationStatus `json:"status"`
	LastSeenAt         time.Time        `json:"last_seen_at"`
}

// UpstreamInvitation is an invitation as returned by the provider.
type UpstreamInvitation struct {
	ID                 int64
	RepositoryFullName string
	InviterLogin       string
	CreatedAt          time.Time
}
