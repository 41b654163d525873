// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package models defines the domain records shared by the store, the
// background engine and the HTTP layer.
//
// Every record is scoped to a GitHub user id (the identity). The relational
// store owns all of them; components never keep long-lived copies.
package models
