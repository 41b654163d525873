// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package testinfra starts real backing services in Docker for integration
// tests, using testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// # Meilisearch Container
//
// NewMeilisearchContainer runs the pinned Meilisearch image with a master
// key. The unit tests in package search use the in-process fake from
// searchtest; the container test checks the same client against the real
// task, filter and highlight semantics.
//
// Tests skip when Docker is unavailable or when -short is set. The first run
// pulls the image.
package testinfra
