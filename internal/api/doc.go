// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package api provides the HTTP surface of GitHub Invite Plus.

The API is a thin transport over the background engine: it enqueues index
jobs, exposes the invitation cache, runs code searches and receives GitHub
webhooks. All work that talks to GitHub at length happens in the worker and
the reconciler, never on the request path, except for the explicit
invitation refresh, accept and decline calls.

Routes:

	GET  /api/v1/health/live                              liveness
	GET  /api/v1/health/ready                             database + search engine
	GET  /metrics                                         Prometheus

	POST /api/v1/webhooks/github                          GitHub webhook receiver

	POST /api/v1/auth/start                               begin OAuth link flow
	POST /api/v1/auth/exchange                            finish OAuth link flow

	GET  /api/v1/users/{userID}/invitations               cached invitations
	POST /api/v1/users/{userID}/invitations/refresh       reconcile now
	POST /api/v1/users/{userID}/invitations/{id}/accept
	POST /api/v1/users/{userID}/invitations/{id}/decline
	POST /api/v1/users/{userID}/index                     enqueue a branch
	GET  /api/v1/users/{userID}/branches                  branch index state
	GET  /api/v1/users/{userID}/search                    code search
	GET  /api/v1/search/url                               github.com search link

Authentication:

Per-user routes are guarded by a bearer API key (API_KEY). The identity is
the path parameter; the caller (a session-holding frontend) is trusted to
pass only the identity it authenticated. The webhook receiver is guarded by
the X-Hub-Signature-256 HMAC instead.

Responses:

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}
*/
package api
