// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package services adapts application components to suture v4's
Serve(ctx) error contract.

# Available Services

HTTPServerService wraps *http.Server: ListenAndServe in a goroutine,
Shutdown with a bounded timeout once the context ends.

LifecycleService wraps any Start(ctx)/Stop() component. The worker
scheduler and the invitation reconciler run this way; Stop blocks until
their in-flight tick has finished.

PeriodicService runs a function on a fixed interval. The data layer uses it
for BadgerDB value log collection of the webhook delivery store.

Every wrapper implements fmt.Stringer so suture events carry a readable
service name.
*/
package services
