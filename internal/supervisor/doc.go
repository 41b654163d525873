// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

/*
Package supervisor runs the long-lived parts of the server under a suture v4
supervisor tree.

# Overview

	RootSupervisor ("github-invite-plus")
	├── DataSupervisor ("data-layer")
	│   └── delivery-gc (BadgerDB value log collection, badger store only)
	├── BackgroundSupervisor ("background-layer")
	│   ├── worker-scheduler
	│   └── invite-reconciler
	└── APISupervisor ("api-layer")
	    └── http-server

Each layer counts failures on its own. A reconciler that keeps failing
backs off inside the background layer while the HTTP server keeps serving
stored invitations and search results.

# Usage

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	    ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	tree.AddBackgroundService(services.NewLifecycleService("worker-scheduler", scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	errCh := tree.ServeBackground(ctx)

# Configuration

Zero values in TreeConfig take suture's defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

Supervisor events (start, failure, backoff, stop timeout) are logged
through sutureslog on the slog bridge from package logging.
*/
package supervisor
