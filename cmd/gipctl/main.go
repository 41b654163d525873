// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Command gipctl is the operator tool for a github-invite-plus database.
package main

import (
	"fmt"
	"os"

	"github.com/SuperSonnix71/github-invite-plus/internal/cli"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "console", Output: os.Stderr})

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
