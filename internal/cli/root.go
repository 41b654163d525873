// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package cli implements gipctl, the operator tool for the job queue and the
// invitation store.
//
// gipctl opens the DuckDB file directly. DuckDB allows one read-write process
// per file, so run it while the server is stopped or against a copy.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
)

const defaultDatabasePath = "./data/gip.duckdb"

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	Database string
	Format   string
}

// NewRootCommand builds the gipctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gipctl",
		Short: "Operate a github-invite-plus database",
		Long: `gipctl inspects and repairs the github-invite-plus job queue and
invitation store.

It opens the DuckDB file directly; stop the server first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, "invalid --format",
					fmt.Errorf("%q is not one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	dbDefault := os.Getenv("DATABASE_PATH")
	if dbDefault == "" {
		dbDefault = defaultDatabasePath
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", dbDefault, "path to the DuckDB file (env DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewInvitesCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))

	return cmd
}

func (o *RootOptions) open() (*database.DB, error) {
	db, err := database.New(&config.DatabaseConfig{Path: o.Database})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}
