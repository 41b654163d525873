// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// NewInvitesCommand groups the stored invitation commands.
func NewInvitesCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "Inspect stored invitations",
	}
	cmd.AddCommand(newInvitesListCommand(root))
	cmd.AddCommand(newIdentitiesCommand(root))
	return cmd
}

func newInvitesListCommand(root *RootOptions) *cobra.Command {
	var (
		userID int64
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one identity's invitations as last reconciled",
		Example: `  gipctl invites list --user 42
  gipctl invites list --user 42 --status all --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := models.ParseStatusFilter(status)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --status", err)
			}
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			invites, err := db.ListInvitations(cmd.Context(), userID, filter, limit, 0)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list invitations", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), invites)
			}
			rows := make([][]string, 0, len(invites))
			for _, inv := range invites {
				rows = append(rows, []string{
					strconv.FormatInt(inv.InviteID, 10),
					inv.RepositoryFullName,
					inv.InviterLogin,
					string(inv.Status),
					inv.LastSeenAt.UTC().Format(time.RFC3339),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "REPOSITORY", "INVITER", "STATUS", "LAST SEEN"}, rows)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "GitHub user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&status, "status", "", "pending (default), accepted, declined, unknown or all")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of invitations")
	return cmd
}

func newIdentitiesCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List linked identities with their pending invitation count",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			ids, err := db.ListCredentialIDs(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list identities", err)
			}
			type identity struct {
				GitHubUserID int64 `json:"github_user_id"`
				Pending      int   `json:"pending"`
			}
			out := make([]identity, 0, len(ids))
			for _, id := range ids {
				n, err := db.CountPendingInvitations(cmd.Context(), id)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to count invitations", err)
				}
				out = append(out, identity{GitHubUserID: id, Pending: n})
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, 0, len(out))
			for _, o := range out {
				rows = append(rows, []string{strconv.FormatInt(o.GitHubUserID, 10), strconv.Itoa(o.Pending)})
			}
			return writeTable(cmd.OutOrStdout(), []string{"GITHUB USER", "PENDING"}, rows)
		},
	}
}
