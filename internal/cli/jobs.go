// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package cli

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
	"github.com/SuperSonnix71/github-invite-plus/internal/worker"
)

var jobStatuses = []models.JobStatus{models.JobQueued, models.JobRunning, models.JobDone, models.JobFailed}

// NewJobsCommand groups the job queue commands.
func NewJobsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and repair the job queue",
	}
	cmd.AddCommand(newJobsListCommand(root))
	cmd.AddCommand(newJobsStatsCommand(root))
	cmd.AddCommand(newJobsEnqueueCommand(root))
	cmd.AddCommand(newJobsRecoverCommand(root))
	return cmd
}

func newJobsListCommand(root *RootOptions) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in queue order",
		Example: `  gipctl jobs list --status failed
  gipctl jobs list --limit 20 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !slices.Contains(jobStatuses, models.JobStatus(status)) {
				return WrapExitError(ExitCommandError, "invalid --status", fmt.Errorf("%q is not one of %v", status, jobStatuses))
			}
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			jobs, err := db.ListJobs(cmd.Context(), models.JobStatus(status), limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list jobs", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), jobs)
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					j.ID,
					string(j.Status),
					fmt.Sprintf("%d/%d", j.Attempts, j.MaxAttempts),
					j.UpdatedAt.UTC().Format(time.RFC3339),
					describePayload(j),
					truncate(j.LastError, 60),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "STATUS", "ATTEMPTS", "UPDATED", "TARGET", "LAST ERROR"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued|running|done|failed)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of jobs")
	return cmd
}

func describePayload(j models.Job) string {
	if j.Type != models.JobTypeIndexBranch {
		return string(j.Type)
	}
	p, err := models.DecodeIndexBranchPayload(j.Payload)
	if err != nil {
		return "invalid payload"
	}
	return fmt.Sprintf("%d %s@%s", p.GitHubUserID, p.RepoFullName, p.Branch)
}

func newJobsStatsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			counts, err := db.CountJobsByStatus(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count jobs", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			rows := make([][]string, 0, len(jobStatuses))
			for _, s := range jobStatuses {
				rows = append(rows, []string{string(s), strconv.FormatInt(counts[s], 10)})
			}
			return writeTable(cmd.OutOrStdout(), []string{"STATUS", "COUNT"}, rows)
		},
	}
}

func newJobsEnqueueCommand(root *RootOptions) *cobra.Command {
	var (
		userID      int64
		repo        string
		branch      string
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:     "enqueue",
		Short:   "Queue an index_branch job",
		Long:    "Queue an index_branch job. An identical queued or running job is reused.",
		Example: `  gipctl jobs enqueue --user 42 --repo octo/app --branch main`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			id, created, err := worker.NewEnqueuer(db, maxAttempts).EnqueueIndexBranch(cmd.Context(), userID, repo, branch)
			if errors.Is(err, worker.ErrInvalidTarget) {
				return WrapExitError(ExitCommandError, "invalid job target", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to enqueue", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"job_id": id, "created": created})
			}
			verb := "queued"
			if !created {
				verb = "already pending"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "GitHub user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&repo, "repo", "", "repository full name, owner/name (required)")
	_ = cmd.MarkFlagRequired("repo")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name (required)")
	_ = cmd.MarkFlagRequired("branch")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", models.DefaultMaxAttempts, "attempts before the job is marked failed")
	return cmd
}

func newJobsRecoverCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Requeue jobs left running by a crashed server",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := worker.RecoverStuckJobs(cmd.Context(), db)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to recover jobs", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int64{"recovered": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", n)
			return nil
		},
	}
}

// NewCleanupCommand runs one retention pass.
func NewCleanupCommand(root *RootOptions) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired OAuth states and old done jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()

			worker.NewCleaner(db, retention).Cleanup(cmd.Context())
			counts, err := db.CountJobsByStatus(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count jobs", err)
			}
			if root.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int64{"done_jobs_remaining": counts[models.JobDone]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleanup complete, %d done job(s) remain\n", counts[models.JobDone])
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "keep done jobs newer than this")
	return cmd
}
