// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package worker runs queued jobs.
//
// The Scheduler is a single polling loop that claims one job at a time.
// When the queue is empty the poll delay doubles up to a ceiling; when a job
// is found it drops back to the base delay. Stop waits for the job that is
// currently executing instead of abandoning it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/indexer"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

const (
	DefaultBaseInterval = 500 * time.Millisecond
	DefaultMaxInterval  = 10 * time.Second
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Queue is the job queue the scheduler drains.
type Queue interface {
	DequeueNextJob(ctx context.Context) (*models.Job, error)
	MarkJobDone(ctx context.Context, id string) error
	MarkJobFailed(ctx context.Context, id, lastError string, attempts, maxAttempts int) (models.JobStatus, error)
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int64, error)
}

// BranchIndexer executes index_branch jobs.
type BranchIndexer interface {
	IndexBranch(ctx context.Context, githubUserID int64, repo, branch string) (*indexer.Result, error)
}

// Scheduler is the worker loop.
type Scheduler struct {
	queue   Queue
	indexer BranchIndexer
	base    time.Duration
	max     time.Duration

	// interval is owned by the loop goroutine.
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a scheduler with the configured poll policy.
func NewScheduler(cfg config.WorkerConfig, queue Queue, idx BranchIndexer) *Scheduler {
	base, ceiling := cfg.BaseInterval, cfg.MaxInterval
	if base <= 0 {
		base = DefaultBaseInterval
	}
	if ceiling < base {
		ceiling = DefaultMaxInterval
		if ceiling < base {
			ceiling = base
		}
	}
	return &Scheduler{
		queue:    queue,
		indexer:  idx,
		base:     base,
		max:      ceiling,
		interval: base,
	}
}

// Start launches the polling loop. Values from ctx are kept for every tick;
// its cancellation is not, so a shutdown never cuts a job off mid-write.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.interval = s.base

	go s.loop(context.WithoutCancel(ctx), s.stop, s.done)

	logging.Info().Dur("base_interval", s.base).Dur("max_interval", s.max).Msg("Worker started")
	return nil
}

// Stop prevents further polls and waits for the in-flight tick.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	logging.Info().Msg("Worker stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		found := s.Tick(ctx)
		s.interval = nextInterval(s.interval, s.base, s.max, found)
		metrics.WorkerPollInterval.Set(s.interval.Seconds())

		// A stop that arrived during the tick wins over the next poll.
		select {
		case <-stop:
			return
		default:
		}
		timer.Reset(s.interval)
	}
}

// nextInterval is the poll delay after a tick.
func nextInterval(cur, base, ceiling time.Duration, found bool) time.Duration {
	if found {
		return base
	}
	next := cur * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

// Tick claims and executes at most one job. It reports whether a job was
// found.
func (s *Scheduler) Tick(ctx context.Context) bool {
	defer s.publishDepth(ctx)

	job, err := s.queue.DequeueNextJob(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to dequeue job")
		return false
	}
	if job == nil {
		return false
	}

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx).With().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("attempt", job.Attempts+1).
		Int("max_attempts", job.MaxAttempts).
		Logger()

	start := time.Now()
	runErr := s.execute(ctx, job)
	if runErr == nil {
		if err := s.queue.MarkJobDone(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("Failed to mark job done")
		}
		metrics.RecordJobResult(string(job.Type), string(models.JobDone), time.Since(start))
		log.Info().Dur("duration", time.Since(start)).Msg("Job done")
		return true
	}

	status, err := s.queue.MarkJobFailed(ctx, job.ID, runErr.Error(), job.Attempts, job.MaxAttempts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark job failed")
		return true
	}
	metrics.RecordJobResult(string(job.Type), string(status), time.Since(start))
	ev := log.Warn()
	if status == models.JobFailed {
		ev = log.Error()
	}
	ev.Err(runErr).Str("status", string(status)).Msg("Job failed")
	return true
}

func (s *Scheduler) execute(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTypeIndexBranch:
		p, err := models.DecodeIndexBranchPayload(job.Payload)
		if err != nil {
			return err
		}
		_, err = s.indexer.IndexBranch(ctx, p.GitHubUserID, p.RepoFullName, p.Branch)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (s *Scheduler) publishDepth(ctx context.Context) {
	counts, err := s.queue.CountJobsByStatus(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Failed to count jobs")
		return
	}
	depth := make(map[string]int64, 4)
	for _, st := range []models.JobStatus{models.JobQueued, models.JobRunning, models.JobDone, models.JobFailed} {
		depth[string(st)] = counts[st]
	}
	metrics.UpdateQueueDepth(depth)
}
