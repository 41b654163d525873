// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package invites

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
)

const (
	DefaultInterval    = 180 * time.Second
	DefaultConcurrency = 3
)

// ErrAlreadyRunning is returned by Start on a running reconciler.
var ErrAlreadyRunning = errors.New("reconciler already running")

// IdentityLister enumerates linked identities.
type IdentityLister interface {
	ListCredentialIDs(ctx context.Context) ([]int64, error)
}

// Refresher refreshes one identity.
type Refresher interface {
	Refresh(ctx context.Context, githubUserID int64) (int, error)
}

// Cleaner runs periodic retention. It is called at the start of every pass.
type Cleaner interface {
	Cleanup(ctx context.Context)
}

// Reconciler refreshes every linked identity on a fixed interval.
type Reconciler struct {
	identities  IdentityLister
	refresher   Refresher
	cleaner     Cleaner
	interval    time.Duration
	concurrency int

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReconciler creates a reconciler. cleaner may be nil.
func NewReconciler(interval time.Duration, concurrency int, identities IdentityLister, refresher Refresher, cleaner Cleaner) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Reconciler{
		identities:  identities,
		refresher:   refresher,
		cleaner:     cleaner,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Start runs a pass immediately and then every interval.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.loop(context.WithoutCancel(ctx), r.stop, r.done)

	logging.Info().Dur("interval", r.interval).Int("concurrency", r.concurrency).Msg("Invitation reconciler started")
	return nil
}

// Stop cancels future passes and waits for the current one.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	logging.Info().Msg("Invitation reconciler stopped")
	return nil
}

func (r *Reconciler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.RunOnce(ctx)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one reconcile pass over every identity. Per-identity
// failures are logged and counted, never returned.
func (r *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	metrics.ReconcileRuns.Inc()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	if r.cleaner != nil {
		r.cleaner.Cleanup(ctx)
	}

	ids, err := r.identities.ListCredentialIDs(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list identities for reconcile")
		return
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			ictx := logging.ContextWithNewCorrelationID(ctx)
			if _, err := r.refresher.Refresh(ictx, id); err != nil {
				metrics.ReconcileIdentities.WithLabelValues("failed").Inc()
				logging.Ctx(ictx).Warn().Err(err).Int64("github_user_id", id).Msg("Invitation refresh failed")
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Debug().
		Int("identities", len(ids)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Invitation reconcile pass complete")
}
