// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package services

import (
	"context"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

// PeriodicService calls fn every interval until its context ends. A failing
// run is logged and retried on the next tick; it does not restart the
// service.
type PeriodicService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// NewPeriodicService creates a periodic service. A non-positive interval
// defaults to one minute.
func NewPeriodicService(name string, interval time.Duration, fn func(ctx context.Context) error) *PeriodicService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fn(ctx); err != nil {
				logging.Warn().Err(err).Str("service", p.name).Msg("Periodic task failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (p *PeriodicService) String() string {
	return p.name
}
