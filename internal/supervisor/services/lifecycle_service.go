// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package services

import (
	"context"
	"fmt"
)

// StartStopManager is a component that owns its goroutines: Start spawns
// them and returns, Stop waits for them. *worker.Scheduler and
// *invites.Reconciler both satisfy it.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts a StartStopManager to suture's Serve pattern.
type LifecycleService struct {
	manager StartStopManager
	name    string
}

// NewLifecycleService wraps manager under name.
//
//	tree.AddBackgroundService(services.NewLifecycleService("worker-scheduler", scheduler))
func NewLifecycleService(name string, manager StartStopManager) *LifecycleService {
	return &LifecycleService{manager: manager, name: name}
}

// Serve implements suture.Service. A Start failure is returned at once so the
// supervisor applies its backoff before the next attempt.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *LifecycleService) String() string {
	return s.name
}
