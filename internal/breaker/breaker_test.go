// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package breaker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
)

func TestExecute_ReturnsValue(t *testing.T) {
	b := New("test-value", Settings{})

	got, err := Execute(b, func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestExecute_OpensOnTransientFailures(t *testing.T) {
	b := New("test-open", Settings{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Hour})

	unavailable := apperr.NewStatusError("svc", "op", http.StatusBadGateway, "down")
	for i := 0; i < 3; i++ {
		if err := Do(b, func() error { return unavailable }); !errors.Is(err, apperr.ErrUpstreamUnavailable) {
			t.Fatalf("call %d: err = %v, want unavailable", i, err)
		}
	}

	if got := b.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	called := false
	err := Do(b, func() error { called = true; return nil })
	if called {
		t.Error("fn ran while circuit was open")
	}
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("rejected call err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestExecute_RejectionsDoNotTrip(t *testing.T) {
	b := New("test-rejected", Settings{MinRequests: 2, FailureRatio: 0.5})

	notFound := apperr.NewStatusError("svc", "op", http.StatusNotFound, "missing")
	for i := 0; i < 5; i++ {
		_ = Do(b, func() error { return notFound })
	}
	_ = Do(b, func() error { return context.Canceled })

	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}

func TestExecute_ValueKeptOnError(t *testing.T) {
	b := New("test-value-on-error", Settings{})
	sentinel := errors.New("boom")

	got, err := Execute(b, func() (string, error) { return "partial", sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if got != "partial" {
		t.Errorf("got %q, want partial", got)
	}
}

func TestStateToString(t *testing.T) {
	b := New("test-name", Settings{})
	if b.Name() != "test-name" {
		t.Errorf("Name() = %q", b.Name())
	}
	if b.State() != "closed" {
		t.Errorf("new breaker State() = %q, want closed", b.State())
	}
}
