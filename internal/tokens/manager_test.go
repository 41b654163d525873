// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/config"
	"github.com/SuperSonnix71/github-invite-plus/internal/database/dbtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/github/githubtest"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

type fakeRefresher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	pair  func(n int32) *models.TokenPair
}

func (f *fakeRefresher) RefreshToken(_ context.Context, _ string) (*models.TokenPair, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pair(n), nil
}

func rotatingPair(n int32) *models.TokenPair {
	return &models.TokenPair{
		AccessToken:           "access-" + string(rune('0'+n)),
		AccessTokenExpiresAt:  time.Now().Add(8 * time.Hour),
		RefreshToken:          "refresh-" + string(rune('0'+n)),
		RefreshTokenExpiresAt: time.Now().Add(180 * 24 * time.Hour),
	}
}

func newTestManager(t *testing.T, refresher Refresher) *Manager {
	t.Helper()
	cipher, err := config.NewCredentialEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCredentialEncryptor() error = %v", err)
	}
	return NewManager(dbtest.New(t), refresher, cipher)
}

func link(t *testing.T, m *Manager, id int64, accessExp, refreshExp time.Time) {
	t.Helper()
	err := m.Link(context.Background(), id, "octocat", &models.TokenPair{
		AccessToken:           "stored-access",
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          "stored-refresh",
		RefreshTokenExpiresAt: refreshExp,
	})
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}
}

func TestGetValidAccessToken_Fresh(t *testing.T) {
	refresher := &fakeRefresher{pair: rotatingPair}
	m := newTestManager(t, refresher)
	link(t, m, 1, time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))

	token, err := m.GetValidAccessToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if token != "stored-access" {
		t.Errorf("token = %q, want stored-access", token)
	}
	if got := refresher.calls.Load(); got != 0 {
		t.Errorf("refresh calls = %d, want 0", got)
	}
}

func TestGetValidAccessToken_RefreshesInsideSkew(t *testing.T) {
	refresher := &fakeRefresher{pair: rotatingPair}
	m := newTestManager(t, refresher)
	link(t, m, 1, time.Now().Add(2*time.Minute), time.Now().Add(24*time.Hour))
	ctx := context.Background()

	token, err := m.GetValidAccessToken(ctx, 1)
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if token != "access-1" {
		t.Errorf("token = %q, want access-1", token)
	}

	// The refreshed pair was persisted and is now served without a refresh.
	token, err = m.GetValidAccessToken(ctx, 1)
	if err != nil || token != "access-1" {
		t.Errorf("second call = %q, %v", token, err)
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestGetValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	refresher := &fakeRefresher{pair: rotatingPair, delay: 50 * time.Millisecond}
	m := newTestManager(t, refresher)
	link(t, m, 7, time.Now().Add(-time.Minute), time.Now().Add(24*time.Hour))

	const callers = 10
	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		tokens = make([]string, callers)
		errs   = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = m.GetValidAccessToken(context.Background(), 7)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if tokens[i] != "access-1" {
			t.Errorf("caller %d token = %q, want access-1", i, tokens[i])
		}
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", got)
	}
}

func TestGetValidAccessToken_UserNotFound(t *testing.T) {
	m := newTestManager(t, &fakeRefresher{pair: rotatingPair})

	_, err := m.GetValidAccessToken(context.Background(), 404)
	if !errors.Is(err, apperr.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetValidAccessToken_ReauthRequired(t *testing.T) {
	refresher := &fakeRefresher{pair: rotatingPair}
	m := newTestManager(t, refresher)
	link(t, m, 1, time.Now().Add(-time.Hour), time.Now().Add(-time.Minute))

	_, err := m.GetValidAccessToken(context.Background(), 1)
	if !errors.Is(err, apperr.ErrReauthRequired) {
		t.Errorf("err = %v, want ErrReauthRequired", err)
	}
	if got := refresher.calls.Load(); got != 0 {
		t.Errorf("refresh calls = %d, want 0", got)
	}
}

func TestGetValidAccessToken_RefreshFailurePropagates(t *testing.T) {
	upstream := apperr.NewStatusError("github", "refresh_token", 502, "bad gateway")
	refresher := &fakeRefresher{pair: rotatingPair, err: upstream}
	m := newTestManager(t, refresher)
	link(t, m, 1, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	ctx := context.Background()

	_, err := m.GetValidAccessToken(ctx, 1)
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	// A failed flight is not cached; the next caller tries again.
	refresher.err = nil
	token, err := m.GetValidAccessToken(ctx, 1)
	if err != nil || token != "access-2" {
		t.Errorf("retry = %q, %v; want access-2", token, err)
	}
}

func TestGetValidAccessToken_RefreshExpiryFollowsRotation(t *testing.T) {
	refreshExp := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	stampedExp := time.Now().Add(180 * 24 * time.Hour).Truncate(time.Second)

	tests := []struct {
		name        string
		returned    string
		wantRefresh string
		wantExp     time.Time
	}{
		{"omitted", "", "stored-refresh", refreshExp},
		{"echoed", "stored-refresh", "stored-refresh", refreshExp},
		{"rotated", "rotated-refresh", "rotated-refresh", stampedExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{pair: func(int32) *models.TokenPair {
				return &models.TokenPair{
					AccessToken:           "new-access",
					AccessTokenExpiresAt:  time.Now().Add(8 * time.Hour),
					RefreshToken:          tt.returned,
					RefreshTokenExpiresAt: stampedExp,
				}
			}}
			m := newTestManager(t, refresher)
			link(t, m, 1, time.Now().Add(-time.Hour), refreshExp)
			ctx := context.Background()

			if _, err := m.GetValidAccessToken(ctx, 1); err != nil {
				t.Fatalf("GetValidAccessToken() error = %v", err)
			}
			cred, err := m.store.GetCredential(ctx, 1)
			if err != nil {
				t.Fatal(err)
			}
			refreshToken, err := m.cipher.Decrypt(cred.RefreshTokenEnc)
			if err != nil {
				t.Fatal(err)
			}
			if refreshToken != tt.wantRefresh {
				t.Errorf("refresh token = %q, want %q", refreshToken, tt.wantRefresh)
			}
			if !cred.RefreshTokenExpiresAt.Equal(tt.wantExp) {
				t.Errorf("refresh expiry = %v, want %v", cred.RefreshTokenExpiresAt, tt.wantExp)
			}
		})
	}
}

func TestGetValidAccessToken_NonRotatingGitHubKeepsExpiry(t *testing.T) {
	gh := githubtest.NewServer()
	t.Cleanup(gh.Close)
	gh.AddUser(1, "octocat", "", "stored-refresh")
	gh.KeepRefreshTokens()

	m := newTestManager(t, gh.Client())
	refreshExp := time.Now().Add(time.Hour).Truncate(time.Second)
	link(t, m, 1, time.Now().Add(-time.Minute), refreshExp)
	ctx := context.Background()

	token, err := m.GetValidAccessToken(ctx, 1)
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if token != "access-1-1" {
		t.Errorf("token = %q, want access-1-1", token)
	}
	cred, err := m.store.GetCredential(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if refreshToken, _ := m.cipher.Decrypt(cred.RefreshTokenEnc); refreshToken != "stored-refresh" {
		t.Errorf("refresh token = %q, want stored-refresh", refreshToken)
	}
	if !cred.RefreshTokenExpiresAt.Equal(refreshExp) {
		t.Errorf("refresh expiry = %v, want %v (not extended)", cred.RefreshTokenExpiresAt, refreshExp)
	}
}

func TestGetValidAccessToken_AgainstGitHub(t *testing.T) {
	gh := githubtest.NewServer()
	t.Cleanup(gh.Close)
	gh.AddUser(1, "octocat", "", "stored-refresh")

	m := newTestManager(t, gh.Client())
	link(t, m, 1, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	ctx := context.Background()

	token, err := m.GetValidAccessToken(ctx, 1)
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if token != "access-1-1" {
		t.Errorf("token = %q, want access-1-1", token)
	}

	// The rotated refresh token was stored; the old one is dead upstream.
	token, err = m.GetValidAccessToken(ctx, 1)
	if err != nil || token != "access-1-1" {
		t.Errorf("second call = %q, %v", token, err)
	}
	if got := gh.Calls("refresh"); got != 1 {
		t.Errorf("upstream refreshes = %d, want 1", got)
	}
}

func TestGetValidAccessToken_DeadRefreshTokenUpstream(t *testing.T) {
	gh := githubtest.NewServer()
	t.Cleanup(gh.Close)

	m := newTestManager(t, gh.Client())
	link(t, m, 1, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))

	_, err := m.GetValidAccessToken(context.Background(), 1)
	if !errors.Is(err, apperr.ErrReauthRequired) {
		t.Errorf("err = %v, want ErrReauthRequired", err)
	}
}
