// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/breaker"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// Lifetimes GitHub Apps use when the token response omits them.
const (
	defaultAccessTokenTTL  = 8 * time.Hour
	defaultRefreshTokenTTL = 15897600 * time.Second
)

// AuthCodeURL returns the GitHub authorization URL for state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenPair, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	return c.tokenCall(ctx, "exchange_code", func(ctx context.Context) (*oauth2.Token, error) {
		return c.oauth.Exchange(ctx, code, opts...)
	})
}

// RefreshToken trades a refresh token for a new token pair. GitHub rotates
// the refresh token on every use.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return c.tokenCall(ctx, "refresh_token", func(ctx context.Context) (*oauth2.Token, error) {
		// An empty access token forces the source to hit the token endpoint.
		return c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	})
}

func (c *Client) tokenCall(ctx context.Context, operation string, call func(context.Context) (*oauth2.Token, error)) (*models.TokenPair, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.NewTransportError(serviceName, operation, err)
	}

	// x/oauth2 picks its HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := breaker.Execute(c.breaker, func() (*oauth2.Token, error) {
		start := time.Now()
		tok, err := call(ctx)
		if err != nil {
			err = classifyTokenError(operation, err)
			metrics.RecordUpstreamRequest(serviceName, operation, apperr.StatusCode(err), time.Since(start))
			return nil, err
		}
		metrics.RecordUpstreamRequest(serviceName, operation, http.StatusOK, time.Since(start))
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return c.tokenPair(tok), nil
}

func (c *Client) tokenPair(tok *oauth2.Token) *models.TokenPair {
	now := c.now().UTC()

	accessExp := tok.Expiry.UTC()
	if tok.Expiry.IsZero() {
		accessExp = now.Add(defaultAccessTokenTTL)
	}

	refreshTTL := defaultRefreshTokenTTL
	if secs, ok := extraSeconds(tok.Extra("refresh_token_expires_in")); ok {
		refreshTTL = time.Duration(secs) * time.Second
	}

	return &models.TokenPair{
		AccessToken:           tok.AccessToken,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          tok.RefreshToken,
		RefreshTokenExpiresAt: now.Add(refreshTTL),
	}
}

// extraSeconds reads a numeric token response field, which arrives as a
// float64 from JSON bodies and as a string from form-encoded ones.
func extraSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n > 0
	case string:
		secs, err := strconv.ParseInt(n, 10, 64)
		return secs, err == nil && secs > 0
	default:
		return 0, false
	}
}

// classifyTokenError maps x/oauth2 failures onto the upstream taxonomy.
// GitHub answers bad codes and dead refresh tokens with an error body, often
// under a 200 status.
func classifyTokenError(operation string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return apperr.NewTransportError(serviceName, operation, err)
	}

	status := http.StatusBadRequest
	if re.Response != nil && re.Response.StatusCode >= 400 {
		status = re.Response.StatusCode
	}
	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}

	ue := apperr.NewStatusError(serviceName, operation, status, msg)
	if re.ErrorCode == "bad_refresh_token" {
		ue.Err = apperr.ErrReauthRequired
	}
	return ue
}
