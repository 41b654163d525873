// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package apperr holds the error taxonomy shared by the background engine.
//
// Callers classify failures with errors.Is against the sentinels below.
// Upstream failures carry their HTTP status in an *UpstreamError, which
// unwraps to ErrUpstreamUnavailable or ErrUpstreamRejected.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnavailable is a transient provider failure (network, 5xx, 429).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected is a permanent rejection (401, 403, 404, 422).
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrReauthRequired means the refresh token has expired.
	ErrReauthRequired = errors.New("refresh token expired; re-auth required")

	// ErrUserNotFound means no credential row exists for the identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrTruncatedOrOversized means a tree cannot be indexed completely.
	ErrTruncatedOrOversized = errors.New("repository tree cannot be indexed")

	// ErrTransientContent is an unreadable blob (unsupported encoding).
	ErrTransientContent = errors.New("blob content unavailable")
)

// UpstreamError describes a failed call to GitHub or the search engine.
type UpstreamError struct {
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// Error implements error.
func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Operation, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d", e.Service, e.Operation, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Service, e.Operation, e.Err)
	default:
		return fmt.Sprintf("%s %s failed", e.Service, e.Operation)
	}
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	errs := []error{e.class()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *UpstreamError) class() error {
	if e.StatusCode == 0 {
		return ErrUpstreamUnavailable
	}
	return ClassifyStatus(e.StatusCode)
}

// Retryable reports whether the failure is transient.
func (e *UpstreamError) Retryable() bool {
	return errors.Is(e.class(), ErrUpstreamUnavailable)
}

// ClassifyStatus maps an HTTP status to ErrUpstreamUnavailable or
// ErrUpstreamRejected. Unlisted 4xx codes are treated as rejections.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrUpstreamUnavailable
	case status >= 500:
		return ErrUpstreamUnavailable
	default:
		return ErrUpstreamRejected
	}
}

// NewStatusError builds an UpstreamError for a non-success HTTP response.
func NewStatusError(service, operation string, status int, message string) *UpstreamError {
	return &UpstreamError{Service: service, Operation: operation, StatusCode: status, Message: message}
}

// NewTransportError builds an UpstreamError for a failure before any response.
func NewTransportError(service, operation string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Operation: operation, Err: err}
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Truncated wraps a formatted message in ErrTruncatedOrOversized.
func Truncated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTruncatedOrOversized, fmt.Sprintf(format, args...))
}
