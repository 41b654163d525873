// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
	"github.com/SuperSonnix71/github-invite-plus/internal/database"
	"github.com/SuperSonnix71/github-invite-plus/internal/invites"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/search"
	"github.com/SuperSonnix71/github-invite-plus/internal/worker"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return response
}

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-1"))

	NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	response := decodeEnvelope(t, w)
	if !response.Success || response.Error != nil {
		t.Errorf("unexpected envelope %+v", response)
	}
	if response.Meta == nil || response.Meta.Timestamp.IsZero() {
		t.Fatal("Expected Meta with a timestamp")
	}
	if response.Meta.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", response.Meta.RequestID)
	}
}

func TestResponseWriter_Accepted(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewResponseWriter(w, httptest.NewRequest(http.MethodPost, "/", nil)).Accepted(IndexBranchResponse{JobID: "j"})
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestResponseWriter_Error(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-2"))

	NewResponseWriter(w, r).ValidationError("repo is required", map[string]string{"field": "Repo"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	response := decodeEnvelope(t, w)
	if response.Success || response.Error == nil {
		t.Fatalf("unexpected envelope %+v", response)
	}
	if response.Error.Code != ErrCodeValidationFailed || response.Error.RequestID != "req-2" {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"user not found", fmt.Errorf("load: %w", apperr.ErrUserNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"row not found", database.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"reauth", apperr.ErrReauthRequired, http.StatusUnauthorized, ErrCodeReauthRequired},
		{"invalid filter", fmt.Errorf("%w: %q", invites.ErrInvalidFilter, "x"), http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid target", worker.ErrInvalidTarget, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty query", search.ErrEmptyQuery, http.StatusBadRequest, ErrCodeBadRequest},
		{"upstream 403", apperr.NewStatusError("github", "list", http.StatusForbidden, "nope"), http.StatusBadGateway, ErrCodeExternalServiceFail},
		{"upstream 503", apperr.NewStatusError("github", "list", http.StatusServiceUnavailable, ""), http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"transport", apperr.NewTransportError("meilisearch", "search", errors.New("dial tcp")), http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/", nil)).serviceError(tt.err)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if got := decodeEnvelope(t, w).Error; got == nil || got.Code != tt.code {
				t.Errorf("error = %+v, want code %s", got, tt.code)
			}
		})
	}
}

func TestRateLimitCustom(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(DefaultChiMiddlewareConfig())
	handler := mw.RateLimitCustom(RateLimitConfig{Requests: 2, Window: time.Minute})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [204 204 429]", codes)
	}

	disabled := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if h := disabled.RateLimitCustom(RateLimitAuth)(next); h == nil {
		t.Error("disabled limiter returned nil handler")
	}
}
