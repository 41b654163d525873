// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

// GitHub event names.
const (
	EventPush             = "push"
	EventRepository       = "repository"
	EventAppAuthorization = "github_app_authorization"
	EventPing             = "ping"
)

const (
	signaturePrefix = "sha256="
	branchRefPrefix = "refs/heads/"
)

// Outcome labels a processed delivery.
type Outcome string

const (
	OutcomeHandled Outcome = "handled"
	OutcomeIgnored Outcome = "ignored"
)

// ErrMalformedPayload is returned for a body that is not valid JSON.
var ErrMalformedPayload = errors.New("malformed webhook payload")

type repository struct {
	FullName string `json:"full_name"`
}

type sender struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type pushEvent struct {
	Ref        string     `json:"ref"`
	Deleted    bool       `json:"deleted"`
	Repository repository `json:"repository"`
	Sender     sender     `json:"sender"`
}

type actionEvent struct {
	Action     string     `json:"action"`
	Repository repository `json:"repository"`
	Sender     sender     `json:"sender"`
}

// VerifySignature checks an X-Hub-Signature-256 header against the body.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(signature[len(signaturePrefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Handle decodes a delivery and dispatches it. Events and actions the
// reactor does not act on are reported as ignored.
func (r *Reactor) Handle(ctx context.Context, event string, body []byte) (Outcome, error) {
	switch event {
	case EventPush:
		var p pushEvent
		if err := json.Unmarshal(body, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if !strings.HasPrefix(p.Ref, branchRefPrefix) || p.Repository.FullName == "" {
			return OutcomeIgnored, nil
		}
		branch := strings.TrimPrefix(p.Ref, branchRefPrefix)
		if _, err := r.OnPush(ctx, p.Repository.FullName, branch, p.Deleted); err != nil {
			return "", err
		}
		return OutcomeHandled, nil

	case EventRepository:
		var a actionEvent
		if err := json.Unmarshal(body, &a); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if a.Action != "deleted" || a.Repository.FullName == "" {
			return OutcomeIgnored, nil
		}
		if err := r.OnResourceDeleted(ctx, a.Repository.FullName); err != nil {
			return "", err
		}
		return OutcomeHandled, nil

	case EventAppAuthorization:
		var a actionEvent
		if err := json.Unmarshal(body, &a); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if a.Action != "revoked" || a.Sender.ID <= 0 {
			return OutcomeIgnored, nil
		}
		if err := r.OnCredentialRevoked(ctx, a.Sender.ID); err != nil {
			return "", err
		}
		return OutcomeHandled, nil

	default:
		logging.Ctx(ctx).Debug().Str("event", event).Msg("Unhandled webhook event")
		return OutcomeIgnored, nil
	}
}
