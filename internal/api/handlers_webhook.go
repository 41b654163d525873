// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/metrics"
	"github.com/SuperSonnix71/github-invite-plus/internal/webhooks"
)

// GitHub webhook headers.
const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

// maxWebhookBody matches GitHub's payload cap.
const maxWebhookBody = 25 << 20

// Webhook outcomes beyond the reactor's own.
const (
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

// GitHubWebhook receives GitHub deliveries. Every delivery must carry a valid
// signature, and without WEBHOOK_SECRET the endpoint answers 503. Deliveries
// are applied at most once per X-GitHub-Delivery id; a failed delivery
// releases its claim so that GitHub's redelivery is processed.
func (h *Handler) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	event := r.Header.Get(headerEvent)
	deliveryID := r.Header.Get(headerDelivery)

	log := logging.Ctx(r.Context()).With().
		Str("event", logging.SanitizeValue(event)).
		Str("delivery_id", logging.SanitizeValue(deliveryID)).
		Logger()

	if !h.cfg.WebhooksEnabled() {
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeRejected).Inc()
		rw.ServiceUnavailable("Webhooks not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeRejected).Inc()
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Webhook payload too large")
		return
	}

	if !webhooks.VerifySignature(body, r.Header.Get(headerSignature), h.cfg.Webhook.Secret) {
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeRejected).Inc()
		log.Warn().Msg("Webhook signature verification failed")
		rw.Error(http.StatusUnauthorized, ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	if event == "" || deliveryID == "" {
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeRejected).Inc()
		rw.BadRequest("Missing X-GitHub-Event or X-GitHub-Delivery header")
		return
	}

	if err := h.deps.Deliveries.Claim(r.Context(), deliveryID, event); err != nil {
		if errors.Is(err, webhooks.ErrDeliveryAlreadyProcessed) {
			metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeDuplicate).Inc()
			log.Debug().Msg("Duplicate webhook delivery ignored")
			rw.Success(map[string]string{"outcome": outcomeDuplicate})
			return
		}
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeError).Inc()
		log.Error().Err(err).Msg("Failed to record webhook delivery")
		rw.ServiceUnavailable("Delivery tracking unavailable")
		return
	}

	outcome, err := h.deps.Reactor.Handle(r.Context(), event, body)
	if err != nil {
		if relErr := h.deps.Deliveries.Release(r.Context(), deliveryID); relErr != nil {
			log.Warn().Err(relErr).Msg("Failed to release webhook delivery")
		}
		if errors.Is(err, webhooks.ErrMalformedPayload) {
			metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeRejected).Inc()
			rw.BadRequest("Malformed webhook payload")
			return
		}
		metrics.WebhookEvents.WithLabelValues(metricEvent(event), outcomeError).Inc()
		log.Error().Err(err).Msg("Webhook handling failed")
		rw.InternalError("Webhook handling failed")
		return
	}

	metrics.WebhookEvents.WithLabelValues(metricEvent(event), string(outcome)).Inc()
	log.Info().Str("outcome", string(outcome)).Msg("Webhook processed")
	rw.Success(map[string]string{"outcome": string(outcome)})
}

// metricEvent bounds the event label to the events the reactor knows.
func metricEvent(event string) string {
	switch event {
	case webhooks.EventPush, webhooks.EventRepository, webhooks.EventAppAuthorization, webhooks.EventPing:
		return event
	case "":
		return "none"
	default:
		return "other"
	}
}
