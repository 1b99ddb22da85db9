// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/metrics"
)

// WebhookNotifier posts notifications as JSON to a generic webhook.
type WebhookNotifier struct {
	url    string
	entity string
	client *http.Client
	now    func() time.Time
}

// WebhookPayload is the JSON body sent to the webhook endpoint.
type WebhookPayload struct {
	EventType string    `json:"event_type"` // sync_alert
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Level     string    `json:"level"` // alert, warning, info
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url, entity string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		entity: entity,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Name implements Notifier.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, subject, message string) error {
	body, err := json.Marshal(WebhookPayload{
		EventType: "sync_alert",
		Subject:   subject,
		Message:   message,
		Level:     levelName(classify(subject, message)),
		Source:    n.entity,
		Timestamp: n.now().UTC(),
	})
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	metrics.RecordNotification(n.Name(), resultSent)
	return nil
}

func levelName(l alertLevel) string {
	switch l {
	case levelAlert:
		return "alert"
	case levelWarning:
		return "warning"
	default:
		return "info"
	}
}
