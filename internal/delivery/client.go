// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/punchsync/internal/attendance"
	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// TimestampLayout is the wire format of event timestamps: device-local
// wall time without an offset, as the backend has always received it.
const TimestampLayout = "2006-01-02T15:04:05"

// maxErrorBody bounds the response snippet kept in DeliveryError.
const maxErrorBody = 512

// Client pushes a batch to the backend. Implementations do not retry.
type Client interface {
	Post(ctx context.Context, batch attendance.Batch) error
}

// DeliveryError is returned for every failed push: transport errors,
// timeouts, non-200 replies and breaker rejections.
type DeliveryError struct {
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Body is a prefix of the response body.
	Body string

	Cause error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("delivery rejected: status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("delivery rejected: status %d", e.StatusCode)
	}
	return fmt.Sprintf("delivery failed: %v", e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// wireEvent is one element of the request body.
type wireEvent struct {
	Matricule string `json:"matricule"`
	Timestamp string `json:"timestamp"`
}

// encodeBatch renders the batch in order as
// [{"matricule": "...", "timestamp": "2006-01-02T15:04:05"}, ...].
func encodeBatch(batch attendance.Batch) ([]byte, error) {
	out := make([]wireEvent, len(batch.Events))
	for i, ev := range batch.Events {
		out[i] = wireEvent{
			Matricule: ev.UserID,
			Timestamp: ev.OccurredAt.Format(TimestampLayout),
		}
	}
	return json.Marshal(out)
}

// HTTPClient posts batches as JSON to the backend URL.
type HTTPClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a delivery client. A positive RateLimit enables
// an outbound token bucket.
func NewHTTPClient(cfg config.APIConfig) *HTTPClient {
	c := &HTTPClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return c
}

// Post sends one request. Only 200 OK counts as success.
func (c *HTTPClient) Post(ctx context.Context, batch attendance.Batch) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDeliveryAttempt(time.Since(start), err) }()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return &DeliveryError{Cause: fmt.Errorf("rate limiter: %w", werr)}
		}
	}

	body, err := encodeBatch(batch)
	if err != nil {
		return &DeliveryError{Cause: fmt.Errorf("failed to encode batch: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
		Cause:      fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}
