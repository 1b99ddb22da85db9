// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// Notifier delivers an operator alert. Callers treat errors as
// informational: a failed notification never changes a sync outcome.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, subject, message string) error
}

// Results recorded in the notifications_total metric.
const (
	resultSent    = "sent"
	resultSkipped = "skipped"
	resultFailed  = "failed"
)

// Multi fans a notification out to every channel. All channels are
// attempted; their errors are joined.
type Multi []Notifier

// Name implements Notifier.
func (m Multi) Name() string { return "multi" }

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, subject, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the log. It is always part of the
// fan-out so an alert is visible even when no remote channel is set up.
type LogNotifier struct{}

// Name implements Notifier.
func (LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (LogNotifier) Notify(ctx context.Context, subject, message string) error {
	logging.Ctx(ctx).Warn().Str("subject", subject).Str("message", message).Msg("Notification")
	metrics.RecordNotification("log", resultSent)
	return nil
}
