// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"errors"
	"time"
)

// ErrUnexpected marks failures that are neither device nor delivery
// errors, including recovered panics. They are not retried.
var ErrUnexpected = errors.New("unexpected sync error")

// OutcomeKind is the terminal state of one orchestrator run.
type OutcomeKind string

const (
	// OutcomeSkipped: another run held the guard; nothing was done.
	OutcomeSkipped OutcomeKind = "skipped"

	// OutcomeNoNewData: the device had nothing newer than the watermark.
	OutcomeNoNewData OutcomeKind = "no_new_data"

	// OutcomeDelivered: a batch was accepted by the backend.
	OutcomeDelivered OutcomeKind = "delivered"

	// OutcomeDeviceFailure: retries exhausted, last failure on the device side.
	OutcomeDeviceFailure OutcomeKind = "device_failure"

	// OutcomeDeliveryFailure: retries exhausted, last failure on delivery.
	OutcomeDeliveryFailure OutcomeKind = "delivery_failure"

	// OutcomeUnexpected: an unclassified error or panic aborted the run.
	OutcomeUnexpected OutcomeKind = "unexpected"
)

// Outcome describes one Run.
type Outcome struct {
	Kind  OutcomeKind
	RunID string

	// Attempts is the number of outer attempts made.
	Attempts int

	// Delivered is the batch size on success.
	Delivered int

	// Dropped counts raw records rejected while building the batch.
	Dropped int

	// Watermark is the committed watermark after a delivery.
	Watermark time.Time

	// WatermarkSaved is false when delivery succeeded but Save failed.
	WatermarkSaved bool

	Err error

	StartedAt time.Time
	Duration  time.Duration
}

// Success reports whether the run finished without a failure. Skipped runs
// are neither success nor failure and report false.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeDelivered || o.Kind == OutcomeNoNewData
}

// Failed reports whether the run ended in a failure outcome.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case OutcomeDeviceFailure, OutcomeDeliveryFailure, OutcomeUnexpected:
		return true
	default:
		return false
	}
}

// Status is a snapshot of the manager for the admin API.
type Status struct {
	Running             bool        `json:"running"`
	LastOutcome         OutcomeKind `json:"last_outcome,omitempty"`
	LastRunID           string      `json:"last_run_id,omitempty"`
	LastRunAt           *time.Time  `json:"last_run_at,omitempty"`
	LastSuccessAt       *time.Time  `json:"last_success_at,omitempty"`
	LastError           string      `json:"last_error,omitempty"`
	LastDelivered       int         `json:"last_delivered"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	Watermark           *time.Time  `json:"watermark,omitempty"`
}
