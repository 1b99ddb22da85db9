// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package sync orchestrates attendance synchronization.

A Manager run moves through

	Idle -> Running -> {Delivered, NoNewData, DeviceFailure, DeliveryFailure, Unexpected}

and is protected by a single-flight guard acquired with TryLock: an
overlapping trigger returns OutcomeSkipped and performs no I/O.

Retry policy:

  - outer loop (device): up to MaxRetries attempts, flat RetryDelay between
  - inner loop (delivery): up to MaxRetries attempts per outer attempt,
    waiting BaseDelay * 2^(n-1) after failed attempt n

After a delivery the watermark is set to the newest delivered occurred_at.
A failed save is logged and the run still counts as delivered, so the next
run re-sends (at-least-once).

When all outer attempts fail, exactly one notification is sent with
subject SubjectSyncFailed. Errors outside the device/delivery taxonomy and
recovered panics end the run as OutcomeUnexpected, logged with
severity=critical and notified under SubjectCriticalError.

Scheduler drives a Manager periodically as a suture service (first run at
startup), or once via RunOnce when the configured interval is zero.
*/
package sync
