// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package delivery pushes attendance batches to the backend API.
//
// HTTPClient issues exactly one POST per call; retry policy belongs to the
// sync orchestrator. BreakerClient optionally wraps it with a
// sony/gobreaker circuit breaker so a dead backend is not hammered on
// every run. Failures of either are reported as *DeliveryError.
package delivery
