// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package attendance normalizes raw terminal records into delivery batches.
//
// BuildBatch is pure: it parses textual records, drops unusable ones,
// filters by watermark, deduplicates and sorts. The orchestrator calls it
// while the device session is open and logs whatever it reports as dropped.
package attendance
