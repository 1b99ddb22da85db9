// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package api serves the optional admin HTTP endpoints.

Routes (chi):

	GET  /healthz               liveness plus a sync summary
	GET  /metrics               Prometheus exposition
	GET  /api/v1/sync/status    sync.Status snapshot
	POST /api/v1/sync/trigger   start a run now (202) or 409 if one is running

The trigger endpoint is rate limited per client IP with go-chi/httprate.
Triggered runs go through the same single-flight guard as scheduled runs.
There is no authentication; bind the server to a loopback or management
address.
*/
package api
