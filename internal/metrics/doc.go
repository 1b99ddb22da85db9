// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package metrics defines the Prometheus instrumentation of punchsync.

All collectors are package-level promauto variables registered on the
default registry and exposed by the admin HTTP server at /metrics:

	curl http://127.0.0.1:9105/metrics

# Available Metrics

Sync:
  - punchsync_sync_runs_total{outcome}
  - punchsync_sync_duration_seconds
  - punchsync_sync_events_delivered_total
  - punchsync_sync_events_dropped_total{reason}
  - punchsync_sync_batch_size
  - punchsync_sync_last_success_timestamp
  - punchsync_sync_consecutive_failures
  - punchsync_watermark_timestamp
  - punchsync_watermark_save_errors_total

Device and delivery:
  - punchsync_device_errors_total{operation}
  - punchsync_device_records_read_total
  - punchsync_delivery_attempts_total{result}
  - punchsync_delivery_duration_seconds

Circuit breaker (label name):
  - punchsync_circuit_breaker_state (0=closed, 1=half-open, 2=open)
  - punchsync_circuit_breaker_requests_total{result}
  - punchsync_circuit_breaker_consecutive_failures
  - punchsync_circuit_breaker_transitions_total{from,to}

Notifications:
  - punchsync_notifications_total{channel,result}

# Alerting

A useful starting point:

	time() - punchsync_sync_last_success_timestamp > 3 * 300
	punchsync_sync_consecutive_failures >= 3
*/
package metrics
