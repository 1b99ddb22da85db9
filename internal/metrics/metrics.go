// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "punchsync"

var (
	// Sync run metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of orchestrator runs by outcome",
		},
		[]string{"outcome"}, // "skipped", "no_new_data", "delivered", "device_failure", "delivery_failure", "unexpected"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of orchestrator runs in seconds, retries included",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_delivered_total",
			Help:      "Total number of attendance events accepted by the backend",
		},
	)

	SyncEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_dropped_total",
			Help:      "Raw device records discarded before delivery",
		},
		[]string{"reason"}, // "malformed", "incomplete"
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_batch_size",
			Help:      "Number of events in delivered batches",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_success_timestamp",
			Help:      "Unix timestamp of the last run that ended delivered or with no new data",
		},
	)

	SyncConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_consecutive_failures",
			Help:      "Number of consecutive failed runs",
		},
	)

	WatermarkTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_timestamp",
			Help:      "Unix timestamp of the persisted watermark",
		},
	)

	WatermarkSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watermark_save_errors_total",
			Help:      "Total number of failed watermark saves",
		},
	)

	// Device metrics
	DeviceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Total number of device session errors",
		},
		[]string{"operation"}, // "connect", "disable", "read", "enable", "disconnect"
	)

	DeviceRecordsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_records_read_total",
			Help:      "Total number of raw records read from the terminal",
		},
	)

	// Delivery metrics
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of delivery attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single delivery request in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_consecutive_failures",
			Help:      "Current consecutive failure count seen by the breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Notification metrics
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by channel and result",
		},
		[]string{"channel", "result"}, // result: "sent", "skipped", "failed"
	)

	// Admin HTTP metrics
	AdminRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_requests_total",
			Help:      "Admin HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	AdminRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admin_request_duration_seconds",
			Help:      "Admin HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordSyncRun records the end of an orchestrator run.
// A run counts as successful when it delivered a batch or found nothing new.
func RecordSyncRun(outcome string, duration time.Duration, delivered int, success bool) {
	SyncRuns.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	SyncDuration.Observe(duration.Seconds())
	if delivered > 0 {
		SyncEventsDelivered.Add(float64(delivered))
		SyncBatchSize.Observe(float64(delivered))
	}
	if success {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordDeliveryAttempt records one delivery request.
func RecordDeliveryAttempt(duration time.Duration, err error) {
	DeliveryDuration.Observe(duration.Seconds())
	if err != nil {
		DeliveryAttempts.WithLabelValues("failure").Inc()
		return
	}
	DeliveryAttempts.WithLabelValues("success").Inc()
}

// RecordWatermark publishes the persisted watermark.
func RecordWatermark(t time.Time) {
	if t.IsZero() {
		return
	}
	WatermarkTimestamp.Set(float64(t.Unix()))
}

// RecordNotification records a notification attempt on one channel.
func RecordNotification(channel, result string) {
	Notifications.WithLabelValues(channel, result).Inc()
}

// RecordAdminRequest records one admin HTTP request. route is the chi
// route pattern, never the raw path, to keep label cardinality bounded.
func RecordAdminRequest(method, route, status string, duration time.Duration) {
	AdminRequests.WithLabelValues(method, route, status).Inc()
	AdminRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
