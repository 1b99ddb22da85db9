// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// gaugeValue reads a gauge through the client_model protobuf.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecordSyncRun(t *testing.T) {
	tests := []struct {
		name        string
		outcome     string
		delivered   int
		success     bool
		wantEvents  float64
		wantSuccess bool
	}{
		{name: "delivered", outcome: "delivered", delivered: 7, success: true, wantEvents: 7, wantSuccess: true},
		{name: "no new data", outcome: "no_new_data", success: true, wantSuccess: true},
		{name: "device failure", outcome: "device_failure"},
		{name: "skipped", outcome: "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SyncLastSuccess.Set(0)
			beforeRuns := testutil.ToFloat64(SyncRuns.WithLabelValues(tt.outcome))
			beforeEvents := testutil.ToFloat64(SyncEventsDelivered)

			RecordSyncRun(tt.outcome, 2*time.Second, tt.delivered, tt.success)

			if got := testutil.ToFloat64(SyncRuns.WithLabelValues(tt.outcome)) - beforeRuns; got != 1 {
				t.Errorf("runs delta = %v, want 1", got)
			}
			if got := testutil.ToFloat64(SyncEventsDelivered) - beforeEvents; got != tt.wantEvents {
				t.Errorf("events delta = %v, want %v", got, tt.wantEvents)
			}
			last := gaugeValue(t, SyncLastSuccess)
			if tt.wantSuccess && last == 0 {
				t.Error("expected last success timestamp to be set")
			}
			if !tt.wantSuccess && last != 0 {
				t.Errorf("expected last success untouched, got %v", last)
			}
		})
	}
}

func TestRecordDeliveryAttempt(t *testing.T) {
	okBefore := testutil.ToFloat64(DeliveryAttempts.WithLabelValues("success"))
	failBefore := testutil.ToFloat64(DeliveryAttempts.WithLabelValues("failure"))

	RecordDeliveryAttempt(10*time.Millisecond, nil)
	RecordDeliveryAttempt(10*time.Millisecond, errors.New("status 500"))
	RecordDeliveryAttempt(10*time.Millisecond, errors.New("timeout"))

	if got := testutil.ToFloat64(DeliveryAttempts.WithLabelValues("success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DeliveryAttempts.WithLabelValues("failure")) - failBefore; got != 2 {
		t.Errorf("failure delta = %v, want 2", got)
	}
}

func TestRecordWatermark(t *testing.T) {
	ts := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	RecordWatermark(ts)
	if got := gaugeValue(t, WatermarkTimestamp); got != float64(ts.Unix()) {
		t.Errorf("watermark gauge = %v, want %v", got, ts.Unix())
	}

	// Zero time leaves the gauge alone.
	RecordWatermark(time.Time{})
	if got := gaugeValue(t, WatermarkTimestamp); got != float64(ts.Unix()) {
		t.Errorf("watermark gauge changed on zero time: %v", got)
	}
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(Notifications.WithLabelValues("mail", "skipped"))
	RecordNotification("mail", "skipped")
	if got := testutil.ToFloat64(Notifications.WithLabelValues("mail", "skipped")) - before; got != 1 {
		t.Errorf("notifications delta = %v, want 1", got)
	}
}

// TestMetricGathering checks the default registry can be gathered and linted.
func TestMetricGathering(t *testing.T) {
	RecordSyncRun("delivered", time.Second, 1, true)
	CircuitBreakerState.WithLabelValues("delivery").Set(0)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, p := range problems {
		t.Logf("metric lint problem in %s: %s", p.Metric, p.Text)
	}
}

func TestRecordAdminRequest(t *testing.T) {
	counter := AdminRequests.WithLabelValues("POST", "/api/v1/sync/trigger", "202")
	before := testutil.ToFloat64(counter)

	RecordAdminRequest("POST", "/api/v1/sync/trigger", "202", 3*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("admin requests delta = %v, want 1", got)
	}
}
