// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

type fakeController struct {
	status   syncpkg.Status
	accept   bool
	triggers atomic.Int32
	lastReq  atomic.Value
}

func (f *fakeController) Status() syncpkg.Status { return f.status }

func (f *fakeController) Trigger(ctx context.Context) bool {
	f.triggers.Add(1)
	f.lastReq.Store(logging.RequestIDFromContext(ctx))
	return f.accept
}

func newTestServer(t *testing.T, ctrl *fakeController, cfg RouterConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(ctrl, cfg).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	success := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status syncpkg.Status
		want   string
	}{
		{"healthy", syncpkg.Status{LastSuccessAt: &success}, "healthy"},
		{"degraded", syncpkg.Status{ConsecutiveFailures: 2}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, &fakeController{status: tt.status}, RouterConfig{})
			resp, err := http.Get(srv.URL + "/healthz")
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status code = %d", resp.StatusCode)
			}
			body := decode(t, resp)
			data, _ := body.Data.(map[string]interface{})
			if data["status"] != tt.want {
				t.Errorf("health status = %v, want %s", data["status"], tt.want)
			}
		})
	}
}

func TestSyncStatus(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{status: syncpkg.Status{
		LastOutcome:   syncpkg.OutcomeDelivered,
		LastRunID:     "1a2b3c4d",
		LastDelivered: 12,
	}}
	srv := newTestServer(t, ctrl, RouterConfig{})

	resp, err := http.Get(srv.URL + "/api/v1/sync/status")
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("security header = %q", got)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
	body := decode(t, resp)
	data, _ := body.Data.(map[string]interface{})
	if data["last_outcome"] != "delivered" || data["last_run_id"] != "1a2b3c4d" {
		t.Errorf("data = %v", data)
	}
	if data["last_delivered"] != float64(12) {
		t.Errorf("last_delivered = %v", data["last_delivered"])
	}
}

func TestSyncTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		accept   bool
		wantCode int
	}{
		{"started", true, http.StatusAccepted},
		{"in progress", false, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := &fakeController{accept: tt.accept}
			srv := newTestServer(t, ctrl, RouterConfig{})

			resp, err := http.Post(srv.URL+"/api/v1/sync/trigger", "application/json", nil)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			body := decode(t, resp)
			if !tt.accept && (body.Error == nil || body.Error.Code != "SYNC_IN_PROGRESS") {
				t.Errorf("error = %+v", body.Error)
			}
			if ctrl.triggers.Load() != 1 {
				t.Errorf("triggers = %d", ctrl.triggers.Load())
			}
			if id, _ := ctrl.lastReq.Load().(string); id == "" {
				t.Error("trigger context has no request id")
			}
		})
	}
}

func TestSyncTrigger_RateLimited(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{accept: true}
	srv := newTestServer(t, ctrl, RouterConfig{TriggerRateLimit: 2, TriggerWindow: time.Hour})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/api/v1/sync/trigger", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if ctrl.triggers.Load() != 2 {
		t.Errorf("triggers = %d, want 2", ctrl.triggers.Load())
	}
}

func TestRouting(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{}, RouterConfig{})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodGet, "/api/v1/sync/trigger", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/sync/status", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(""))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestAccessLog_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	counter := metrics.AdminRequests.WithLabelValues(http.MethodGet, "/api/v1/sync/status", "200")
	before := testutil.ToFloat64(counter)

	srv := newTestServer(t, &fakeController{}, RouterConfig{})
	resp, err := http.Get(srv.URL + "/api/v1/sync/status?verbose=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(counter) - before; got < 1 {
		t.Errorf("admin request counter delta = %v", got)
	}
}
