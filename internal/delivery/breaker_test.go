// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/punchsync/internal/attendance"
	"github.com/tomtom215/punchsync/internal/config"
)

type stubClient struct {
	calls atomic.Int32
	err   error
}

func (s *stubClient) Post(context.Context, attendance.Batch) error {
	s.calls.Add(1)
	return s.err
}

func breakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		Enabled:     true,
		MaxFailures: 2,
		MaxRequests: 1,
		Timeout:     time.Hour,
	}
}

func TestBreakerClient_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubClient{err: &DeliveryError{StatusCode: 503}}
	b := NewBreakerClient(stub, breakerConfig())

	for i := 0; i < 2; i++ {
		var de *DeliveryError
		if err := b.Post(context.Background(), testBatch()); !errors.As(err, &de) || de.StatusCode != 503 {
			t.Fatalf("attempt %d: err = %v", i+1, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("state = %s, want open", b.State())
	}

	err := b.Post(context.Background(), testBatch())
	var de *DeliveryError
	if !errors.As(err, &de) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("open breaker err = %v", err)
	}
	if stub.calls.Load() != 2 {
		t.Errorf("backend called %d times, want 2", stub.calls.Load())
	}
}

func TestBreakerClient_SuccessResetsCount(t *testing.T) {
	stub := &stubClient{err: errors.New("transient")}
	b := NewBreakerClient(stub, breakerConfig())

	_ = b.Post(context.Background(), testBatch())
	stub.err = nil
	if err := b.Post(context.Background(), testBatch()); err != nil {
		t.Fatalf("Post: %v", err)
	}
	stub.err = errors.New("transient")
	_ = b.Post(context.Background(), testBatch())

	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerClient_CancellationIsNotAFailure(t *testing.T) {
	stub := &stubClient{err: context.Canceled}
	b := NewBreakerClient(stub, breakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Post(context.Background(), testBatch())
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestStateToFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		want  float64
		name  string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
	}
	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.want {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.want)
		}
		if got := stateToString(tt.state); got != tt.name {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.name)
		}
	}
}
