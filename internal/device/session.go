// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package device

import (
	"context"
	"fmt"

	"github.com/tomtom215/punchsync/internal/attendance"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// Client is a connection to one attendance terminal.
//
// Implementations are not safe for concurrent use; the orchestrator's
// single-flight guard ensures one session at a time.
type Client interface {
	// Endpoint identifies the terminal in logs and errors (host:port).
	Endpoint() string

	Connect(ctx context.Context) error

	// DisableDevice suspends punch capture on the terminal.
	DisableDevice() error

	// ReadAttendance returns every record stored on the terminal.
	ReadAttendance() ([]attendance.RawRecord, error)

	// EnableDevice resumes punch capture.
	EnableDevice() error

	Disconnect() error
}

// Operations reported in DeviceError.Op and the device_errors_total metric.
const (
	OpConnect    = "connect"
	OpDisable    = "disable"
	OpRead       = "read"
	OpEnable     = "enable"
	OpDisconnect = "disconnect"
)

// DeviceError wraps every failure to talk to the terminal.
type DeviceError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s %s: %v", e.Endpoint, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func newDeviceError(c Client, op string, err error) *DeviceError {
	metrics.DeviceErrors.WithLabelValues(op).Inc()
	return &DeviceError{Op: op, Endpoint: c.Endpoint(), Err: err}
}

// Session is an open connection handed to the WithSession callback.
type Session struct {
	client Client
	ctx    context.Context
}

// Endpoint returns the terminal address.
func (s *Session) Endpoint() string { return s.client.Endpoint() }

// ReadAll suspends capture, reads every stored record and resumes capture.
// Capture is resumed on every exit path, including a failed suspend, a
// read error or a panic, so the terminal never stays locked.
func (s *Session) ReadAll() (records []attendance.RawRecord, err error) {
	defer func() {
		if eerr := s.client.EnableDevice(); eerr != nil {
			metrics.DeviceErrors.WithLabelValues(OpEnable).Inc()
			logging.Ctx(s.ctx).Error().Err(eerr).Str("device", s.client.Endpoint()).
				Msg("Failed to re-enable device after read")
		}
	}()

	if err := s.client.DisableDevice(); err != nil {
		return nil, newDeviceError(s.client, OpDisable, err)
	}

	records, err = s.client.ReadAttendance()
	if err != nil {
		return nil, newDeviceError(s.client, OpRead, err)
	}

	metrics.DeviceRecordsRead.Add(float64(len(records)))
	logging.Ctx(s.ctx).Debug().Int("records", len(records)).Str("device", s.client.Endpoint()).
		Msg("Read attendance records")
	return records, nil
}

// WithSession connects to the terminal, runs fn, and always closes the
// session afterwards, whether fn returns normally, fails or panics.
// Closing resumes capture and disconnects; failures while closing are
// logged and never replace fn's result. A panic in fn propagates after
// the session is closed.
//
// A connect failure is returned as *DeviceError and fn is not called.
// There is no retry here; the orchestrator owns retry policy.
func WithSession(ctx context.Context, client Client, fn func(*Session) error) error {
	if err := client.Connect(ctx); err != nil {
		return newDeviceError(client, OpConnect, err)
	}
	logging.Ctx(ctx).Info().Str("device", client.Endpoint()).Msg("Connected to device")

	defer closeSession(ctx, client)

	return fn(&Session{client: client, ctx: ctx})
}

func closeSession(ctx context.Context, client Client) {
	if err := client.EnableDevice(); err != nil {
		metrics.DeviceErrors.WithLabelValues(OpEnable).Inc()
		logging.Ctx(ctx).Error().Err(err).Str("device", client.Endpoint()).
			Msg("Failed to re-enable device while closing session")
	}
	if err := client.Disconnect(); err != nil {
		metrics.DeviceErrors.WithLabelValues(OpDisconnect).Inc()
		logging.Ctx(ctx).Error().Err(err).Str("device", client.Endpoint()).
			Msg("Failed to disconnect from device")
		return
	}
	logging.Ctx(ctx).Info().Str("device", client.Endpoint()).Msg("Disconnected from device")
}
