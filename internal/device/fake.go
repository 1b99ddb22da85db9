// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/punchsync/internal/attendance"
)

// FakeClient is an in-memory Client for tests of code that drives a
// terminal. Static errors apply to every call; the On* hooks receive the
// 1-based call number and take precedence when set.
type FakeClient struct {
	Addr    string
	Records []attendance.RawRecord

	ConnectErr    error
	DisableErr    error
	ReadErr       error
	EnableErr     error
	DisconnectErr error

	OnConnect func(n int) error
	OnRead    func(n int) ([]attendance.RawRecord, error)

	mu    sync.Mutex
	calls []string

	connects    atomic.Int32
	reads       atomic.Int32
	enables     atomic.Int32
	disconnects atomic.Int32
}

var _ Client = (*FakeClient)(nil)

// Endpoint implements Client.
func (f *FakeClient) Endpoint() string {
	if f.Addr == "" {
		return "fake:4370"
	}
	return f.Addr
}

// Connect implements Client.
func (f *FakeClient) Connect(_ context.Context) error {
	n := int(f.connects.Add(1))
	f.record(OpConnect)
	if f.OnConnect != nil {
		return f.OnConnect(n)
	}
	return f.ConnectErr
}

// DisableDevice implements Client.
func (f *FakeClient) DisableDevice() error {
	f.record(OpDisable)
	return f.DisableErr
}

// ReadAttendance implements Client.
func (f *FakeClient) ReadAttendance() ([]attendance.RawRecord, error) {
	n := int(f.reads.Add(1))
	f.record(OpRead)
	if f.OnRead != nil {
		return f.OnRead(n)
	}
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return f.Records, nil
}

// EnableDevice implements Client.
func (f *FakeClient) EnableDevice() error {
	f.enables.Add(1)
	f.record(OpEnable)
	return f.EnableErr
}

// Disconnect implements Client.
func (f *FakeClient) Disconnect() error {
	f.disconnects.Add(1)
	f.record(OpDisconnect)
	return f.DisconnectErr
}

// Calls returns the operations invoked so far, in order.
func (f *FakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Connects returns the number of Connect calls.
func (f *FakeClient) Connects() int { return int(f.connects.Load()) }

// Reads returns the number of ReadAttendance calls.
func (f *FakeClient) Reads() int { return int(f.reads.Load()) }

// Enables returns the number of EnableDevice calls.
func (f *FakeClient) Enables() int { return int(f.enables.Load()) }

// Disconnects returns the number of Disconnect calls.
func (f *FakeClient) Disconnects() int { return int(f.disconnects.Load()) }

func (f *FakeClient) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}
