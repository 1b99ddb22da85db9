// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Notification subjects. The critical subject is kept distinct so mail
// filters can route system errors separately from routine sync failures.
const (
	SubjectSyncFailed    = "ZKTeco sync failed"
	SubjectCriticalError = "ZKTeco sync critical system error"
)

// backoffDelay is the wait after failed delivery attempt n (1-indexed):
// base * 2^(n-1), saturating instead of overflowing.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

type failureReport struct {
	Endpoint            string
	Stage               string
	Attempts            int
	ConsecutiveFailures int
	Err                 error
	RunID               string
	At                  time.Time
}

// String renders the report as "key: value" lines, which the mail
// notifier turns into a table.
func (r failureReport) String() string {
	var b strings.Builder
	b.WriteString("Attendance synchronization failed after all retry attempts.\n")
	fmt.Fprintf(&b, "Device: %s\n", r.Endpoint)
	fmt.Fprintf(&b, "Stage: %s\n", r.Stage)
	fmt.Fprintf(&b, "Attempts: %d\n", r.Attempts)
	fmt.Fprintf(&b, "Consecutive failed runs: %d\n", r.ConsecutiveFailures)
	fmt.Fprintf(&b, "Last error: %s\n", oneLine(r.Err))
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "Time: %s\n", r.At.Format(time.RFC3339))
	return b.String()
}

func criticalReport(endpoint string, err error, runID string, at time.Time) string {
	var b strings.Builder
	b.WriteString("The synchronization service hit an unexpected error.\n")
	fmt.Fprintf(&b, "Device: %s\n", endpoint)
	fmt.Fprintf(&b, "Error: %s\n", oneLine(err))
	fmt.Fprintf(&b, "Run ID: %s\n", runID)
	fmt.Fprintf(&b, "Time: %s\n", at.Format(time.RFC3339))
	return b.String()
}

func oneLine(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
