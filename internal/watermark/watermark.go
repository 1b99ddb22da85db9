// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Store persists the watermark: the occurred_at of the latest event the
// backend has accepted.
type Store interface {
	// Load returns the stored watermark. ok is false when nothing usable is
	// stored (first run, truncated or corrupt state); the cause is logged,
	// never returned.
	Load(ctx context.Context) (t time.Time, ok bool)

	// Save replaces the stored watermark. Failures are *PersistenceError.
	Save(ctx context.Context, t time.Time) error
}

// PersistenceError reports a failed watermark write. Callers treat it as
// non-fatal: the next delivery re-sends events instead of losing them.
type PersistenceError struct {
	Op       string
	Location string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("watermark %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// document is the persisted layout shared by every backend:
//
//	{"last_sync": "2026-05-04T08:01:02+01:00"}
type document struct {
	LastSync string `json:"last_sync"`
}

// ErrEmptyState is returned by decode when the document has no timestamp.
var ErrEmptyState = errors.New("watermark state has no last_sync value")

// legacyLayouts are offset-less layouts written by earlier deployments.
// Fractional seconds are accepted by time.Parse without being in the layout.
var legacyLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func encode(t time.Time) ([]byte, error) {
	return json.Marshal(document{LastSync: t.Format(time.RFC3339Nano)})
}

// decode parses a persisted document. Offset-less timestamps are read in loc.
func decode(data []byte, loc *time.Location) (time.Time, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("decode watermark: %w", err)
	}
	raw := strings.TrimSpace(doc.LastSync)
	if raw == "" {
		return time.Time{}, ErrEmptyState
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("decode watermark: unrecognized timestamp %q", raw)
}
