// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package attendance

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RawRecord is a punch as returned by the terminal, before filtering.
//
// Binary firmwares fill UserID and Timestamp. Textual firmwares only fill
// Line, which is parsed by BuildBatch.
type RawRecord struct {
	UserID    string
	Timestamp time.Time
	Line      string
}

// Event is a normalized attendance punch.
type Event struct {
	UserID     string
	OccurredAt time.Time
}

// Batch is the ordered, deduplicated set of events newer than the watermark.
type Batch struct {
	Events []Event
}

// Len returns the number of events in the batch.
func (b Batch) Len() int { return len(b.Events) }

// Empty reports whether the batch has nothing to deliver.
func (b Batch) Empty() bool { return len(b.Events) == 0 }

// MaxOccurredAt returns the latest event time, which becomes the next
// watermark once the batch is delivered. ok is false for an empty batch.
func (b Batch) MaxOccurredAt() (latest time.Time, ok bool) {
	for _, ev := range b.Events {
		if !ok || ev.OccurredAt.After(latest) {
			latest = ev.OccurredAt
			ok = true
		}
	}
	return latest, ok
}

// Drop reasons reported in Dropped.Reason.
const (
	DropMalformed  = "malformed"
	DropIncomplete = "incomplete"
)

// Dropped describes a raw record BuildBatch discarded.
type Dropped struct {
	Record RawRecord
	Reason string
	Err    error
}

// ErrMalformedLine is wrapped by ParseLine errors.
var ErrMalformedLine = errors.New("malformed attendance line")

// lineTimeLayouts are the timestamp layouts seen in textual exports.
var lineTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseLine parses a textual record of the form
//
//	<user_id>|<YYYY-MM-DD HH:MM:SS>[|extra fields...]
//
// Tabs are accepted in place of pipes. The timestamp carries no offset and
// is interpreted in loc (time.Local when nil).
func ParseLine(line string, loc *time.Location) (Event, error) {
	if loc == nil {
		loc = time.Local
	}

	trimmed := strings.TrimSpace(line)
	sep := "|"
	if !strings.Contains(trimmed, sep) {
		sep = "\t"
	}
	fields := strings.Split(trimmed, sep)
	if len(fields) < 2 {
		return Event{}, fmt.Errorf("%w: %q: expected user id and timestamp", ErrMalformedLine, line)
	}

	userID := strings.TrimSpace(fields[0])
	if userID == "" {
		return Event{}, fmt.Errorf("%w: %q: empty user id", ErrMalformedLine, line)
	}

	raw := strings.TrimSpace(fields[1])
	for _, layout := range lineTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return Event{UserID: userID, OccurredAt: ts}, nil
		}
	}
	return Event{}, fmt.Errorf("%w: %q: unparsable timestamp %q", ErrMalformedLine, line, raw)
}

type eventKey struct {
	userID string
	nanos  int64
}

// BuildBatch turns raw device records into the batch to deliver.
//
// Textual records are parsed with ParseLine; records that cannot be parsed
// or lack an identifier or time are returned in dropped and never abort the
// batch. When hasWatermark is true only events strictly after watermark are
// kept. Duplicates by (user id, instant) keep their first occurrence, and
// the result is sorted ascending by time with ties in input order.
//
// BuildBatch does no I/O and is deterministic for a given input.
func BuildBatch(raw []RawRecord, watermark time.Time, hasWatermark bool, loc *time.Location) (Batch, []Dropped) {
	var dropped []Dropped
	events := make([]Event, 0, len(raw))
	seen := make(map[eventKey]struct{}, len(raw))

	for _, rec := range raw {
		ev, ok := normalize(rec, loc, &dropped)
		if !ok {
			continue
		}
		if hasWatermark && !ev.OccurredAt.After(watermark) {
			continue
		}
		key := eventKey{userID: ev.UserID, nanos: ev.OccurredAt.UnixNano()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		events = append(events, ev)
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return Batch{Events: events}, dropped
}

func normalize(rec RawRecord, loc *time.Location, dropped *[]Dropped) (Event, bool) {
	if rec.UserID == "" && rec.Line != "" {
		ev, err := ParseLine(rec.Line, loc)
		if err != nil {
			*dropped = append(*dropped, Dropped{Record: rec, Reason: DropMalformed, Err: err})
			return Event{}, false
		}
		return ev, true
	}

	ev := Event{UserID: strings.TrimSpace(rec.UserID), OccurredAt: rec.Timestamp}
	if ev.UserID == "" || ev.OccurredAt.IsZero() {
		*dropped = append(*dropped, Dropped{Record: rec, Reason: DropIncomplete})
		return Event{}, false
	}
	return ev, true
}
