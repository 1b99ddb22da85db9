// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// encodeTime is the inverse of decodeTime.
func encodeTime(t time.Time) []byte {
	v := ((((uint32(t.Year()-2000)*12+uint32(t.Month()-1))*31+uint32(t.Day()-1))*24+
		uint32(t.Hour()))*60+uint32(t.Minute()))*60 + uint32(t.Second())
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func record40(uid uint16, userID string, ts time.Time) []byte {
	rec := make([]byte, 40)
	binary.LittleEndian.PutUint16(rec[0:], uid)
	copy(rec[2:26], userID)
	rec[26] = 1
	copy(rec[27:31], encodeTime(ts))
	return rec
}

func record16(userID uint32, ts time.Time) []byte {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[0:], userID)
	copy(rec[4:8], encodeTime(ts))
	return rec
}

func record8(uid uint16, ts time.Time) []byte {
	rec := make([]byte, 8)
	binary.LittleEndian.PutUint16(rec[0:], uid)
	copy(rec[3:7], encodeTime(ts))
	return rec
}

// attendanceBuffer prefixes records with their total size.
func attendanceBuffer(recs ...[]byte) []byte {
	body := bytes.Join(recs, nil)
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

func TestBuildPacket_ConnectMatchesFirmwareBytes(t *testing.T) {
	t.Parallel()

	got := frame(buildPacket(cmdConnect, 0, ushrtMax-1, nil))
	want := []byte{0x50, 0x50, 0x82, 0x7d, 0x08, 0x00, 0x00, 0x00, 0xe8, 0x03, 0x17, 0xfc, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("connect frame = % x\nwant            % x", got, want)
	}
}

func TestBuildPacket_ChecksumAndReplyID(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3}
	pkt := buildPacket(cmdReadBuffer, 0x1234, 41, data)

	p, err := parsePacket(pkt)
	if err != nil {
		t.Fatalf("parsePacket: %v", err)
	}
	if p.command != cmdReadBuffer || p.sessionID != 0x1234 || p.replyID != 42 {
		t.Errorf("header = %+v", p)
	}
	if !bytes.Equal(p.data, data) {
		t.Errorf("data = %v", p.data)
	}

	// The checksum covers the header with the previous reply id.
	verify := append([]byte(nil), pkt...)
	binary.LittleEndian.PutUint16(verify[2:], 0)
	binary.LittleEndian.PutUint16(verify[6:], 41)
	if sum := checksum(verify); sum != p.checksum {
		t.Errorf("checksum = %#x, recomputed %#x", p.checksum, sum)
	}
}

func TestNextReplyID_Wraps(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want uint16 }{
		{0, 1},
		{100, 101},
		{ushrtMax - 2, ushrtMax - 1},
		{ushrtMax - 1, 0},
	}
	for _, tt := range tests {
		if got := nextReplyID(tt.in); got != tt.want {
			t.Errorf("nextReplyID(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTop(t *testing.T) {
	t.Parallel()

	good := frame(make([]byte, 12))[:tcpTopSize]
	if n, err := parseTop(good); err != nil || n != 12 {
		t.Errorf("parseTop(good) = %d, %v", n, err)
	}

	bad := append([]byte(nil), good...)
	bad[0] = 0
	if _, err := parseTop(bad); !errors.Is(err, errBadMagic) {
		t.Errorf("bad magic err = %v", err)
	}

	tooShort := frame(make([]byte, 2))[:tcpTopSize]
	if _, err := parseTop(tooShort); err == nil {
		t.Error("expected error for length below header size")
	}

	huge := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(huge[4:], maxPacket+1)
	if _, err := parseTop(huge); err == nil {
		t.Error("expected error for oversized length")
	}
}

func TestParsePacket_Short(t *testing.T) {
	t.Parallel()

	if _, err := parsePacket([]byte{1, 2, 3}); !errors.Is(err, errShortPacket) {
		t.Errorf("err = %v", err)
	}
}

func TestCommKey(t *testing.T) {
	t.Parallel()

	if got, want := commKey(0, 0, 50), []byte{0x61, 0x7d, 0x32, 0x79}; !bytes.Equal(got, want) {
		t.Errorf("commKey(0,0) = % x, want % x", got, want)
	}

	// The third byte is always the tick value.
	for _, key := range []uint32{1, 1234, 999999} {
		k := commKey(key, 0x4321, 50)
		if len(k) != 4 || k[2] != 50 {
			t.Errorf("commKey(%d) = % x", key, k)
		}
	}

	if bytes.Equal(commKey(1, 7, 50), commKey(2, 7, 50)) {
		t.Error("different passwords produced the same key")
	}
	if bytes.Equal(commKey(1, 7, 50), commKey(1, 8, 50)) {
		t.Error("different sessions produced the same key")
	}
}

func TestDecodeTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("device", 2*3600)
	tests := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, loc),
		time.Date(2024, 2, 29, 23, 59, 59, 0, loc),
		time.Date(2026, 12, 31, 12, 30, 15, 0, loc),
	}
	for _, want := range tests {
		if got := decodeTime(encodeTime(want), loc); !got.Equal(want) || got.Location() != loc {
			t.Errorf("decodeTime(encodeTime(%v)) = %v", want, got)
		}
	}
}

func TestParseAttendance_Layouts(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	t1 := time.Date(2026, 3, 2, 8, 15, 0, 0, loc)
	t2 := time.Date(2026, 3, 2, 17, 45, 30, 0, loc)

	tests := []struct {
		name    string
		buf     []byte
		records int
		wantIDs []string
	}{
		{
			name:    "40 byte records",
			buf:     attendanceBuffer(record40(1, "1001", t1), record40(2, "EMP-2", t2)),
			records: 2,
			wantIDs: []string{"1001", "EMP-2"},
		},
		{
			name:    "16 byte records",
			buf:     attendanceBuffer(record16(42, t1), record16(43, t2)),
			records: 2,
			wantIDs: []string{"42", "43"},
		},
		{
			name:    "8 byte records",
			buf:     attendanceBuffer(record8(5, t1), record8(6, t2)),
			records: 2,
			wantIDs: []string{"5", "6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseAttendance(tt.buf, tt.records, loc)
			if err != nil {
				t.Fatalf("parseAttendance: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].UserID != id {
					t.Errorf("record %d user = %q, want %q", i, got[i].UserID, id)
				}
			}
			if !got[0].Timestamp.Equal(t1) || !got[1].Timestamp.Equal(t2) {
				t.Errorf("timestamps = %v, %v", got[0].Timestamp, got[1].Timestamp)
			}
		})
	}
}

func TestParseAttendance_Truncated(t *testing.T) {
	t.Parallel()

	buf := attendanceBuffer(record40(1, "1", time.Now()))
	if _, err := parseAttendance(buf[:30], 1, time.UTC); err == nil {
		t.Error("expected error for truncated buffer")
	}
}

func TestParseAttendance_Empty(t *testing.T) {
	t.Parallel()

	got, err := parseAttendance(nil, 0, time.UTC)
	if err != nil || len(got) != 0 {
		t.Errorf("parseAttendance(nil) = %v, %v", got, err)
	}
}

func TestParseAttendance_TextExport(t *testing.T) {
	t.Parallel()

	buf := []byte("1001\t2026-03-02 08:15:00\n\n1002\t2026-03-02 08:20:00\r\n")
	got, err := parseAttendance(buf, 2, time.UTC)
	if err != nil {
		t.Fatalf("parseAttendance: %v", err)
	}
	if len(got) != 2 || got[0].Line != "1001\t2026-03-02 08:15:00" || got[1].Line != "1002\t2026-03-02 08:20:00" {
		t.Errorf("lines = %+v", got)
	}
}
