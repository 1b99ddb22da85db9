// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tomtom215/punchsync/internal/attendance"
)

// ZKTeco TCP command codes.
const (
	cmdGetFreeSizes  uint16 = 50
	cmdAttLogRRQ     uint16 = 13
	cmdConnect       uint16 = 1000
	cmdExit          uint16 = 1001
	cmdEnableDevice  uint16 = 1002
	cmdDisableDevice uint16 = 1003
	cmdAuth          uint16 = 1102
	cmdPrepareData   uint16 = 1500
	cmdData          uint16 = 1501
	cmdFreeData      uint16 = 1502
	cmdPrepareBuffer uint16 = 1503
	cmdReadBuffer    uint16 = 1504
	cmdAckOK         uint16 = 2000
	cmdAckError      uint16 = 2001
	cmdAckUnauth     uint16 = 2005
)

const (
	tcpMagic1 uint16 = 0x5050
	tcpMagic2 uint16 = 0x7D82

	ushrtMax = 65535

	tcpTopSize = 8
	headerSize = 8

	// maxChunk is the largest buffer slice requested with CMD_READ_BUFFER.
	maxChunk = 0xFFC0

	// maxPacket bounds a single frame so a corrupt length cannot make us
	// allocate arbitrarily.
	maxPacket = 16 << 20

	// freeSizesRecordsField is the index of the attendance record count in
	// the CMD_GET_FREE_SIZES reply (20 little-endian int32).
	freeSizesRecordsField = 8
)

var (
	errBadMagic     = errors.New("invalid TCP preamble")
	errShortPacket  = errors.New("packet shorter than command header")
	errUnauthorized = errors.New("device rejected credentials")
)

// packet is a decoded ZK command or reply.
type packet struct {
	command   uint16
	checksum  uint16
	sessionID uint16
	replyID   uint16
	data      []byte
}

// checksum computes the 16-bit one's-complement sum used by ZK firmware,
// over the header (with a zero checksum field) and payload.
func checksum(buf []byte) uint16 {
	sum := 0
	for len(buf) > 1 {
		sum += int(binary.LittleEndian.Uint16(buf[:2]))
		buf = buf[2:]
		if sum > ushrtMax {
			sum -= ushrtMax
		}
	}
	if len(buf) == 1 {
		sum += int(buf[0])
	}
	for sum > ushrtMax {
		sum -= ushrtMax
	}
	sum = ^sum
	for sum < 0 {
		sum += ushrtMax
	}
	return uint16(sum)
}

// buildPacket encodes a command. The checksum covers the current reply id;
// the id written on the wire is the next one, as the firmware expects.
func buildPacket(command, sessionID, replyID uint16, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint16(buf[0:], command)
	binary.LittleEndian.PutUint16(buf[2:], 0)
	binary.LittleEndian.PutUint16(buf[4:], sessionID)
	binary.LittleEndian.PutUint16(buf[6:], replyID)
	copy(buf[headerSize:], data)

	sum := checksum(buf)
	binary.LittleEndian.PutUint16(buf[2:], sum)
	binary.LittleEndian.PutUint16(buf[6:], nextReplyID(replyID))
	return buf
}

func nextReplyID(id uint16) uint16 {
	n := int(id) + 1
	if n >= ushrtMax {
		n -= ushrtMax
	}
	return uint16(n)
}

// frame prefixes a packet with the TCP preamble: magic, magic, length.
func frame(pkt []byte) []byte {
	out := make([]byte, tcpTopSize+len(pkt))
	binary.LittleEndian.PutUint16(out[0:], tcpMagic1)
	binary.LittleEndian.PutUint16(out[2:], tcpMagic2)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(pkt)))
	copy(out[tcpTopSize:], pkt)
	return out
}

// parseTop validates a TCP preamble and returns the packet length.
func parseTop(top []byte) (int, error) {
	if binary.LittleEndian.Uint16(top[0:]) != tcpMagic1 || binary.LittleEndian.Uint16(top[2:]) != tcpMagic2 {
		return 0, errBadMagic
	}
	n := int(binary.LittleEndian.Uint32(top[4:]))
	if n < headerSize || n > maxPacket {
		return 0, fmt.Errorf("invalid packet length %d", n)
	}
	return n, nil
}

func parsePacket(buf []byte) (packet, error) {
	if len(buf) < headerSize {
		return packet{}, errShortPacket
	}
	return packet{
		command:   binary.LittleEndian.Uint16(buf[0:]),
		checksum:  binary.LittleEndian.Uint16(buf[2:]),
		sessionID: binary.LittleEndian.Uint16(buf[4:]),
		replyID:   binary.LittleEndian.Uint16(buf[6:]),
		data:      buf[headerSize:],
	}, nil
}

// commKey derives the CMD_AUTH payload from the numeric device password
// and the session id assigned by CMD_CONNECT.
func commKey(key uint32, sessionID uint16, ticks byte) []byte {
	var k uint32
	for i := 0; i < 32; i++ {
		k <<= 1
		if key&(1<<uint(i)) != 0 {
			k |= 1
		}
	}
	k += uint32(sessionID)

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], k)
	b[0] ^= 'Z'
	b[1] ^= 'K'
	b[2] ^= 'S'
	b[3] ^= 'O'

	// Swap the two 16-bit halves.
	b[0], b[1], b[2], b[3] = b[2], b[3], b[0], b[1]

	return []byte{b[0] ^ ticks, b[1] ^ ticks, ticks, b[3] ^ ticks}
}

// decodeTime unpacks the ZK packed timestamp. Terminal clocks are local
// wall time without an offset, so the result is placed in loc.
func decodeTime(raw []byte, loc *time.Location) time.Time {
	t := binary.LittleEndian.Uint32(raw)
	second := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12 + 1)
	t /= 12
	year := int(t) + 2000
	return time.Date(year, month, day, hour, minute, second, 0, loc)
}

// parseAttendance decodes the CMD_ATTLOG_RRQ buffer. The first four bytes
// hold the payload size; the record layout is inferred from size/records.
func parseAttendance(buf []byte, records int, loc *time.Location) ([]attendance.RawRecord, error) {
	if isTextual(buf) {
		return parseTextual(buf), nil
	}
	if len(buf) < 4 || records <= 0 {
		return nil, nil
	}

	total := int(binary.LittleEndian.Uint32(buf[:4]))
	data := buf[4:]
	if total > len(data) {
		return nil, fmt.Errorf("attendance buffer truncated: header says %d bytes, got %d", total, len(data))
	}
	data = data[:total]

	size := total / records
	switch size {
	case 8, 16:
	default:
		size = 40
	}

	out := make([]attendance.RawRecord, 0, len(data)/size)
	for len(data) >= size {
		rec := data[:size]
		data = data[size:]

		var r attendance.RawRecord
		switch size {
		case 8:
			// uid uint16, status uint8, time [4]byte, punch uint8
			r.UserID = strconv.Itoa(int(binary.LittleEndian.Uint16(rec[0:2])))
			r.Timestamp = decodeTime(rec[3:7], loc)
		case 16:
			// user_id uint32, time [4]byte, status, punch, reserved [2], workcode uint32
			r.UserID = strconv.FormatUint(uint64(binary.LittleEndian.Uint32(rec[0:4])), 10)
			r.Timestamp = decodeTime(rec[4:8], loc)
		default:
			// uid uint16, user_id [24]byte, status, time [4]byte, punch, space [8]
			id := rec[2:26]
			if i := bytes.IndexByte(id, 0); i >= 0 {
				id = id[:i]
			}
			r.UserID = strings.TrimSpace(strings.ToValidUTF8(string(id), ""))
			r.Timestamp = decodeTime(rec[27:31], loc)
		}
		out = append(out, r)
	}
	return out, nil
}

// isTextual reports whether buf looks like a line-oriented text export
// rather than packed records.
func isTextual(buf []byte) bool {
	if len(buf) == 0 || !bytes.ContainsRune(buf, '\n') {
		return false
	}
	for _, r := range string(buf) {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func parseTextual(buf []byte) []attendance.RawRecord {
	var out []attendance.RawRecord
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, attendance.RawRecord{Line: line})
	}
	return out
}
