// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package device reads attendance logs from ZKTeco terminals.

WithSession is the only way callers open a terminal. It connects, hands a
Session to the callback and closes afterwards on every exit path: capture
is re-enabled and the socket released even if the callback fails or
panics. Close failures are logged, never returned.

	err := device.WithSession(ctx, client, func(s *device.Session) error {
		records, err := s.ReadAll()
		...
	})

ZKClient implements the TCP variant of the ZK protocol (port 4370):

	preamble  0x5050 0x7D82 uint32(len)
	header    uint16 command, checksum, session_id, reply_id
	payload   command specific

Attendance is fetched through the firmware staging buffer
(CMD_PREPARE_BUFFER / CMD_READ_BUFFER / CMD_FREE_DATA) and decoded from
8, 16 or 40 byte records depending on firmware generation. Every socket
operation is bounded by the configured timeout.

All failures are returned as *DeviceError carrying the operation name.
FakeClient is an in-memory implementation for tests.
*/
package device
