// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tomtom215/punchsync/internal/attendance"
	"github.com/tomtom215/punchsync/internal/logging"
)

// ZKConfig configures a ZKClient.
type ZKConfig struct {
	// Endpoint is host:port of the terminal (port 4370 by default on the device).
	Endpoint string

	// Timeout bounds the dial and every request/reply exchange.
	Timeout time.Duration

	// Password is the numeric comm key; 0 when the terminal has none.
	Password int

	// Location is the zone of the terminal clock.
	Location *time.Location
}

// ZKClient speaks the ZKTeco TCP protocol.
type ZKClient struct {
	cfg ZKConfig

	conn      net.Conn
	sessionID uint16
	replyID   uint16

	// dial is replaceable in tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewZKClient creates a client. No connection is made until Connect.
func NewZKClient(cfg ZKConfig) *ZKClient {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	d := &net.Dialer{Timeout: cfg.Timeout}
	return &ZKClient{cfg: cfg, dial: d.DialContext}
}

// Endpoint implements Client.
func (c *ZKClient) Endpoint() string { return c.cfg.Endpoint }

// Connect opens the TCP connection and performs the CMD_CONNECT handshake,
// answering a CMD_ACK_UNAUTH with the comm key.
func (c *ZKClient) Connect(ctx context.Context) error {
	if c.conn != nil {
		return errors.New("already connected")
	}
	conn, err := c.dial(ctx, "tcp", c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	c.sessionID = 0
	c.replyID = ushrtMax - 1

	reply, err := c.exchange(cmdConnect, nil)
	if err != nil {
		c.closeConn()
		return fmt.Errorf("connect: %w", err)
	}
	c.sessionID = reply.sessionID

	if reply.command == cmdAckUnauth {
		key := commKey(uint32(c.cfg.Password), c.sessionID, 50)
		reply, err = c.exchange(cmdAuth, key)
		if err != nil {
			c.closeConn()
			return fmt.Errorf("auth: %w", err)
		}
	}
	if reply.command != cmdAckOK {
		c.closeConn()
		if reply.command == cmdAckUnauth {
			return errUnauthorized
		}
		return fmt.Errorf("connect: unexpected reply %d", reply.command)
	}

	logging.Debug().Str("device", c.cfg.Endpoint).Uint16("session_id", c.sessionID).Msg("ZK session established")
	return nil
}

// DisableDevice implements Client.
func (c *ZKClient) DisableDevice() error {
	return c.simple(cmdDisableDevice, nil)
}

// EnableDevice implements Client.
func (c *ZKClient) EnableDevice() error {
	return c.simple(cmdEnableDevice, nil)
}

// Disconnect sends CMD_EXIT and closes the socket. The socket is closed
// even when the exit command fails.
func (c *ZKClient) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.simple(cmdExit, nil)
	if cerr := c.closeConn(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ReadAttendance implements Client.
func (c *ZKClient) ReadAttendance() ([]attendance.RawRecord, error) {
	records, err := c.recordCount()
	if err != nil {
		return nil, fmt.Errorf("read sizes: %w", err)
	}
	if records == 0 {
		return nil, nil
	}

	buf, err := c.readWithBuffer(cmdAttLogRRQ)
	if err != nil {
		return nil, fmt.Errorf("read attendance buffer: %w", err)
	}
	return parseAttendance(buf, records, c.cfg.Location)
}

// recordCount asks the terminal how many attendance records it holds.
func (c *ZKClient) recordCount() (int, error) {
	reply, err := c.exchange(cmdGetFreeSizes, nil)
	if err != nil {
		return 0, err
	}
	if reply.command != cmdAckOK {
		return 0, fmt.Errorf("unexpected reply %d", reply.command)
	}
	off := freeSizesRecordsField * 4
	if len(reply.data) < off+4 {
		return 0, fmt.Errorf("free sizes reply too short (%d bytes)", len(reply.data))
	}
	return int(int32(binary.LittleEndian.Uint32(reply.data[off:]))), nil
}

// readWithBuffer fetches a data set through the firmware's staging buffer:
// small sets come back inline as CMD_DATA, larger ones are announced with
// their size and pulled in maxChunk slices before the buffer is freed.
func (c *ZKClient) readWithBuffer(command uint16) ([]byte, error) {
	req := make([]byte, 11)
	req[0] = 1
	binary.LittleEndian.PutUint16(req[1:], command)

	reply, err := c.exchange(cmdPrepareBuffer, req)
	if err != nil {
		return nil, err
	}
	if reply.command == cmdData {
		return reply.data, nil
	}
	if reply.command != cmdAckOK || len(reply.data) < 5 {
		return nil, fmt.Errorf("prepare buffer: unexpected reply %d", reply.command)
	}

	size := int(binary.LittleEndian.Uint32(reply.data[1:5]))
	var out bytes.Buffer
	out.Grow(size)
	for start := 0; start < size; start += maxChunk {
		n := min(maxChunk, size-start)
		chunk, err := c.readChunk(start, n)
		if err != nil {
			return nil, fmt.Errorf("chunk at %d: %w", start, err)
		}
		out.Write(chunk)
	}

	if err := c.simple(cmdFreeData, nil); err != nil {
		logging.Warn().Err(err).Str("device", c.cfg.Endpoint).Msg("Failed to free device buffer")
	}
	return out.Bytes(), nil
}

func (c *ZKClient) readChunk(start, size int) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:], uint32(start))
	binary.LittleEndian.PutUint32(req[4:], uint32(size))

	reply, err := c.exchange(cmdReadBuffer, req)
	if err != nil {
		return nil, err
	}

	switch reply.command {
	case cmdData:
		return reply.data, nil
	case cmdPrepareData:
		if len(reply.data) < 4 {
			return nil, errors.New("prepare data reply too short")
		}
		want := int(binary.LittleEndian.Uint32(reply.data[:4]))
		return c.receiveData(want)
	default:
		return nil, fmt.Errorf("read buffer: unexpected reply %d", reply.command)
	}
}

// receiveData collects CMD_DATA packets until want bytes have arrived,
// then consumes the trailing CMD_ACK_OK.
func (c *ZKClient) receiveData(want int) ([]byte, error) {
	out := make([]byte, 0, want)
	for len(out) < want {
		pkt, err := c.receive()
		if err != nil {
			return nil, err
		}
		if pkt.command != cmdData {
			return nil, fmt.Errorf("expected data packet, got %d", pkt.command)
		}
		out = append(out, pkt.data...)
	}
	ack, err := c.receive()
	if err != nil {
		return nil, err
	}
	if ack.command != cmdAckOK {
		return nil, fmt.Errorf("expected ack after data, got %d", ack.command)
	}
	return out[:want], nil
}

// simple sends a command that must be acknowledged with CMD_ACK_OK.
func (c *ZKClient) simple(command uint16, data []byte) error {
	reply, err := c.exchange(command, data)
	if err != nil {
		return err
	}
	if reply.command != cmdAckOK {
		if reply.command == cmdAckUnauth {
			return errUnauthorized
		}
		return fmt.Errorf("command %d: unexpected reply %d", command, reply.command)
	}
	return nil
}

// exchange writes one command and reads its reply.
func (c *ZKClient) exchange(command uint16, data []byte) (packet, error) {
	if c.conn == nil {
		return packet{}, errors.New("not connected")
	}
	pkt := buildPacket(command, c.sessionID, c.replyID, data)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return packet{}, err
	}
	if _, err := c.conn.Write(frame(pkt)); err != nil {
		return packet{}, fmt.Errorf("write: %w", err)
	}

	reply, err := c.receive()
	if err != nil {
		return packet{}, err
	}
	c.replyID = reply.replyID
	return reply, nil
}

// receive reads one framed packet.
func (c *ZKClient) receive() (packet, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return packet{}, err
	}
	var top [tcpTopSize]byte
	if _, err := io.ReadFull(c.conn, top[:]); err != nil {
		return packet{}, fmt.Errorf("read preamble: %w", err)
	}
	n, err := parseTop(top[:])
	if err != nil {
		return packet{}, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return packet{}, fmt.Errorf("read packet: %w", err)
	}
	return parsePacket(buf)
}

func (c *ZKClient) closeConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
