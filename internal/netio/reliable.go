// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package netio implements the two wire channels: the framed reliable
// stream channel and the fixed-size datagram channel.
package netio

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/scenestream/scenestream/internal/wire"
)

// ErrDisconnected is returned by Reliable.RecvType on stream EOF.
var ErrDisconnected = errors.New("netio: disconnected")

// ErrTimeout is returned when a read's deadline elapses with no message
// arriving. It is distinct from ErrDisconnected: the socket is still
// live, the peer simply had nothing to say within readTimeout. Callers
// driving the streaming-phase receive loop must treat this as
// transient and keep looping rather than tearing down the connection —
// only the keepalive-timeout check in the transmit task (2K + jitter)
// decides an actually-dead peer.
var ErrTimeout = errors.New("netio: read timeout")

// ErrProtocolViolation is returned when a type byte is zero or above the
// highest known reliable message type.
var ErrProtocolViolation = errors.New("netio: protocol violation")

const defaultReadTimeout = 5 * time.Second

// Reliable wraps a stream socket with the framed message primitives
// used by every reliable-channel exchange. It exposes read/write
// primitives rather than whole-message codecs, because the payload
// shape of a resource packet depends on a length field inside its own
// body — callers (resource exchange, handshake) drive the exact byte
// count.
type Reliable struct {
	conn        net.Conn
	readTimeout time.Duration
}

// NewReliable wraps conn. A readTimeout of zero selects the 5 second
// default.
func NewReliable(conn net.Conn, readTimeout time.Duration) *Reliable {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &Reliable{conn: conn, readTimeout: readTimeout}
}

// SendMessage writes msgType followed by payload as a single reliable
// message: one type byte followed directly by the payload bytes.
func (r *Reliable) SendMessage(msgType wire.MessageType, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(msgType)
	copy(buf[1:], payload)
	_, err := r.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("netio: write message %s: %w", msgType, err)
	}
	return nil
}

// RecvType reads the next message's leading type byte, applying the
// configured read deadline before the read and validating the result:
// it fails with ErrDisconnected on stream EOF and with
// ErrProtocolViolation if the type byte is 0 or above the known max.
func (r *Reliable) RecvType() (wire.MessageType, error) {
	r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))
	var b [1]byte
	if _, err := io.ReadFull(r.conn, b[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrDisconnected
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("netio: read message type: %w", err)
	}
	t := wire.MessageType(b[0])
	if !t.Valid() {
		return 0, fmt.Errorf("%w: unknown type 0x%02x", ErrProtocolViolation, b[0])
	}
	return t, nil
}

// ReadFull reads exactly len(buf) bytes, honouring the read deadline.
func (r *Reliable) ReadFull(buf []byte) error {
	r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))
	_, err := io.ReadFull(r.conn, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrDisconnected
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ErrTimeout
		}
		return fmt.Errorf("netio: read full: %w", err)
	}
	return nil
}

// ReadTrailing reads and returns exactly n bytes — used to drain a
// resource packet's bulk bytes before the next type byte may be read.
// Both ends must always fully drain a resource packet's trailing bytes
// before reading the next type byte.
func (r *Reliable) ReadTrailing(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the underlying connection.
func (r *Reliable) Close() error {
	return r.conn.Close()
}
