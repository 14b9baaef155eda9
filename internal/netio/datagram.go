// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package netio

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/scenestream/scenestream/internal/wire"
)

// ErrTruncated is returned by Datagram.Recv when the OS reports the
// incoming packet was larger than the read buffer.
var ErrTruncated = errors.New("netio: truncated datagram")

// P is the fixed datagram size.
const P = 512

// Datagram wraps a UDP socket with fixed-size send/receive primitives.
type Datagram struct {
	conn        *net.UDPConn
	readTimeout time.Duration
}

// NewDatagram wraps conn.
func NewDatagram(conn *net.UDPConn, readTimeout time.Duration) *Datagram {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &Datagram{conn: conn, readTimeout: readTimeout}
}

// Send writes one datagram of at most P bytes to the connected peer.
// Partial sends are retried; a connected UDP socket normally
// completes a send atomically, but the retry loop guards platforms
// where a short write can occur.
func (d *Datagram) Send(buf []byte) error {
	if len(buf) > P {
		return fmt.Errorf("netio: datagram of %d bytes exceeds P=%d", len(buf), P)
	}
	remaining := buf
	for len(remaining) > 0 {
		n, err := d.conn.Write(remaining)
		if err != nil {
			return fmt.Errorf("netio: datagram send: %w", err)
		}
		remaining = remaining[n:]
	}
	return nil
}

// SendTo writes one datagram to an explicit address (used by the server,
// which is not connect()-ed to a single client on the send socket).
func (d *Datagram) SendTo(buf []byte, addr *net.UDPAddr) error {
	if len(buf) > P {
		return fmt.Errorf("netio: datagram of %d bytes exceeds P=%d", len(buf), P)
	}
	_, err := d.conn.WriteToUDP(buf, addr)
	if err != nil {
		return fmt.Errorf("netio: datagram send to %s: %w", addr, err)
	}
	return nil
}

// Recv reads one datagram into buf (which should be sized P or larger)
// and returns the number of bytes read and the sender's address.
func (d *Datagram) Recv(buf []byte) (int, *net.UDPAddr, error) {
	d.conn.SetReadDeadline(time.Now().Add(d.readTimeout))
	n, _, flags, addr, err := d.conn.ReadMsgUDP(buf, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("netio: datagram recv: %w", err)
	}
	if flags&syscall.MSG_TRUNC != 0 {
		return n, addr, ErrTruncated
	}
	return n, addr, nil
}

// ValidateHeader checks the per-packet rules: the declared size fits
// within P, and the packet-gen has not regressed relative to the
// highest one seen so far on this socket.
func ValidateHeader(h wire.UdpHeader, lastSeenGen uint64) error {
	if int(h.Size)+wire.SizeUdpHeader > P {
		return fmt.Errorf("netio: header size %d exceeds P-sizeof(UdpHeader)", h.Size)
	}
	if h.PacketGen < lastSeenGen {
		return fmt.Errorf("netio: stale packet-gen %d < %d", h.PacketGen, lastSeenGen)
	}
	return nil
}
