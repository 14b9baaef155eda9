// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/scenestream/scenestream/internal/connstate"
	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/updatequeue"
	"github.com/scenestream/scenestream/internal/wire"
)

// relRxTask is the reliable-channel receive loop of a Streaming
// connection. It handles KEEPALIVE/DISCONNECT inline and re-enters
// ResourceExchange when the server announces START_RSRC_EXCHANGE
// mid-session for a newly admitted model.
func (c *Client) relRxTask() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		t, err := c.reliable.RecvType()
		if err != nil {
			if errors.Is(err, netio.ErrTimeout) {
				continue
			}
			if !errors.Is(err, netio.ErrDisconnected) {
				c.logger.Warn("reliable receive failed", "error", err)
			}
			c.Cancel()
			return
		}
		switch t {
		case wire.MsgKeepalive:
			if payload, rerr := c.reliable.ReadTrailing(wire.SizeKeepaliveDiagnostics); rerr != nil {
				c.logger.Warn("reading keepalive diagnostics failed", "error", rerr)
				c.Cancel()
				return
			} else if diag, derr := wire.DecodeKeepaliveDiagnostics(payload); derr != nil {
				c.logger.Warn("malformed keepalive diagnostics ignored", "error", derr)
			} else {
				c.lastServerDiag.Store(&diag)
			}
			c.Machine.RecordKeepalive(time.Now())
		case wire.MsgDisconnect:
			c.logger.Info("server requested disconnect")
			c.Machine.Transition(connstate.Draining)
			c.Cancel()
			return
		case wire.MsgStartRsrcExchange:
			c.handleReentrantExchange()
		default:
			c.logger.Warn("unexpected reliable message during streaming", "type", t.String())
		}
	}
}

// handleReentrantExchange is the client-side mirror of
// Endpoint.AdmitModel's Streaming -> ResourceExchange re-entry: the
// START_RSRC_EXCHANGE type byte has already been consumed by relRxTask,
// so the resource loop here starts directly at the per-resource
// messages instead of waiting for it again.
func (c *Client) handleReentrantExchange() {
	if err := c.Machine.Transition(connstate.ResourceExchange); err != nil {
		c.logger.Warn("could not re-enter resource exchange", "error", err)
		return
	}
	if err := c.runResourceExchangeBody(); err != nil {
		c.logger.Error("reentrant resource exchange failed", "error", err)
		c.Machine.Transition(connstate.Draining)
		c.Cancel()
		return
	}
	c.Machine.Transition(connstate.Streaming)
}

// relTxTask sends periodic KEEPALIVE messages while in Streaming and
// watches for keepalive timeout on the server's side of the exchange.
func (c *Client) relTxTask() {
	defer c.wg.Done()
	interval := c.cfg.KeepaliveInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			buf := make([]byte, wire.SizeKeepaliveDiagnostics)
			wire.KeepaliveDiagnostics{}.Encode(buf)
			if err := c.reliable.SendMessage(wire.MsgKeepalive, buf); err != nil {
				c.logger.Warn("keepalive send failed", "error", err)
				c.Cancel()
				return
			}
			if c.Machine.KeepaliveExpired(time.Now(), c.streamingSince, interval, 2*time.Second) {
				c.logger.Warn("keepalive timeout, draining connection")
				c.Machine.Transition(connstate.Draining)
				c.Cancel()
				return
			}
		}
	}
}

// udpRxTask receives server datagrams, validates and tracks the
// monotonic packet-gen, and forwards whole raw datagrams (UdpHeader
// plus chunk region) into the staging queue for the main thread to
// parse and apply.
func (c *Client) udpRxTask() {
	defer c.wg.Done()
	buf := make([]byte, netio.P)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		n, _, err := c.udpRx.Recv(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			c.logger.Warn("datagram receive failed", "error", err)
			continue
		}
		h, _, err := wire.DecodeUdpHeader(buf[:n])
		if err != nil {
			c.logger.Warn("malformed datagram header dropped", "error", err)
			continue
		}
		if err := netio.ValidateHeader(h, c.lastSeenGen.Load()); err != nil {
			c.logger.Warn("datagram rejected", "error", err)
			continue
		}
		bumpMax(&c.lastSeenGen, h.PacketGen)
		c.bytesReceived.Add(int64(n))
		c.Staging.Append(buf[:n])
	}
}

func bumpMax(a *atomic.Uint64, v uint64) {
	for {
		cur := a.Load()
		if v <= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// ackTxTask drains the ack outbox into AckPacket datagrams bounded by
// netio.P and sends them to the server.
func (c *Client) ackTxTask() {
	defer c.wg.Done()
	go func() {
		<-c.ctx.Done()
		c.ack.Close()
	}()
	const maxIDsPerPacket = (netio.P - 3) / 4
	for {
		if !c.ack.Wait() {
			return
		}
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		ids := c.ack.Drain()
		for len(ids) > 0 {
			n := len(ids)
			if n > maxIDsPerPacket {
				n = maxIDsPerPacket
			}
			batch := wire.AckPacket{AckIDs: ids[:n]}
			ids = ids[n:]
			buf := make([]byte, batch.EncodedLen())
			if _, err := batch.Encode(buf); err != nil {
				c.logger.Warn("ack packet encode failed", "error", err)
				continue
			}
			if err := c.udpTx.Send(buf); err != nil {
				c.logger.Warn("ack send failed", "error", err)
			} else {
				c.bytesSent.Add(int64(len(buf)))
			}
		}
	}
}

// enqueueAck computes the wire-visible serial id of an applied geometry
// chunk and pushes it to the outbox; the client derives the same id the
// server computed when it enqueued the update.
func (c *Client) enqueueAck(modelID idhash.ID, kind wire.GeomKind, start, length uint32) {
	d := updatequeue.GeomDescriptor{ModelID: modelID, GeomKind: kind, Start: start, Length: length}
	c.ack.Push(uint32(d.SerialID()))
}
