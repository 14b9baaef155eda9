// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package clientside implements the client half of the protocol: the
// handshake and resource-exchange receiver, the four long-running
// per-connection tasks mirrored onto client roles, and the main-thread
// update pipeline that applies received chunks into the staging
// buffers. It is the client-side counterpart of internal/serverside,
// composed the same way rather than derived from a shared abstract
// connection type.
package clientside

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenestream/scenestream/internal/connstate"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/netutil"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/staging"
	"github.com/scenestream/scenestream/internal/wire"
)

// Config bundles the addresses and per-connection policy a Client needs.
type Config struct {
	ServerHost  string // server IP/hostname, no port
	ReliablePort int   // server's reliable listen port, e.g. 1236
	UDPListen    string // local bind addr for the server->client datagram socket, e.g. ":1234"
	UDPSendPort  int    // server's ACK-recv port, e.g. 1235

	ReadTimeout       time.Duration
	KeepaliveInterval time.Duration
	DSCP              int

	CompressionRequested wire.CompressionMode

	StagingCapacity int // raw SPSC byte queue capacity
	VertexCapacity  int // geometry staging vertex region capacity, bytes
	IndexCapacity   int // geometry staging index region capacity, bytes
}

// Client is one connection's full client-side state: the sockets, the
// cancellation token, the resource store and scene mirror, and the
// geometry/ack staging the main thread drains.
type Client struct {
	cfg Config

	reliable *netio.Reliable
	udpRx    *netio.Datagram
	udpTx    *netio.Datagram

	serverAddr *net.UDPAddr

	Store    *resource.Store
	Scene    *SceneMirror
	Staging  *staging.Queue
	Geometry *staging.GeometryBuffer

	Machine *connstate.Machine

	ack         *ackOutbox
	compression wire.CompressionMode
	lastSeenGen atomic.Uint64

	bytesSent     atomic.Int64
	bytesReceived atomic.Int64

	lastServerDiag atomic.Pointer[wire.KeepaliveDiagnostics]

	streamingSince time.Time
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	scratch []byte // main-thread-only drain scratch buffer
}

// New creates a Client wired to its own store, scene mirror, and
// staging buffers. signal receives dirty-range notifications for the
// renderer; a nil signal discards them.
func New(cfg Config, store *resource.Store, signal staging.RendererSignal, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		Store:    store,
		Scene:    NewSceneMirror(),
		Staging:  staging.New(cfg.StagingCapacity, logger),
		Geometry: staging.NewGeometryBuffer(cfg.VertexCapacity, cfg.IndexCapacity, signal, logger),
		Machine:  connstate.NewMachine(),
		ack:      newAckOutbox(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.scratch = make([]byte, cfg.StagingCapacity)
	if len(c.scratch) == 0 {
		c.scratch = make([]byte, 128*1024*1024)
	}
	return c
}

// Cancel flips the client's cancellation token.
func (c *Client) Cancel() { c.cancel() }

// Done reports the client's cancellation channel.
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }

// Wait blocks until all four tasks have exited.
func (c *Client) Wait() { c.wg.Wait() }

// Run dials the server, drives the handshake and resource-exchange, and
// starts the four long-running tasks, blocking until the connection
// closes. The caller's main thread must separately and periodically
// call DrainAndApply — applying received chunks never happens on a
// network goroutine, so the caller's main thread never blocks on the
// network directly.
func (c *Client) Run() error {
	reliableConn, err := net.Dial("tcp", net.JoinHostPort(c.cfg.ServerHost, portString(c.cfg.ReliablePort)))
	if err != nil {
		return fmt.Errorf("clientside: dialing reliable channel: %w", err)
	}
	if c.cfg.DSCP != 0 {
		if err := netutil.ApplyDSCP(reliableConn, c.cfg.DSCP); err != nil {
			c.logger.Warn("dscp marking failed on reliable socket", "error", err)
		}
	}
	c.reliable = netio.NewReliable(reliableConn, c.cfg.ReadTimeout)

	udpRxConn, err := net.ListenUDP("udp", mustResolveUDP(c.cfg.UDPListen))
	if err != nil {
		reliableConn.Close()
		return fmt.Errorf("clientside: binding datagram recv socket %s: %w", c.cfg.UDPListen, err)
	}
	c.udpRx = netio.NewDatagram(udpRxConn, c.cfg.ReadTimeout)

	c.serverAddr = &net.UDPAddr{IP: net.ParseIP(c.cfg.ServerHost), Port: c.cfg.UDPSendPort}
	udpTxConn, err := net.DialUDP("udp", nil, c.serverAddr)
	if err != nil {
		reliableConn.Close()
		udpRxConn.Close()
		return fmt.Errorf("clientside: dialing ack send socket: %w", err)
	}
	if c.cfg.DSCP != 0 {
		if err := netutil.ApplyDSCP(udpTxConn, c.cfg.DSCP); err != nil {
			c.logger.Warn("dscp marking failed on datagram socket", "error", err)
		}
	}
	c.udpTx = netio.NewDatagram(udpTxConn, c.cfg.ReadTimeout)

	defer func() {
		reliableConn.Close()
		udpRxConn.Close()
		udpTxConn.Close()
	}()

	c.Machine.Transition(connstate.Handshaking)
	if err := c.runHandshake(); err != nil {
		c.Machine.Transition(connstate.Draining)
		return err
	}

	c.Machine.Transition(connstate.ResourceExchange)
	if err := c.runResourceExchange(); err != nil {
		c.Machine.Transition(connstate.Draining)
		return err
	}

	if err := c.runReadyHandshake(); err != nil {
		c.Machine.Transition(connstate.Draining)
		return err
	}
	c.Machine.Transition(connstate.Streaming)
	c.streamingSince = time.Now()

	c.wg.Add(4)
	go c.relRxTask()
	go c.relTxTask()
	go c.udpRxTask()
	go c.ackTxTask()

	<-c.ctx.Done()
	c.wg.Wait()
	c.Machine.Transition(connstate.Closed)
	return nil
}

func portString(p int) string {
	return fmt.Sprintf("%d", p)
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return &net.UDPAddr{Port: 1234}
	}
	return a
}

// BytesSent, BytesReceived report cumulative byte counters (observability).
func (c *Client) BytesSent() int64     { return c.bytesSent.Load() }
func (c *Client) BytesReceived() int64 { return c.bytesReceived.Load() }

// ServerDiagnostics returns the most recent server load/disk figures
// carried on a KEEPALIVE, or false if none has arrived yet.
func (c *Client) ServerDiagnostics() (wire.KeepaliveDiagnostics, bool) {
	p := c.lastServerDiag.Load()
	if p == nil {
		return wire.KeepaliveDiagnostics{}, false
	}
	return *p, true
}
