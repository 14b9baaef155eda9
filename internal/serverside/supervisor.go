// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serverside

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/scenestream/scenestream/internal/connstate"
	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/monitor"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/netutil"
	"github.com/scenestream/scenestream/internal/observability"
	"github.com/scenestream/scenestream/internal/ratelimit"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/scene"
	"github.com/scenestream/scenestream/internal/wire"
)

// Config bundles the listener addresses and per-connection policy the
// Supervisor needs.
type Config struct {
	ReliableListen    string
	UDPSendListen     string // local addr the server's outbound UDP socket binds
	UDPRecvListen     string // server-wide ACK socket, e.g. ":1235"
	UDPSendPort       int    // the client-side port server datagrams target, e.g. 1234
	RateLimitFill     int64
	RateLimitCapacity int64
	RateLimitTick     time.Duration
	KeepaliveInterval time.Duration
	ReadTimeout       time.Duration
	DSCP              int
	Compression       byte
	Geometry          GeometrySource
}

// Supervisor accepts reliable-channel connections, spins up one
// Endpoint per client, and runs the shared ACK-receive demux loop.
type Supervisor struct {
	cfg Config

	scene *scene.Scene
	store *resource.Store

	udpRecv *net.UDPConn

	mu        sync.RWMutex
	endpoints map[string]*Endpoint

	observer monitor.Observer
	logger   *slog.Logger
}

// New creates a Supervisor sharing one Scene and one ResourceStore
// across every connection it accepts.
func New(cfg Config, store *resource.Store, observer monitor.Observer, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = monitor.NoopObserver{}
	}
	s := &Supervisor{
		cfg:       cfg,
		store:     store,
		endpoints: make(map[string]*Endpoint),
		observer:  observer,
		logger:    logger,
	}
	s.scene = scene.New(s, s)
	return s
}

// Scene exposes the shared scene graph for app-stage mutation.
func (s *Supervisor) Scene() *scene.Scene { return s.scene }

// Store exposes the shared resource store for app-stage population.
func (s *Supervisor) Store() *resource.Store { return s.store }

// AdmitModel fans a model admission out to every live endpoint
// (scene.ModelAdmitter); each endpoint re-enters ResourceExchange
// independently.
func (s *Supervisor) AdmitModel(id idhash.ID) {
	for _, e := range s.snapshotEndpoints() {
		e.AdmitModel(id)
	}
}

// EmitTransformUpdate fans a transform update out to every live
// endpoint (scene.TransformEmitter).
func (s *Supervisor) EmitTransformUpdate(nodeID idhash.ID, matrix [16]float32) {
	for _, e := range s.snapshotEndpoints() {
		e.EmitTransformUpdate(nodeID, matrix)
	}
}

func (s *Supervisor) snapshotEndpoints() []*Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Endpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e)
	}
	return out
}

// Run accepts connections until ctx is cancelled, blocking the caller.
func (s *Supervisor) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ReliableListen)
	if err != nil {
		return fmt.Errorf("serverside: listening on %s: %w", s.cfg.ReliableListen, err)
	}
	defer listener.Close()

	udpRecv, err := net.ListenUDP("udp", mustResolveUDP(s.cfg.UDPRecvListen))
	if err != nil {
		return fmt.Errorf("serverside: binding ack socket %s: %w", s.cfg.UDPRecvListen, err)
	}
	s.udpRecv = udpRecv
	defer udpRecv.Close()

	go s.ackDemuxLoop(ctx)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Supervisor) handleConn(conn net.Conn) {
	remoteAddr := conn.RemoteAddr()
	if s.cfg.DSCP != 0 {
		if err := netutil.ApplyDSCP(conn, s.cfg.DSCP); err != nil {
			s.logger.Warn("dscp marking failed on reliable socket", "error", err)
		}
	}

	host, _, _ := net.SplitHostPort(remoteAddr.String())
	udpTxConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(host), Port: s.cfg.UDPSendPort})
	if err != nil {
		s.logger.Error("dialing client udp send socket failed", "error", err, "remote", remoteAddr)
		conn.Close()
		return
	}
	if s.cfg.DSCP != 0 {
		if err := netutil.ApplyDSCP(udpTxConn, s.cfg.DSCP); err != nil {
			s.logger.Warn("dscp marking failed on datagram socket", "error", err)
		}
	}

	reliable := netio.NewReliable(conn, s.cfg.ReadTimeout)
	udpTx := netio.NewDatagram(udpTxConn, s.cfg.ReadTimeout)
	bucket := ratelimit.New(s.cfg.RateLimitFill, s.cfg.RateLimitCapacity, s.cfg.RateLimitTick)

	endpoint := NewEndpoint(reliable, udpTx, remoteAddr, s.scene, s.store, bucket, s.observer, s.cfg.KeepaliveInterval, s.logger)
	endpoint.SetCompression(wire.CompressionMode(s.cfg.Compression))
	endpoint.Geometry = s.cfg.Geometry
	go bucket.Run(endpoint.Done())

	s.mu.Lock()
	s.endpoints[host] = endpoint
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.endpoints, host)
		s.mu.Unlock()
		endpoint.Queues.Close()
		reliable.Close()
		udpTxConn.Close()
	}()

	if err := endpoint.Run(nil); err != nil {
		s.logger.Warn("connection ended", "remote", remoteAddr, "error", err)
	}
}

// ackDemuxLoop reads the single server-wide ACK socket and dispatches
// each datagram to the Endpoint matching its sender address.
func (s *Supervisor) ackDemuxLoop(ctx context.Context) {
	buf := make([]byte, netio.P)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.udpRecv.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := s.udpRecv.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("ack socket read failed", "error", err)
				continue
			}
		}
		s.mu.RLock()
		endpoint, ok := s.endpoints[addr.IP.String()]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		endpoint.HandleAckDatagram(payload)
	}
}

// ConnectionsSnapshot implements observability.MetricsSource.
func (s *Supervisor) ConnectionsSnapshot() []observability.ConnectionSnapshot {
	now := time.Now()
	var out []observability.ConnectionSnapshot
	for _, e := range s.snapshotEndpoints() {
		out = append(out, observability.ConnectionSnapshot{
			RemoteAddr:      e.RemoteAddr.String(),
			State:           e.Machine.State().String(),
			BytesSent:       e.bytesSent.Load(),
			BytesReceived:   e.bytesReceived.Load(),
			PersistentDepth: e.Queues.PersistentLen(),
			LastKeepaliveMS: now.UnixMilli(),
		})
	}
	return out
}

// Sweep closes any endpoint whose state machine has reached Draining or
// Closed but whose accept goroutine hasn't yet torn it down, then logs a
// stats snapshot (active connections, bytes sent, persistent-queue
// depth) — wired as the maintenance scheduler's periodic sweep.
func (s *Supervisor) Sweep() {
	for host, e := range s.snapshotEndpointsByHost() {
		st := e.Machine.State()
		if st == connstate.Draining || st == connstate.Closed {
			s.mu.Lock()
			delete(s.endpoints, host)
			s.mu.Unlock()
			e.Cancel()
		}
	}
	var active, persistentDepth int
	var bytesSent int64
	for _, e := range s.snapshotEndpoints() {
		active++
		bytesSent += e.bytesSent.Load()
		persistentDepth += e.Queues.PersistentLen()
	}
	s.logger.Info("maintenance stats", "active_connections", active, "bytes_sent", bytesSent, "persistent_depth", persistentDepth)
}

func (s *Supervisor) snapshotEndpointsByHost() map[string]*Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Endpoint, len(s.endpoints))
	for k, v := range s.endpoints {
		out[k] = v
	}
	return out
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return &net.UDPAddr{Port: 1235}
	}
	return a
}
