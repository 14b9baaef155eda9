// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package serverside implements the server half of the protocol: the
// per-connection endpoint supervisor, the resource-exchange
// sub-protocol, and the server update pipeline. Each connection's state
// is a composed struct with distinct task functions rather than an
// inheritance hierarchy of connection types.
package serverside

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenestream/scenestream/internal/connstate"
	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/monitor"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/ratelimit"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/scene"
	"github.com/scenestream/scenestream/internal/updatequeue"
	"github.com/scenestream/scenestream/internal/wire"
)

// Endpoint is one client connection's full task set: the sockets, the
// cancellation token, and the shared state the three per-connection
// tasks read and write. ACK datagrams are received by the Supervisor's
// shared demux loop and handed in through HandleAckDatagram.
type Endpoint struct {
	reliable *netio.Reliable
	udpTx    *netio.Datagram

	RemoteAddr net.Addr

	Scene  *scene.Scene
	Store  *resource.Store
	Queues *updatequeue.Queues
	Bucket   *ratelimit.TokenBucket
	Observer monitor.Observer
	Geometry GeometrySource

	Machine *connstate.Machine

	packetGen      atomic.Uint64
	bytesSent      atomic.Int64
	bytesReceived  atomic.Int64
	streamingSince time.Time

	keepaliveInterval time.Duration
	keepaliveJitter   time.Duration
	compression       wire.CompressionMode

	logger *slog.Logger

	cancel context.CancelFunc
	ctx    context.Context

	wg sync.WaitGroup
}

// NewEndpoint wires one accepted connection's state. sc and store are
// shared across all connections of the server (the scene is a single
// shared instance with its own internal locking); queues and the
// connstate Machine are per-connection.
func NewEndpoint(reliable *netio.Reliable, udpTx *netio.Datagram, remote net.Addr, sc *scene.Scene, store *resource.Store, bucket *ratelimit.TokenBucket, observer monitor.Observer, keepaliveInterval time.Duration, logger *slog.Logger) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = monitor.NoopObserver{}
	}
	return &Endpoint{
		reliable:          reliable,
		udpTx:             udpTx,
		RemoteAddr:        remote,
		Scene:             sc,
		Store:             store,
		Queues:            updatequeue.NewQueues(),
		Bucket:            bucket,
		Observer:          observer,
		Machine:           connstate.NewMachine(),
		keepaliveInterval: keepaliveInterval,
		keepaliveJitter:   time.Second,
		logger:            logger.With("remote", remote.String()),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// SetCompression selects the bulk-payload compression mode used for
// texture and shader resource packets.
func (e *Endpoint) SetCompression(mode wire.CompressionMode) {
	e.compression = mode
}

// Cancel flips the endpoint's cancellation token; every blocking
// primitive in the three tasks honours ctx.Done().
func (e *Endpoint) Cancel() {
	e.cancel()
}

// Done reports the endpoint's cancellation channel.
func (e *Endpoint) Done() <-chan struct{} {
	return e.ctx.Done()
}

// Wait blocks until all three tasks (rel-rx, rel-tx, udp-tx) have exited.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

// AdmitModel implements scene.ModelAdmitter: a newly added model-type
// node triggers resource exchange re-entry while the endpoint is
// already streaming.
func (e *Endpoint) AdmitModel(id idhash.ID) {
	if e.Machine.State() == connstate.Streaming {
		if err := e.Machine.Transition(connstate.ResourceExchange); err != nil {
			e.logger.Warn("model admission could not re-enter resource exchange", "error", err)
			return
		}
		if err := e.runResourceExchange([]idhash.ID{id}); err != nil {
			e.logger.Error("resource exchange for admitted model failed", "error", err)
			e.Machine.Transition(connstate.Draining)
			return
		}
		e.Machine.Transition(connstate.Streaming)
	}
	e.seedInitialGeometry(id)
}

// EmitTransformUpdate implements scene.TransformEmitter.
func (e *Endpoint) EmitTransformUpdate(nodeID idhash.ID, matrix [16]float32) {
	e.Queues.EnqueueTransitory(updatequeue.NewTransformUpdate(nodeID, matrix))
}

func (e *Endpoint) seedInitialGeometry(modelID idhash.ID) {
	m, ok := e.Store.Model(modelID)
	if !ok {
		return
	}
	if m.VertexCount > 0 {
		e.Queues.EnqueuePersistent(updatequeue.NewGeomUpdate(modelID, wire.GeomKindVertex, 0, m.VertexCount))
	}
	if m.IndexCount > 0 {
		e.Queues.EnqueuePersistent(updatequeue.NewGeomUpdate(modelID, wire.GeomKindIndex, 0, m.IndexCount))
	}
}

// Run drives the endpoint through handshake, resource exchange, and
// then the streaming loop's three long-running tasks, blocking until the
// connection closes.
func (e *Endpoint) Run(existingModelIDs []idhash.ID) error {
	e.Machine.Transition(connstate.Handshaking)
	if err := e.runHandshake(); err != nil {
		e.Machine.Transition(connstate.Draining)
		return err
	}

	e.Machine.Transition(connstate.ResourceExchange)
	if err := e.runResourceExchange(existingModelIDs); err != nil {
		e.Machine.Transition(connstate.Draining)
		return err
	}

	if err := e.runReadyHandshake(); err != nil {
		e.Machine.Transition(connstate.Draining)
		return err
	}
	e.Machine.Transition(connstate.Streaming)
	e.streamingSince = time.Now()

	e.wg.Add(3)
	go e.relRxTask()
	go e.relTxTask()
	go e.udpTxTask()

	<-e.ctx.Done()
	e.wg.Wait()
	e.Machine.Transition(connstate.Closed)
	return nil
}
