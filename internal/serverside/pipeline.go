// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serverside

import (
	"errors"
	"time"

	"github.com/scenestream/scenestream/internal/connstate"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/updatequeue"
	"github.com/scenestream/scenestream/internal/wire"
)

// relRxTask is the reliable-channel receive loop of a Streaming
// connection: it only expects KEEPALIVE and DISCONNECT once streaming
// has started. Any other message type, REQ_MODEL included, is logged
// and ignored; it does not start a resource exchange.
func (e *Endpoint) relRxTask() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		t, err := e.reliable.RecvType()
		if err != nil {
			if errors.Is(err, netio.ErrTimeout) {
				continue
			}
			if !errors.Is(err, netio.ErrDisconnected) {
				e.logger.Warn("reliable receive failed", "error", err)
			}
			e.Cancel()
			return
		}
		switch t {
		case wire.MsgKeepalive:
			if payload, rerr := e.reliable.ReadTrailing(wire.SizeKeepaliveDiagnostics); rerr != nil {
				e.logger.Warn("reading keepalive diagnostics failed", "error", rerr)
				e.Cancel()
				return
			} else if _, derr := wire.DecodeKeepaliveDiagnostics(payload); derr != nil {
				e.logger.Warn("malformed keepalive diagnostics ignored", "error", derr)
			}
			e.Machine.RecordKeepalive(time.Now())
		case wire.MsgDisconnect:
			e.logger.Info("client requested disconnect")
			e.Machine.Transition(connstate.Draining)
			e.Cancel()
			return
		default:
			e.logger.Warn("unexpected reliable message during streaming", "type", t.String())
		}
	}
}

// relTxTask sends periodic KEEPALIVE messages and watches for keepalive
// timeout, draining the connection from any state once it expires.
func (e *Endpoint) relTxTask() {
	defer e.wg.Done()
	interval := e.keepaliveInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			stats := e.Observer.Sample()
			diag := wire.KeepaliveDiagnostics{ServerLoad: float32(stats.CPUPercent), DiskFreeMB: uint32(stats.DiskFreeMB)}
			buf := make([]byte, wire.SizeKeepaliveDiagnostics)
			diag.Encode(buf)
			if err := e.reliable.SendMessage(wire.MsgKeepalive, buf); err != nil {
				e.logger.Warn("keepalive send failed", "error", err)
				e.Cancel()
				return
			}
			if e.Machine.KeepaliveExpired(time.Now(), e.streamingSince, interval, e.keepaliveJitter) {
				e.logger.Warn("keepalive timeout, draining connection")
				e.Machine.Transition(connstate.Draining)
				e.Cancel()
				return
			}
		}
	}
}

// udpTxTask is the server's update pipeline: wait for queued work,
// drain a snapshot, pack it into UdpHeader-framed datagrams no larger
// than netio.P, and send each one gated by the token bucket.
func (e *Endpoint) udpTxTask() {
	defer e.wg.Done()
	stop := e.ctx.Done()
	for {
		if !e.Queues.Wait() {
			return
		}
		select {
		case <-stop:
			return
		default:
		}

		transitory, persistent := e.Queues.Snapshot()
		all := make([]updatequeue.Update, 0, len(transitory)+len(persistent))
		all = append(all, persistent...)
		all = append(all, transitory...)
		if len(all) == 0 {
			continue
		}

		for _, datagram := range e.packDatagrams(all) {
			for !e.Bucket.Request(len(datagram)) {
				select {
				case <-stop:
					return
				default:
				}
				e.Bucket.WaitForTick(stop)
			}
			if err := e.udpTx.Send(datagram); err != nil {
				e.logger.Warn("datagram send failed", "error", err)
			} else {
				e.bytesSent.Add(int64(len(datagram)))
			}
		}
	}
}

// packDatagrams serializes updates into chunks and packs them into
// UdpHeader-framed datagrams, each bounded by netio.P: chunks keep
// accumulating into the current datagram until the next one would
// exceed P, at which point the datagram is flushed and a new one
// started.
func (e *Endpoint) packDatagrams(updates []updatequeue.Update) [][]byte {
	var out [][]byte
	region := make([]byte, 0, netio.P-wire.SizeUdpHeader)

	flush := func() {
		if len(region) == 0 {
			return
		}
		gen := e.packetGen.Add(1)
		buf := make([]byte, wire.SizeUdpHeader+len(region))
		wire.UdpHeader{PacketGen: gen, Size: uint32(len(region))}.Encode(buf)
		copy(buf[wire.SizeUdpHeader:], region)
		out = append(out, buf)
		region = region[:0]
	}

	for _, u := range updates {
		chunk := e.encodeChunk(u)
		if len(chunk) == 0 {
			continue
		}
		if wire.SizeUdpHeader+len(region)+len(chunk) > netio.P {
			flush()
		}
		if wire.SizeUdpHeader+len(chunk) > netio.P {
			e.logger.Warn("dropping chunk too large to fit in one datagram", "bytes", len(chunk))
			continue
		}
		region = append(region, chunk...)
	}
	flush()
	return out
}

func (e *Endpoint) encodeChunk(u updatequeue.Update) []byte {
	switch u.Kind {
	case updatequeue.KindGeom:
		return e.encodeGeomChunk(u)
	case updatequeue.KindTransform:
		buf := make([]byte, 1+wire.SizeTransformUpdateHdr)
		buf[0] = byte(wire.ChunkTransformUpdate)
		wire.TransformUpdateHeader{NodeID: wire.NodeID(u.Transform.NodeID), Matrix: u.Transform.Matrix}.Encode(buf[1:])
		return buf
	case updatequeue.KindLight:
		light, ok := e.Store.PointLight(u.Light.LightID)
		if !ok {
			return nil
		}
		buf := make([]byte, 1+wire.SizePointLightUpdateHdr)
		buf[0] = byte(wire.ChunkPointLightUpdate)
		wire.PointLightUpdateHeader{LightID: wire.LightID(light.ID), Color: light.Color, Intensity: light.Intensity}.Encode(buf[1:])
		return buf
	default:
		return nil
	}
}

// HandleAckDatagram decodes one AckPacket and evicts the acknowledged
// entries from the persistent queue. Called by the supervisor's shared
// udp-rx task, which
// demultiplexes the single server-wide ACK socket by sender address —
// the wire only fixes one ACK port (1235) for every connection, so the
// recv side cannot be a dedicated per-Endpoint socket the way udp-tx is.
// Ack ids on the wire are the low 32 bits of the SerialID the sender and
// receiver both derive independently from the same (model, kind, start,
// length) tuple.
func (e *Endpoint) HandleAckDatagram(buf []byte) {
	ack, err := wire.DecodeAckPacket(buf)
	if err != nil {
		e.logger.Warn("malformed ack packet dropped", "error", err)
		return
	}
	e.bytesReceived.Add(int64(len(buf)))
	for _, id := range ack.AckIDs {
		e.Queues.AckByLowBits(id)
	}
}

func (e *Endpoint) encodeGeomChunk(u updatequeue.Update) []byte {
	g := u.Geom
	model, ok := e.Store.Model(g.ModelID)
	if !ok {
		return nil
	}
	payload := e.geomPayload(model, g)
	if payload == nil {
		return nil
	}
	buf := make([]byte, 1+wire.SizeGeomUpdateHeader+len(payload))
	buf[0] = byte(wire.ChunkGeomUpdate)
	wire.GeomUpdateHeader{ModelID: wire.ModelID(g.ModelID), Kind: g.GeomKind, Start: g.Start, Length: g.Length}.Encode(buf[1:])
	copy(buf[1+wire.SizeGeomUpdateHeader:], payload)
	return buf
}
