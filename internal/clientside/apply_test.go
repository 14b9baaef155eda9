// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"bytes"
	"testing"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/staging"
	"github.com/scenestream/scenestream/internal/updatequeue"
	"github.com/scenestream/scenestream/internal/wire"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	store := resource.New(nil)
	return New(Config{StagingCapacity: 1 << 20, VertexCapacity: 1 << 16, IndexCapacity: 1 << 16}, store, staging.NoopSignal{}, nil)
}

// buildDatagram assembles one UdpHeader-framed datagram carrying the
// given pre-encoded chunk bytes, mirroring what packDatagrams produces
// on the server side (§4.1, §4.9 step 1).
func buildDatagram(packetGen uint64, chunks ...[]byte) []byte {
	var region []byte
	for _, c := range chunks {
		region = append(region, c...)
	}
	buf := make([]byte, wire.SizeUdpHeader+len(region))
	wire.UdpHeader{PacketGen: packetGen, Size: uint32(len(region))}.Encode(buf)
	copy(buf[wire.SizeUdpHeader:], region)
	return buf
}

func geomChunk(modelID idhash.ID, kind wire.GeomKind, start, length uint32, payload []byte) []byte {
	buf := make([]byte, 1+wire.SizeGeomUpdateHeader+len(payload))
	buf[0] = byte(wire.ChunkGeomUpdate)
	wire.GeomUpdateHeader{ModelID: wire.ModelID(modelID), Kind: kind, Start: start, Length: length}.Encode(buf[1:])
	copy(buf[1+wire.SizeGeomUpdateHeader:], payload)
	return buf
}

// TestDrainAndApplySingleGeomChunk exercises §8 scenario 2 end to end on
// the client: one datagram with one GEOM_UPDATE chunk lands in staging
// bytes for the right model, and the applied chunk's serial id is
// queued for acknowledgement.
func TestDrainAndApplySingleGeomChunk(t *testing.T) {
	c := newTestClient(t)
	modelID := idhash.Of("test-model")
	if _, err := c.Geometry.Reserve(modelID, 10, 0); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	payload := bytes.Repeat([]byte{0xCD}, 3*wire.SizeVertex)
	dg := buildDatagram(1, geomChunk(modelID, wire.GeomKindVertex, 0, 3, payload))
	c.Staging.Append(dg)

	n, err := c.DrainAndApply()
	if err != nil {
		t.Fatalf("DrainAndApply: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunksApplied = %d, want 1", n)
	}

	got := c.Geometry.VertexBytes(modelID)[:len(payload)]
	if !bytes.Equal(got, payload) {
		t.Fatalf("staged vertex bytes mismatch: got %v want %v", got, payload)
	}

	wantSerial := uint32(updatequeue.GeomDescriptor{ModelID: modelID, GeomKind: wire.GeomKindVertex, Start: 0, Length: 3}.SerialID())
	ids := c.ack.Drain()
	if len(ids) != 1 || ids[0] != wantSerial {
		t.Fatalf("ack outbox = %v, want [%d]", ids, wantSerial)
	}
}

// TestDrainAndApplyIdempotent exercises §8's idempotence property:
// applying the same GEOM_UPDATE twice leaves staging state unchanged.
func TestDrainAndApplyIdempotent(t *testing.T) {
	c := newTestClient(t)
	modelID := idhash.Of("test-model")
	c.Geometry.Reserve(modelID, 10, 0)

	payload := bytes.Repeat([]byte{0x11}, wire.SizeVertex)
	chunk := geomChunk(modelID, wire.GeomKindVertex, 0, 1, payload)

	c.Staging.Append(buildDatagram(1, chunk))
	if _, err := c.DrainAndApply(); err != nil {
		t.Fatalf("first DrainAndApply: %v", err)
	}
	first := append([]byte(nil), c.Geometry.VertexBytes(modelID)...)

	c.Staging.Append(buildDatagram(1, chunk))
	if _, err := c.DrainAndApply(); err != nil {
		t.Fatalf("second DrainAndApply: %v", err)
	}
	second := c.Geometry.VertexBytes(modelID)

	if !bytes.Equal(first, second) {
		t.Fatal("re-applying the same chunk changed staging state")
	}
}

// TestDrainAndApplyMultipleDatagramsInOneDrain checks that several
// datagrams concatenated in the staging queue (as udp-rx's Append calls
// accumulate between drains) are each parsed using their own
// size-bounded region, not bleeding into the next datagram's header.
func TestDrainAndApplyMultipleDatagramsInOneDrain(t *testing.T) {
	c := newTestClient(t)
	modelID := idhash.Of("test-model")
	c.Geometry.Reserve(modelID, 10, 0)

	p1 := bytes.Repeat([]byte{0x01}, wire.SizeVertex)
	p2 := bytes.Repeat([]byte{0x02}, wire.SizeVertex)
	c.Staging.Append(buildDatagram(1, geomChunk(modelID, wire.GeomKindVertex, 0, 1, p1)))
	c.Staging.Append(buildDatagram(2, geomChunk(modelID, wire.GeomKindVertex, 1, 1, p2)))

	n, err := c.DrainAndApply()
	if err != nil {
		t.Fatalf("DrainAndApply: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunksApplied = %d, want 2", n)
	}

	got := c.Geometry.VertexBytes(modelID)
	if !bytes.Equal(got[:wire.SizeVertex], p1) || !bytes.Equal(got[wire.SizeVertex:2*wire.SizeVertex], p2) {
		t.Fatalf("vertex region mismatch after multi-datagram drain")
	}
}

// TestDrainAndApplyUnknownChunkTypeAbandonsDatagram exercises §4.9
// "unknown chunk types abort parsing of the current datagram; this is
// not a connection error" — a following, otherwise-valid datagram must
// still be applied.
func TestDrainAndApplyUnknownChunkTypeAbandonsDatagram(t *testing.T) {
	c := newTestClient(t)
	modelID := idhash.Of("test-model")
	c.Geometry.Reserve(modelID, 10, 0)

	badChunk := []byte{0x7F} // unknown chunk type, no recognizable header
	goodPayload := bytes.Repeat([]byte{0x09}, wire.SizeVertex)
	goodChunk := geomChunk(modelID, wire.GeomKindVertex, 0, 1, goodPayload)

	c.Staging.Append(buildDatagram(1, badChunk))
	c.Staging.Append(buildDatagram(2, goodChunk))

	n, err := c.DrainAndApply()
	if err != nil {
		t.Fatalf("DrainAndApply must not return an error for an unknown chunk type: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunksApplied = %d, want 1 (only the second datagram's chunk)", n)
	}
	got := c.Geometry.VertexBytes(modelID)[:wire.SizeVertex]
	if !bytes.Equal(got, goodPayload) {
		t.Fatalf("expected the trailing valid datagram to still be applied")
	}
}

// TestDrainAndApplyPointLightAndTransform checks the non-geometry chunk
// paths update their respective in-memory mirrors and never enqueue an
// ack (only GEOM_UPDATE chunks do, per §4.9 step 2).
func TestDrainAndApplyPointLightAndTransform(t *testing.T) {
	c := newTestClient(t)
	lightID := idhash.Of("light-1")
	c.Store.InsertPointLight(resource.PointLight{ID: lightID, Color: [3]float32{0, 0, 0}, Intensity: 0})

	lightChunk := make([]byte, 1+wire.SizePointLightUpdateHdr)
	lightChunk[0] = byte(wire.ChunkPointLightUpdate)
	wire.PointLightUpdateHeader{LightID: wire.LightID(lightID), Color: [3]float32{1, 0.5, 0.25}, Intensity: 2}.Encode(lightChunk[1:])

	nodeID := idhash.Of("node-1")
	var matrix [16]float32
	matrix[0], matrix[5], matrix[10], matrix[15] = 1, 1, 1, 1
	transformChunk := make([]byte, 1+wire.SizeTransformUpdateHdr)
	transformChunk[0] = byte(wire.ChunkTransformUpdate)
	wire.TransformUpdateHeader{NodeID: wire.NodeID(nodeID), Matrix: matrix}.Encode(transformChunk[1:])

	c.Staging.Append(buildDatagram(1, lightChunk, transformChunk))
	n, err := c.DrainAndApply()
	if err != nil {
		t.Fatalf("DrainAndApply: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunksApplied = %d, want 2", n)
	}

	light, ok := c.Store.PointLight(lightID)
	if !ok {
		t.Fatalf("light %v missing from store", lightID)
	}
	if light.Intensity != 2 || light.Color != [3]float32{1, 0.5, 0.25} {
		t.Fatalf("light not updated: %+v", light)
	}

	mat, ok := c.Scene.WorldMatrix(nodeID)
	if !ok || mat != matrix {
		t.Fatalf("scene mirror not updated for node %v: %+v (ok=%v)", nodeID, mat, ok)
	}

	if ids := c.ack.Drain(); len(ids) != 0 {
		t.Fatalf("non-geometry chunks must not enqueue acks, got %v", ids)
	}
}
