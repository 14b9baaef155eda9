// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package staging

import (
	"bytes"
	"testing"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

func TestGeometryBuffer_ApplySingleChunk(t *testing.T) {
	g := NewGeometryBuffer(0, 0, nil, nil)
	model := idhash.Of("m")
	if _, err := g.Reserve(model, 10, 0); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	payload := bytes.Repeat([]byte{0xAB}, 3*wire.SizeVertex)
	if err := g.Apply(model, 1, wire.GeomKindVertex, 0, 3, payload); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := g.VertexBytes(model)[:len(payload)]
	if !bytes.Equal(got, payload) {
		t.Errorf("vertex bytes mismatch: got %v want %v", got, payload)
	}
}

func TestGeometryBuffer_ApplyIdempotent(t *testing.T) {
	g := NewGeometryBuffer(0, 0, nil, nil)
	model := idhash.Of("m")
	g.Reserve(model, 10, 0)
	payload := bytes.Repeat([]byte{0x01}, wire.SizeVertex)

	g.Apply(model, 1, wire.GeomKindVertex, 0, 1, payload)
	first := append([]byte(nil), g.VertexBytes(model)...)
	g.Apply(model, 1, wire.GeomKindVertex, 0, 1, payload)
	second := g.VertexBytes(model)

	if !bytes.Equal(first, second) {
		t.Error("re-applying the same chunk changed staging state")
	}
}

func TestGeometryBuffer_StaleGenDropped(t *testing.T) {
	g := NewGeometryBuffer(0, 0, nil, nil)
	model := idhash.Of("m")
	g.Reserve(model, 10, 0)

	fresh := bytes.Repeat([]byte{0xFF}, wire.SizeVertex)
	stale := bytes.Repeat([]byte{0x00}, wire.SizeVertex)

	if err := g.Apply(model, 7, wire.GeomKindVertex, 0, 1, fresh); err != nil {
		t.Fatalf("Apply fresh: %v", err)
	}
	if err := g.Apply(model, 6, wire.GeomKindVertex, 0, 1, stale); err != nil {
		t.Fatalf("Apply stale: %v", err)
	}

	got := g.VertexBytes(model)[:wire.SizeVertex]
	if !bytes.Equal(got, fresh) {
		t.Errorf("stale datagram overwrote fresher data: got %v want %v", got, fresh)
	}
}

func TestGeometryBuffer_UnknownModelDiscarded(t *testing.T) {
	g := NewGeometryBuffer(0, 0, nil, nil)
	payload := bytes.Repeat([]byte{0x01}, wire.SizeVertex)
	if err := g.Apply(idhash.Of("nope"), 1, wire.GeomKindVertex, 0, 1, payload); err != nil {
		t.Fatalf("expected no error for unknown model, got %v", err)
	}
}

func TestGeometryBuffer_OutOfRangeRejected(t *testing.T) {
	g := NewGeometryBuffer(0, 0, nil, nil)
	model := idhash.Of("m")
	g.Reserve(model, 2, 0)
	payload := bytes.Repeat([]byte{0x01}, 3*wire.SizeVertex)
	if err := g.Apply(model, 1, wire.GeomKindVertex, 0, 3, payload); err == nil {
		t.Fatal("expected out-of-range update to be rejected")
	}
}

func TestGeometryBuffer_ReserveExhaustion(t *testing.T) {
	g := NewGeometryBuffer(wire.SizeVertex, 0, nil, nil)
	if _, err := g.Reserve(idhash.Of("a"), 1, 0); err != nil {
		t.Fatalf("first reserve should fit: %v", err)
	}
	if _, err := g.Reserve(idhash.Of("b"), 1, 0); err == nil {
		t.Fatal("expected second reserve to exhaust capacity")
	}
}
