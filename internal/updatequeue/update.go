// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package updatequeue implements the server's two update containers: a
// transitory FIFO sent at most once, and a persistent id-keyed map
// retransmitted until ACKed.
package updatequeue

import (
	"encoding/binary"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

// Kind distinguishes the three update shapes an Update may carry.
type Kind uint8

const (
	KindGeom      Kind = 0
	KindLight     Kind = 1
	KindTransform Kind = 2
)

// GeomDescriptor carries just enough to reconstruct a GEOM_UPDATE chunk;
// its payload bytes are read from the server endpoint's GeometrySource at
// send time, not copied into the queue.
type GeomDescriptor struct {
	ModelID idhash.ID
	GeomKind wire.GeomKind
	Start   uint32
	Length  uint32
}

// SerialID is the deterministic key a GeomDescriptor collapses to in the
// persistent queue: identical (model, kind, start, length) edits
// overwrite one another.
type SerialID uint64

func (g GeomDescriptor) SerialID() SerialID {
	var b [13]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(g.ModelID))
	b[4] = byte(g.GeomKind)
	binary.LittleEndian.PutUint32(b[5:9], g.Start)
	binary.LittleEndian.PutUint32(b[9:13], g.Length)
	// FNV-1a over the composite key, folded into the 64-bit serial space.
	var h uint64 = 0xcbf29ce484222325
	for _, c := range b {
		h ^= uint64(c)
		h *= 0x100000001b3
	}
	return SerialID(h)
}

// TransformDescriptor carries a node's freshly composed world matrix.
type TransformDescriptor struct {
	NodeID idhash.ID
	Matrix [16]float32
}

// LightDescriptor carries a point light id whose payload (color,
// intensity) is read from the lights list at send time.
type LightDescriptor struct {
	LightID idhash.ID
}

// Update is one entry in either queue.
type Update struct {
	Kind      Kind
	Geom      GeomDescriptor
	Transform TransformDescriptor
	Light     LightDescriptor
}

// NewGeomUpdate builds a geometry Update.
func NewGeomUpdate(modelID idhash.ID, kind wire.GeomKind, start, length uint32) Update {
	return Update{Kind: KindGeom, Geom: GeomDescriptor{ModelID: modelID, GeomKind: kind, Start: start, Length: length}}
}

// NewTransformUpdate builds a transform Update.
func NewTransformUpdate(nodeID idhash.ID, matrix [16]float32) Update {
	return Update{Kind: KindTransform, Transform: TransformDescriptor{NodeID: nodeID, Matrix: matrix}}
}

// NewLightUpdate builds a point-light Update.
func NewLightUpdate(lightID idhash.ID) Update {
	return Update{Kind: KindLight, Light: LightDescriptor{LightID: lightID}}
}
