// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package staging

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

const (
	defaultVertexCapacity = 64 * 1024 * 1024
	defaultIndexCapacity  = 32 * 1024 * 1024
)

// Location describes where one model's vertex and index bytes live
// inside the two fixed-capacity staging regions. Locations are assigned
// monotonically as models are received and never move during a
// streaming session.
type Location struct {
	VertexOffset uint32
	VertexLength uint32
	IndexOffset  uint32
	IndexLength  uint32
}

// RendererSignal is the renderer's side of the staging handoff: the
// core writes into a host-visible region and calls DirtyRange so the
// external renderer knows which byte span to re-upload.
type RendererSignal interface {
	DirtyRange(kind wire.GeomKind, offset, length int)
}

// NoopSignal discards every dirty-range notification; used when no
// renderer is attached (tests, headless tools).
type NoopSignal struct{}

func (NoopSignal) DirtyRange(wire.GeomKind, int, int) {}

// GeometryBuffer is the client's pair of host-visible byte buffers
// (vertex-staging, index-staging) plus the id-keyed location map.
// Locations are assigned once, on RSRC_MODEL receipt, sized to the
// model's declared vertex/index counts; GEOM_UPDATE chunks write into
// the already-reserved region.
type GeometryBuffer struct {
	mu sync.Mutex

	vertex []byte
	index  []byte

	vertexUsed uint32
	indexUsed  uint32

	locations map[idhash.ID]Location

	// lastGen tracks, per model and per geometry kind, the newest
	// packet-gen that has touched any range of that region, so a chunk
	// whose packet-gen is older than the latest one already applied can
	// be refused. Tracked per-model rather than per-byte-range: good
	// enough since persistent resends always carry a fresh packet-gen.
	lastGen map[genKey]uint64

	signal RendererSignal
	logger *slog.Logger
}

type genKey struct {
	model idhash.ID
	kind  wire.GeomKind
}

// NewGeometryBuffer creates a GeometryBuffer with the given vertex and
// index region capacities in bytes (zero selects the package defaults).
func NewGeometryBuffer(vertexCapacity, indexCapacity int, signal RendererSignal, logger *slog.Logger) *GeometryBuffer {
	if vertexCapacity <= 0 {
		vertexCapacity = defaultVertexCapacity
	}
	if indexCapacity <= 0 {
		indexCapacity = defaultIndexCapacity
	}
	if signal == nil {
		signal = NoopSignal{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeometryBuffer{
		vertex:    make([]byte, vertexCapacity),
		index:     make([]byte, indexCapacity),
		locations: make(map[idhash.ID]Location),
		lastGen:   make(map[genKey]uint64),
		signal:    signal,
		logger:    logger,
	}
}

// Reserve assigns modelID a fixed location sized to vertexCount and
// indexCount elements, bumping the monotonic region cursors. Reserving
// an id a second time is a no-op returning the existing location (a
// model re-admitted mid-session keeps its original bytes in place).
func (g *GeometryBuffer) Reserve(modelID idhash.ID, vertexCount, indexCount uint32) (Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if loc, ok := g.locations[modelID]; ok {
		return loc, nil
	}

	vlen := vertexCount * uint32(wire.SizeVertex)
	ilen := indexCount * uint32(wire.SizeIndex)
	if g.vertexUsed+vlen > uint32(len(g.vertex)) {
		return Location{}, fmt.Errorf("staging: vertex region exhausted reserving model %d (%d of %d bytes)",
			modelID, g.vertexUsed+vlen, len(g.vertex))
	}
	if g.indexUsed+ilen > uint32(len(g.index)) {
		return Location{}, fmt.Errorf("staging: index region exhausted reserving model %d (%d of %d bytes)",
			modelID, g.indexUsed+ilen, len(g.index))
	}

	loc := Location{
		VertexOffset: g.vertexUsed,
		VertexLength: vlen,
		IndexOffset:  g.indexUsed,
		IndexLength:  ilen,
	}
	g.vertexUsed += vlen
	g.indexUsed += ilen
	g.locations[modelID] = loc
	return loc, nil
}

// Location returns the reserved location for modelID, if any.
func (g *GeometryBuffer) Location(modelID idhash.ID) (Location, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	loc, ok := g.locations[modelID]
	return loc, ok
}

// Apply writes one GEOM_UPDATE chunk's payload into the reserved
// region for modelID. An unreserved modelID is discarded with a
// warning (the model has not been received yet, or was removed). A
// chunk whose packetGen is older than the newest packet-gen already
// applied to this model/kind is dropped as stale.
func (g *GeometryBuffer) Apply(modelID idhash.ID, packetGen uint64, kind wire.GeomKind, start, length uint32, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	loc, ok := g.locations[modelID]
	if !ok {
		g.logger.Warn("geom update for unknown model discarded", "model", modelID)
		return nil
	}

	key := genKey{model: modelID, kind: kind}
	if prev, seen := g.lastGen[key]; seen && packetGen < prev {
		return nil // stale update, silently dropped
	}

	elemSize := uint32(kind.ElementSize())
	byteStart := start * elemSize
	byteLen := length * elemSize

	var region []byte
	var regionOffset, regionLen uint32
	if kind == wire.GeomKindIndex {
		region, regionOffset, regionLen = g.index, loc.IndexOffset, loc.IndexLength
	} else {
		region, regionOffset, regionLen = g.vertex, loc.VertexOffset, loc.VertexLength
	}

	if byteStart+byteLen > regionLen {
		return fmt.Errorf("staging: geom update model=%d kind=%d range [%d,%d) exceeds reserved length %d",
			modelID, kind, byteStart, byteStart+byteLen, regionLen)
	}
	if uint32(len(payload)) != byteLen {
		return fmt.Errorf("staging: geom update model=%d payload length %d does not match declared %d",
			modelID, len(payload), byteLen)
	}

	base := regionOffset + byteStart
	copy(region[base:base+byteLen], payload)
	g.lastGen[key] = packetGen

	g.signal.DirtyRange(kind, int(base), int(byteLen))
	return nil
}

// VertexBytes returns the live bytes of modelID's vertex region (for
// inspection by the renderer or tests).
func (g *GeometryBuffer) VertexBytes(modelID idhash.ID) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	loc, ok := g.locations[modelID]
	if !ok {
		return nil
	}
	return g.vertex[loc.VertexOffset : loc.VertexOffset+loc.VertexLength]
}

// IndexBytes returns the live bytes of modelID's index region.
func (g *GeometryBuffer) IndexBytes(modelID idhash.ID) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	loc, ok := g.locations[modelID]
	if !ok {
		return nil
	}
	return g.index[loc.IndexOffset : loc.IndexOffset+loc.IndexLength]
}
