// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"errors"
	"fmt"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/netio"
	"github.com/scenestream/scenestream/internal/wire"
)

// DrainAndApply drains whatever raw datagram bytes udp-rx has
// accumulated and applies every chunk they carry into the geometry
// staging buffer, the point light store, and the scene mirror. It must
// be called from the single main/render thread — it
// is the only place a renderer's dirty-range callback fires from, and
// the only place ack ids are produced, so calling it from more than one
// goroutine would race the ack outbox and the staging writes it guards
// (GeometryBuffer has its own lock, but interleaved Reserve/Apply pairs
// from concurrent callers could still reorder observably).
func (c *Client) DrainAndApply() (chunksApplied int, err error) {
	n := c.Staging.DrainInto(c.scratch)
	buf := c.scratch[:n]

	for len(buf) > 0 {
		h, tail, derr := wire.DecodeUdpHeader(buf)
		if derr != nil {
			return chunksApplied, fmt.Errorf("clientside: decoding datagram header mid-stream: %w", derr)
		}
		if int(h.Size) > len(tail) {
			return chunksApplied, fmt.Errorf("clientside: datagram declares %d region bytes, only %d remain", h.Size, len(tail))
		}
		region := tail[:h.Size]
		buf = tail[h.Size:]

		cursor := netio.NewChunkCursor(region)
		for {
			chunk, ok, cerr := cursor.Next()
			if cerr != nil {
				if errors.Is(cerr, wire.ErrInvalidChunkType) {
					c.logger.Warn("unknown chunk type, abandoning rest of datagram", "error", cerr)
					break
				}
				return chunksApplied, fmt.Errorf("clientside: decoding chunk: %w", cerr)
			}
			if !ok {
				break
			}
			c.applyChunk(h.PacketGen, chunk)
			chunksApplied++
		}
	}
	return chunksApplied, nil
}

func (c *Client) applyChunk(packetGen uint64, chunk netio.Chunk) {
	switch chunk.Type {
	case wire.ChunkGeomUpdate:
		modelID := idhash.ID(chunk.Geom.ModelID)
		if err := c.Geometry.Apply(modelID, packetGen, chunk.Geom.Kind, chunk.Geom.Start, chunk.Geom.Length, chunk.GeomBytes); err != nil {
			c.logger.Warn("geometry update rejected", "error", err)
			return
		}
		c.enqueueAck(modelID, chunk.Geom.Kind, chunk.Geom.Start, chunk.Geom.Length)

	case wire.ChunkPointLightUpdate:
		id := idhash.ID(chunk.Light.LightID)
		if !c.Store.UpdatePointLight(id, chunk.Light.Color, chunk.Light.Intensity) {
			c.logger.Warn("point light update for unknown light discarded", "light", id)
		}

	case wire.ChunkTransformUpdate:
		c.Scene.Apply(idhash.ID(chunk.Transform.NodeID), chunk.Transform.Matrix)
	}
}
