// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package netio

import (
	"fmt"

	"github.com/scenestream/scenestream/internal/wire"
)

// Chunk is one decoded datagram chunk.
type Chunk struct {
	Type      wire.ChunkType
	Geom      wire.GeomUpdateHeader
	GeomBytes []byte // trailing payload for a GEOM_UPDATE chunk
	Light     wire.PointLightUpdateHeader
	Transform wire.TransformUpdateHeader
}

// ChunkCursor walks the size-bounded chunk region of one datagram.
type ChunkCursor struct {
	region   []byte
	consumed int
}

// NewChunkCursor creates a cursor over region (the bytes immediately
// following the UdpHeader, already sliced to exactly header.Size bytes
// by the caller).
func NewChunkCursor(region []byte) *ChunkCursor {
	return &ChunkCursor{region: region}
}

// Next decodes the next chunk. ok is false once the region is fully
// consumed. An unknown chunk type is reported via ErrInvalidChunkType;
// the caller should abort parsing the rest of this datagram rather than
// treat it as a connection error.
func (c *ChunkCursor) Next() (chunk Chunk, ok bool, err error) {
	if len(c.region) == 0 {
		return Chunk{}, false, nil
	}
	if len(c.region) < 1 {
		return Chunk{}, false, wire.ErrTruncated
	}
	t := wire.ChunkType(c.region[0])
	rest := c.region[1:]

	switch t {
	case wire.ChunkGeomUpdate:
		hdr, tail, derr := wire.DecodeGeomUpdateHeader(rest)
		if derr != nil {
			return Chunk{}, false, derr
		}
		payloadLen := int(hdr.Length) * hdr.Kind.ElementSize()
		if len(tail) < payloadLen {
			return Chunk{}, false, wire.ErrTruncated
		}
		payload := tail[:payloadLen]
		c.advance(1 + wire.SizeGeomUpdateHeader + payloadLen)
		return Chunk{Type: t, Geom: hdr, GeomBytes: payload}, true, nil

	case wire.ChunkPointLightUpdate:
		hdr, _, derr := wire.DecodePointLightUpdateHeader(rest)
		if derr != nil {
			return Chunk{}, false, derr
		}
		c.advance(1 + wire.SizePointLightUpdateHdr)
		return Chunk{Type: t, Light: hdr}, true, nil

	case wire.ChunkTransformUpdate:
		hdr, _, derr := wire.DecodeTransformUpdateHeader(rest)
		if derr != nil {
			return Chunk{}, false, derr
		}
		c.advance(1 + wire.SizeTransformUpdateHdr)
		return Chunk{Type: t, Transform: hdr}, true, nil

	default:
		return Chunk{}, false, fmt.Errorf("%w: chunk type 0x%02x", wire.ErrInvalidChunkType, t)
	}
}

func (c *ChunkCursor) advance(n int) {
	c.region = c.region[n:]
	c.consumed += n
}

// Consumed returns the number of bytes consumed so far.
func (c *ChunkCursor) Consumed() int { return c.consumed }

// Remaining returns the number of bytes not yet consumed.
func (c *ChunkCursor) Remaining() int { return len(c.region) }
