// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serverside

import (
	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/updatequeue"
	"github.com/scenestream/scenestream/internal/wire"
)

// GeometrySource supplies the raw vertex/index bytes a GEOM_UPDATE
// chunk streams; geometry bytes live outside ResourceStore, produced by
// whatever application stage owns the live mesh data. A nil Geometry on
// an Endpoint causes geometry updates to be silently dropped, the same
// as any other unresolved resource reference.
type GeometrySource interface {
	GeomBytes(modelID idhash.ID, kind wire.GeomKind, start, length uint32) []byte
}

// geomPayload resolves a GeomDescriptor to its wire bytes via the
// configured GeometrySource, clamped to the model's stored counts.
func (e *Endpoint) geomPayload(model resource.Model, g updatequeue.GeomDescriptor) []byte {
	if e.Geometry == nil {
		return nil
	}
	count := model.VertexCount
	if g.GeomKind == wire.GeomKindIndex {
		count = model.IndexCount
	}
	if g.Start+g.Length > count {
		e.logger.Warn("geometry update range exceeds model count, clamping", "model", g.ModelID, "count", count)
		if g.Start >= count {
			return nil
		}
		g.Length = count - g.Start
	}
	return e.Geometry.GeomBytes(g.ModelID, g.GeomKind, g.Start, g.Length)
}
