// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"sync"

	"github.com/scenestream/scenestream/internal/idhash"
)

// SceneMirror is the client's node-id-keyed table of the latest
// composed world matrix received per node. Unlike internal/scene.Scene,
// which composes hierarchical {position,rotation,scale} transforms on
// the authoring side, the mirror only ever receives already-composed
// column-major matrices over TRANSFORM_UPDATE chunks — there is no
// hierarchy to walk on the receiving end.
type SceneMirror struct {
	mu    sync.RWMutex
	nodes map[idhash.ID][16]float32
	dirty map[idhash.ID]bool
}

// NewSceneMirror creates an empty SceneMirror.
func NewSceneMirror() *SceneMirror {
	return &SceneMirror{
		nodes: make(map[idhash.ID][16]float32),
		dirty: make(map[idhash.ID]bool),
	}
}

// Apply stores matrix as nodeID's latest world transform and marks it
// dirty for the renderer to pick up.
func (m *SceneMirror) Apply(nodeID idhash.ID, matrix [16]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = matrix
	m.dirty[nodeID] = true
}

// WorldMatrix returns nodeID's latest known world matrix.
func (m *SceneMirror) WorldMatrix(nodeID idhash.ID) ([16]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mat, ok := m.nodes[nodeID]
	return mat, ok
}

// DrainDirty returns every node id touched since the last DrainDirty
// call and clears the dirty set (the renderer's per-frame "what
// changed" poll).
func (m *SceneMirror) DrainDirty() []idhash.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]idhash.ID, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	m.dirty = make(map[idhash.ID]bool)
	return ids
}
