// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package scene implements the flat, id-keyed scene graph node list and
// its operations: add-node, remove, get, set-transform.
package scene

import (
	"fmt"
	"sync"

	"github.com/scenestream/scenestream/internal/idhash"
)

// NodeType enumerates the kinds of node the scene graph may hold.
type NodeType uint8

const (
	NodeEmpty      NodeType = 0
	NodeModel      NodeType = 1
	NodePointLight NodeType = 2
)

// Flags on a Node.
type Flags uint8

const (
	// FlagStatic excludes a node from transform-update emission,
	// consistently across every code path that touches the node.
	FlagStatic Flags = 1 << 0
)

// Node is one entry in the scene's flat list.
type Node struct {
	ID        idhash.ID
	Type      NodeType
	Transform Transform
	ParentID  idhash.ID
	Flags     Flags

	dirty bool
}

func (n Node) Static() bool { return n.Flags&FlagStatic != 0 }

// ModelAdmitter is notified when add-node introduces a model-type node,
// so the resource-exchange sub-protocol and the first geometry updates
// can be triggered. Implemented by the server update pipeline; kept as
// an interface here to avoid a dependency cycle.
type ModelAdmitter interface {
	AdmitModel(id idhash.ID)
}

// TransformEmitter receives a TransformUpdate whenever set-transform
// marks a non-static node dirty.
type TransformEmitter interface {
	EmitTransformUpdate(nodeID idhash.ID, matrix [16]float32)
}

// Scene is the server's (or the client's mirror) flat node list.
type Scene struct {
	mu       sync.RWMutex
	nodes    map[idhash.ID]*Node
	order    []idhash.ID // insertion order, stable iteration
	admitter ModelAdmitter
	emitter  TransformEmitter
}

// New creates a Scene with its single implicit root node already
// present: exactly one root (id = "__root"), type empty.
func New(admitter ModelAdmitter, emitter TransformEmitter) *Scene {
	s := &Scene{
		nodes:    make(map[idhash.ID]*Node),
		admitter: admitter,
		emitter:  emitter,
	}
	root := &Node{ID: idhash.RootID, Type: NodeEmpty, Transform: Identity}
	s.nodes[root.ID] = root
	s.order = append(s.order, root.ID)
	return s
}

// AddNode inserts a node. Adding a model-type node triggers the
// resource-exchange admission hook and seeds the model's first geometry
// updates.
func (s *Scene) AddNode(id idhash.ID, typ NodeType, t Transform, parentID idhash.ID, flags Flags) (*Node, error) {
	s.mu.Lock()
	if _, exists := s.nodes[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("scene: node %d already exists", id)
	}
	if _, ok := s.nodes[parentID]; !ok && id != idhash.RootID {
		s.mu.Unlock()
		return nil, fmt.Errorf("scene: parent %d does not exist", parentID)
	}
	n := &Node{ID: id, Type: typ, Transform: t, ParentID: parentID, Flags: flags}
	s.nodes[id] = n
	s.order = append(s.order, id)
	s.mu.Unlock()

	if typ == NodeModel && s.admitter != nil {
		s.admitter.AdmitModel(id)
	}
	return n, nil
}

// Remove deletes a node from the scene. Removing a node does not cascade
// to its children (the app-stage is responsible for ordering removals);
// a child left with a dangling parent id simply stops composing further.
func (s *Scene) Remove(id idhash.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the node for id.
func (s *Scene) Get(id idhash.ID) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// SetTransform updates a node's local transform, marks it dirty, and —
// unless the node carries FlagStatic — emits a TransformUpdate into the
// transitory queue via the configured TransformEmitter.
func (s *Scene) SetTransform(id idhash.ID, t Transform) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scene: node %d does not exist", id)
	}
	n.Transform = t
	n.dirty = true
	static := n.Static()
	world := s.worldTransformLocked(id)
	s.mu.Unlock()

	if !static && s.emitter != nil {
		s.emitter.EmitTransformUpdate(id, world.Matrix())
	}
	return nil
}

// WorldTransform returns id's transform composed through its full
// parent chain.
func (s *Scene) WorldTransform(id idhash.ID) (Transform, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return Transform{}, false
	}
	return s.worldTransformLocked(id), true
}

func (s *Scene) worldTransformLocked(id idhash.ID) Transform {
	n, ok := s.nodes[id]
	if !ok {
		return Identity
	}
	if id == idhash.RootID || n.ParentID == 0 {
		return n.Transform
	}
	parent := s.worldTransformLocked(n.ParentID)
	return Compose(parent, n.Transform)
}

// Nodes returns a snapshot of all nodes in insertion order.
func (s *Scene) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.nodes[id])
	}
	return out
}

// ClearDirty resets the dirty flag on id, returning whether it had been
// set.
func (s *Scene) ClearDirty(id idhash.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || !n.dirty {
		return false
	}
	n.dirty = false
	return true
}
