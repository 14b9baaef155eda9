// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package scene

import (
	"testing"

	"github.com/scenestream/scenestream/internal/idhash"
)

type fakeAdmitter struct{ admitted []idhash.ID }

func (f *fakeAdmitter) AdmitModel(id idhash.ID) { f.admitted = append(f.admitted, id) }

type fakeEmitter struct {
	emitted []idhash.ID
}

func (f *fakeEmitter) EmitTransformUpdate(id idhash.ID, _ [16]float32) {
	f.emitted = append(f.emitted, id)
}

func TestScene_RootExists(t *testing.T) {
	s := New(nil, nil)
	if _, ok := s.Get(idhash.RootID); !ok {
		t.Fatal("expected root node to exist")
	}
}

func TestScene_AddNodeModelTriggersAdmission(t *testing.T) {
	adm := &fakeAdmitter{}
	s := New(adm, nil)
	id := idhash.Of("my-model")
	if _, err := s.AddNode(id, NodeModel, Identity, idhash.RootID, 0); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if len(adm.admitted) != 1 || adm.admitted[0] != id {
		t.Errorf("expected model admission for %d, got %v", id, adm.admitted)
	}
}

func TestScene_SetTransformEmitsUnlessStatic(t *testing.T) {
	em := &fakeEmitter{}
	s := New(nil, em)
	dynamic := idhash.Of("dynamic-node")
	static := idhash.Of("static-node")
	s.AddNode(dynamic, NodeEmpty, Identity, idhash.RootID, 0)
	s.AddNode(static, NodeEmpty, Identity, idhash.RootID, FlagStatic)

	s.SetTransform(dynamic, Transform{Scale: Vec3{1, 1, 1}, Rotation: IdentityQuat, Position: Vec3{1, 0, 0}})
	s.SetTransform(static, Transform{Scale: Vec3{1, 1, 1}, Rotation: IdentityQuat, Position: Vec3{2, 0, 0}})

	if len(em.emitted) != 1 || em.emitted[0] != dynamic {
		t.Errorf("expected exactly one emission for the dynamic node, got %v", em.emitted)
	}
}

func TestScene_ComposeChildIntoParent(t *testing.T) {
	s := New(nil, nil)
	parent := idhash.Of("parent")
	child := idhash.Of("child")
	s.AddNode(parent, NodeEmpty, Transform{Position: Vec3{10, 0, 0}, Scale: Vec3{1, 1, 1}, Rotation: IdentityQuat}, idhash.RootID, 0)
	s.AddNode(child, NodeEmpty, Transform{Position: Vec3{1, 0, 0}, Scale: Vec3{1, 1, 1}, Rotation: IdentityQuat}, parent, 0)

	world, ok := s.WorldTransform(child)
	if !ok {
		t.Fatal("expected child world transform")
	}
	if world.Position.X != 11 {
		t.Errorf("expected composed X=11, got %v", world.Position.X)
	}
}
