// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resource

import (
	"testing"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

func TestStore_TextureDeduplication(t *testing.T) {
	s := New(nil)
	id := idhash.Of("t.png")
	s.InsertTexture(id, wire.FormatRGBA, []byte{1, 2, 3, 4})
	s.InsertTexture(id, wire.FormatRGBA, []byte{9, 9, 9, 9}) // duplicate, no-op

	_, data, ok := s.Texture(id)
	if !ok {
		t.Fatal("expected texture to exist")
	}
	if string(data) != "\x01\x02\x03\x04" {
		t.Errorf("duplicate insert must not overwrite original bytes, got %v", data)
	}
}

func TestStore_SentinelFallback(t *testing.T) {
	s := New(nil)
	missing := idhash.Of("does-not-exist")
	data := s.TextureOrDefault(missing, s.SentinelDiffuse())
	if len(data) != 4 || data[0] != 0xFF {
		t.Errorf("expected white sentinel diffuse bytes, got %v", data)
	}
}

func TestStore_ModelMeshBoundsCheck(t *testing.T) {
	s := New(nil)
	err := s.InsertModel(Model{
		ID:          idhash.Of("m"),
		VertexCount: 10,
		IndexCount:  6,
		Meshes:      []Mesh{{IndexOffset: 4, IndexLength: 4, MaterialIndex: 0}}, // 4+4 > 6
	})
	if err == nil {
		t.Fatal("expected out-of-range mesh to be rejected")
	}
}

func TestStore_ArenaLIFOPop(t *testing.T) {
	a := NewArena(0)
	s1 := a.Alloc([]byte("first"))
	s2 := a.Alloc([]byte("second"))

	if err := a.Pop(s1); err == nil {
		t.Fatal("expected popping out of LIFO order to fail")
	}
	if err := a.Pop(s2); err != nil {
		t.Fatalf("Pop in LIFO order: %v", err)
	}
	if err := a.Pop(s1); err != nil {
		t.Fatalf("Pop last remaining slice: %v", err)
	}
}
