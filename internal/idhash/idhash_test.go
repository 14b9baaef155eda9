// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package idhash

import "testing"

func TestOfIsStableAndDeterministic(t *testing.T) {
	a := Of("model.obj")
	b := Of("model.obj")
	if a != b {
		t.Fatalf("Of is not deterministic: %v != %v", a, b)
	}
}

func TestOfDistinguishesNames(t *testing.T) {
	a := Of("texture_a.png")
	b := Of("texture_b.png")
	if a == b {
		t.Fatalf("distinct names hashed to the same id: %v", a)
	}
}

func TestOfKnownFNV1aVector(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the well-known offset basis.
	if got := Of(""); uint32(got) != 0x811c9dc5 {
		t.Fatalf("Of(\"\") = 0x%x, want 0x811c9dc5", uint32(got))
	}
}

func TestRootIDMatchesDunderRoot(t *testing.T) {
	if RootID != Of("__root") {
		t.Fatalf("RootID = %v, want Of(\"__root\") = %v", RootID, Of("__root"))
	}
}
