// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"
)

func TestCompression_NoneIsIdentity(t *testing.T) {
	data := []byte("raw bytes, unchanged")
	out, err := CompressBulk(CompressionNone, data)
	if err != nil {
		t.Fatalf("CompressBulk: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("expected identity for CompressionNone")
	}
}

func TestCompression_ZstdRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("scene stream payload "), 100)
	compressed, err := CompressBulk(CompressionZstd, data)
	if err != nil {
		t.Fatalf("CompressBulk: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("expected compressed output smaller than input")
	}
	decompressed, err := DecompressBulk(CompressionZstd, compressed)
	if err != nil {
		t.Fatalf("DecompressBulk: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Errorf("round trip mismatch")
	}
}
