// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import "testing"

func TestUdpHeader_RoundTrip(t *testing.T) {
	h := UdpHeader{PacketGen: 42, Size: 110}
	buf := make([]byte, SizeUdpHeader)
	if n := h.Encode(buf); n != SizeUdpHeader {
		t.Fatalf("Encode wrote %d bytes, want %d", n, SizeUdpHeader)
	}

	got, rest, err := DecodeUdpHeader(buf)
	if err != nil {
		t.Fatalf("DecodeUdpHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
	if len(rest) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(rest))
	}
}

func TestDecodeUdpHeader_Truncated(t *testing.T) {
	if _, _, err := DecodeUdpHeader(make([]byte, SizeUdpHeader-1)); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestGeomUpdateHeader_RoundTrip(t *testing.T) {
	h := GeomUpdateHeader{ModelID: 7, Kind: GeomKindVertex, Start: 0, Length: 3}
	buf := make([]byte, SizeGeomUpdateHeader)
	h.Encode(buf)

	got, _, err := DecodeGeomUpdateHeader(buf)
	if err != nil {
		t.Fatalf("DecodeGeomUpdateHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestPointLightUpdateHeader_RoundTrip(t *testing.T) {
	h := PointLightUpdateHeader{LightID: 9, Color: [3]float32{1, 0.5, 0.25}, Intensity: 2.5}
	buf := make([]byte, SizePointLightUpdateHdr)
	h.Encode(buf)

	got, _, err := DecodePointLightUpdateHeader(buf)
	if err != nil {
		t.Fatalf("DecodePointLightUpdateHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestTransformUpdateHeader_RoundTrip(t *testing.T) {
	var m [16]float32
	for i := range m {
		m[i] = float32(i) * 1.5
	}
	h := TransformUpdateHeader{NodeID: 3, Matrix: m}
	buf := make([]byte, SizeTransformUpdateHdr)
	h.Encode(buf)

	got, _, err := DecodeTransformUpdateHeader(buf)
	if err != nil {
		t.Fatalf("DecodeTransformUpdateHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestAckPacket_RoundTrip(t *testing.T) {
	a := AckPacket{AckIDs: []uint32{1, 2, 3, 0xFFFFFFFF}}
	buf := make([]byte, a.EncodedLen())
	n, err := a.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Encode wrote %d bytes, want %d", n, len(buf))
	}

	got, err := DecodeAckPacket(buf)
	if err != nil {
		t.Fatalf("DecodeAckPacket: %v", err)
	}
	if len(got.AckIDs) != len(a.AckIDs) {
		t.Fatalf("got %d ids, want %d", len(got.AckIDs), len(a.AckIDs))
	}
	for i := range a.AckIDs {
		if got.AckIDs[i] != a.AckIDs[i] {
			t.Errorf("id[%d] = %d, want %d", i, got.AckIDs[i], a.AckIDs[i])
		}
	}
}

func TestVertex_RoundTrip(t *testing.T) {
	v := Vertex{Pos: [3]float32{1, 2, 3}, Normal: [3]float32{0, 1, 0}, UV: [2]float32{0.5, 0.25}}
	buf := make([]byte, SizeVertex)
	v.Encode(buf)

	got, _, err := DecodeVertex(buf)
	if err != nil {
		t.Fatalf("DecodeVertex: %v", err)
	}
	if got != v {
		t.Errorf("got %+v, want %+v", got, v)
	}
}

func TestMessageType_Valid(t *testing.T) {
	if MessageType(0).Valid() {
		t.Error("type 0 must be invalid")
	}
	if MessageType(0xFF).Valid() {
		t.Error("type 0xFF must be invalid")
	}
	if !MsgHELO.Valid() {
		t.Error("MsgHELO must be valid")
	}
	if !MsgReqModel.Valid() {
		t.Error("MsgReqModel must be valid")
	}
}

func TestTextureInfo_RoundTrip(t *testing.T) {
	info := TextureInfo{ID: 0x1234, Format: FormatRGBA, Size: 16}
	buf := make([]byte, SizeTextureInfo)
	info.Encode(buf)

	got, _, err := DecodeTextureInfo(buf)
	if err != nil {
		t.Fatalf("DecodeTextureInfo: %v", err)
	}
	if got != info {
		t.Errorf("got %+v, want %+v", got, info)
	}
}
