// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package wire implements bit-exact encoding and decoding of every frame,
// header, and chunk exchanged between the server and the client. Every
// type here is a plain value: Encode writes into a caller-owned buffer and
// returns the number of bytes written, Decode reads from a caller-owned
// slice and returns the remaining unread tail. Nothing aliases the byte
// slice as a typed pointer; everything is copied field by field, little
// endian, with no padding.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned by a Decode function when the supplied slice is
// shorter than the structure it is asked to decode.
var ErrTruncated = errors.New("wire: truncated buffer")

// ErrInvalidMessageType is returned when a reliable-channel type byte is
// zero or above the highest known message type.
var ErrInvalidMessageType = errors.New("wire: invalid reliable message type")

// ErrInvalidChunkType is returned when a datagram chunk's type byte does
// not match any known chunk.
var ErrInvalidChunkType = errors.New("wire: invalid chunk type")

// MessageType identifies a reliable-channel message. It is carried as a
// single leading byte on every message sent over the framed reliable
// channel.
type MessageType uint8

const (
	MsgHELO               MessageType = 0x01
	MsgHELOAck            MessageType = 0x02
	MsgReady              MessageType = 0x03
	MsgKeepalive          MessageType = 0x04
	MsgDisconnect         MessageType = 0x05
	MsgStartRsrcExchange  MessageType = 0x06
	MsgRsrcExchangeAck    MessageType = 0x07
	MsgRsrcTexture        MessageType = 0x08
	MsgRsrcMaterial       MessageType = 0x09
	MsgRsrcModel          MessageType = 0x0A
	MsgRsrcPointLight     MessageType = 0x0B
	MsgRsrcShader         MessageType = 0x0C
	MsgEndRsrcExchange    MessageType = 0x1F
	MsgStartStreaming     MessageType = 0x20
	MsgEndStreaming       MessageType = 0x21
	MsgReqModel           MessageType = 0x22
	maxKnownMessageType               = MsgReqModel
)

// Valid reports whether t is a known, non-zero message type.
func (t MessageType) Valid() bool {
	return t != 0 && t <= maxKnownMessageType
}

func (t MessageType) String() string {
	switch t {
	case MsgHELO:
		return "HELO"
	case MsgHELOAck:
		return "HELO_ACK"
	case MsgReady:
		return "READY"
	case MsgKeepalive:
		return "KEEPALIVE"
	case MsgDisconnect:
		return "DISCONNECT"
	case MsgStartRsrcExchange:
		return "START_RSRC_EXCHANGE"
	case MsgRsrcExchangeAck:
		return "RSRC_EXCHANGE_ACK"
	case MsgRsrcTexture:
		return "RSRC_TEXTURE"
	case MsgRsrcMaterial:
		return "RSRC_MATERIAL"
	case MsgRsrcModel:
		return "RSRC_MODEL"
	case MsgRsrcPointLight:
		return "RSRC_POINT_LIGHT"
	case MsgRsrcShader:
		return "RSRC_SHADER"
	case MsgEndRsrcExchange:
		return "END_RSRC_EXCHANGE"
	case MsgStartStreaming:
		return "START_STREAMING"
	case MsgEndStreaming:
		return "END_STREAMING"
	case MsgReqModel:
		return "REQ_MODEL"
	default:
		return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
	}
}

// ChunkType identifies a datagram chunk.
type ChunkType uint8

const (
	ChunkGeomUpdate       ChunkType = 0
	ChunkPointLightUpdate ChunkType = 1
	ChunkTransformUpdate  ChunkType = 2
)

func (c ChunkType) Valid() bool {
	return c <= ChunkTransformUpdate
}

// GeomKind distinguishes the vertex and index staging regions a
// GEOM_UPDATE chunk targets.
type GeomKind uint8

const (
	GeomKindVertex GeomKind = 0
	GeomKindIndex  GeomKind = 1
)

// Sizes of the fixed wire types, in bytes.
const (
	SizeUdpHeader           = 8 + 4      // packet-gen:u64, size:u32
	SizeChunkTypeByte       = 1
	SizeGeomUpdateHeader    = 4 + 1 + 4 + 4 // model-id, kind, start, length
	SizePointLightUpdateHdr = 4 + 3*4 + 4   // light-id, color[3], intensity
	SizeTransformUpdateHdr  = 4 + 16*4      // node-id, matrix[16]
	SizeVertex              = 3*4 + 3*4 + 2*4
	SizeIndex                = 4
)

// UdpHeader is the fixed leading structure of every server→client
// datagram.
type UdpHeader struct {
	PacketGen uint64
	Size      uint32
}

// Encode writes h into buf (which must have len(buf) >= SizeUdpHeader) and
// returns the number of bytes written.
func (h UdpHeader) Encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], h.PacketGen)
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)
	return SizeUdpHeader
}

// DecodeUdpHeader reads a UdpHeader from the front of buf and returns the
// remaining tail.
func DecodeUdpHeader(buf []byte) (UdpHeader, []byte, error) {
	if len(buf) < SizeUdpHeader {
		return UdpHeader{}, nil, ErrTruncated
	}
	h := UdpHeader{
		PacketGen: binary.LittleEndian.Uint64(buf[0:8]),
		Size:      binary.LittleEndian.Uint32(buf[8:12]),
	}
	return h, buf[SizeUdpHeader:], nil
}

// GeomUpdateHeader is the header of a GEOM_UPDATE chunk.
type GeomUpdateHeader struct {
	ModelID ModelID
	Kind    GeomKind
	Start   uint32
	Length  uint32
}

// ModelID, NodeID, LightID alias idhash.ID for call-site clarity; defined
// here (rather than imported) to keep wire free of a dependency on scene
// semantics.
type ModelID uint32
type NodeID uint32
type LightID uint32

func (h GeomUpdateHeader) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.ModelID))
	buf[4] = byte(h.Kind)
	binary.LittleEndian.PutUint32(buf[5:9], h.Start)
	binary.LittleEndian.PutUint32(buf[9:13], h.Length)
	return SizeGeomUpdateHeader
}

func DecodeGeomUpdateHeader(buf []byte) (GeomUpdateHeader, []byte, error) {
	if len(buf) < SizeGeomUpdateHeader {
		return GeomUpdateHeader{}, nil, ErrTruncated
	}
	h := GeomUpdateHeader{
		ModelID: ModelID(binary.LittleEndian.Uint32(buf[0:4])),
		Kind:    GeomKind(buf[4]),
		Start:   binary.LittleEndian.Uint32(buf[5:9]),
		Length:  binary.LittleEndian.Uint32(buf[9:13]),
	}
	return h, buf[SizeGeomUpdateHeader:], nil
}

// ElementSize returns sizeof(Vertex) or sizeof(Index) for k.
func (k GeomKind) ElementSize() int {
	if k == GeomKindIndex {
		return SizeIndex
	}
	return SizeVertex
}

// PointLightUpdateHeader is the (header-only, no trailing payload) body of
// a POINT_LIGHT_UPDATE chunk.
type PointLightUpdateHeader struct {
	LightID   LightID
	Color     [3]float32
	Intensity float32
}

func (h PointLightUpdateHeader) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.LightID))
	off := 4
	for _, c := range h.Color {
		binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(c))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(h.Intensity))
	return SizePointLightUpdateHdr
}

func DecodePointLightUpdateHeader(buf []byte) (PointLightUpdateHeader, []byte, error) {
	if len(buf) < SizePointLightUpdateHdr {
		return PointLightUpdateHeader{}, nil, ErrTruncated
	}
	h := PointLightUpdateHeader{LightID: LightID(binary.LittleEndian.Uint32(buf[0:4]))}
	off := 4
	for i := range h.Color {
		h.Color[i] = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	h.Intensity = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	return h, buf[SizePointLightUpdateHdr:], nil
}

// TransformUpdateHeader is the (header-only) body of a TRANSFORM_UPDATE
// chunk: a node id and its composed 4x4 column-major matrix.
type TransformUpdateHeader struct {
	NodeID NodeID
	Matrix [16]float32
}

func (h TransformUpdateHeader) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.NodeID))
	off := 4
	for _, v := range h.Matrix {
		binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(v))
		off += 4
	}
	return SizeTransformUpdateHdr
}

func DecodeTransformUpdateHeader(buf []byte) (TransformUpdateHeader, []byte, error) {
	if len(buf) < SizeTransformUpdateHdr {
		return TransformUpdateHeader{}, nil, ErrTruncated
	}
	h := TransformUpdateHeader{NodeID: NodeID(binary.LittleEndian.Uint32(buf[0:4]))}
	off := 4
	for i := range h.Matrix {
		h.Matrix[i] = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return h, buf[SizeTransformUpdateHdr:], nil
}

// AckPacket is the client→server acknowledgement datagram: a flat list of
// persistent-update serial ids the client has applied.
type AckPacket struct {
	AckIDs []uint32
}

const ackPacketType = 0xFE

// EncodedLen returns the number of bytes Encode will write.
func (a AckPacket) EncodedLen() int {
	return 1 + 2 + 4*len(a.AckIDs)
}

func (a AckPacket) Encode(buf []byte) (int, error) {
	n := a.EncodedLen()
	if n > len(buf) {
		return 0, ErrTruncated
	}
	if len(a.AckIDs) > 0xFFFF {
		return 0, fmt.Errorf("wire: ack packet holds %d ids, max 65535", len(a.AckIDs))
	}
	buf[0] = ackPacketType
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(a.AckIDs)))
	off := 3
	for _, id := range a.AckIDs {
		binary.LittleEndian.PutUint32(buf[off:off+4], id)
		off += 4
	}
	return n, nil
}

func DecodeAckPacket(buf []byte) (AckPacket, error) {
	if len(buf) < 3 {
		return AckPacket{}, ErrTruncated
	}
	if buf[0] != ackPacketType {
		return AckPacket{}, fmt.Errorf("wire: not an ack packet (type 0x%02x)", buf[0])
	}
	n := binary.LittleEndian.Uint16(buf[1:3])
	buf = buf[3:]
	if len(buf) < int(n)*4 {
		return AckPacket{}, ErrTruncated
	}
	ids := make([]uint32, n)
	off := 0
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return AckPacket{AckIDs: ids}, nil
}

// KeepaliveDiagnostics is KEEPALIVE's trailing payload: a snapshot of
// the sender's host load, which the receiver may ignore. Always
// present and fixed-size so both ends stay
// byte-aligned on the reliable stream regardless of whether either side
// runs a real monitor.Observer.
type KeepaliveDiagnostics struct {
	ServerLoad float32
	DiskFreeMB uint32
}

const SizeKeepaliveDiagnostics = 4 + 4

func (d KeepaliveDiagnostics) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], f32bits(d.ServerLoad))
	binary.LittleEndian.PutUint32(buf[4:8], d.DiskFreeMB)
	return SizeKeepaliveDiagnostics
}

func DecodeKeepaliveDiagnostics(buf []byte) (KeepaliveDiagnostics, error) {
	if len(buf) < SizeKeepaliveDiagnostics {
		return KeepaliveDiagnostics{}, ErrTruncated
	}
	return KeepaliveDiagnostics{
		ServerLoad: f32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		DiskFreeMB: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func f32frombits(u uint32) float32 {
	return math.Float32frombits(u)
}
