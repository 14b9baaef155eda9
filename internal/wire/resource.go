// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import "encoding/binary"

// TextureFormat enumerates the pixel layouts a Texture resource may carry.
type TextureFormat uint8

const (
	FormatRGBA TextureFormat = 0
	FormatGrey TextureFormat = 1
)

// ShaderStage enumerates the pipeline stage a Shader resource targets.
type ShaderStage uint8

const (
	ShaderVertex   ShaderStage = 0
	ShaderFragment ShaderStage = 1
	ShaderGeometry ShaderStage = 2
)

// TextureInfo is the info struct of ResourcePacket<Texture>. Pixel bytes
// of length Size follow as the packet's trailing bytes.
type TextureInfo struct {
	ID     uint32
	Format TextureFormat
	Size   uint32 // trailing byte count
}

const SizeTextureInfo = 4 + 1 + 4

func (t TextureInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], t.ID)
	buf[4] = byte(t.Format)
	binary.LittleEndian.PutUint32(buf[5:9], t.Size)
	return SizeTextureInfo
}

func DecodeTextureInfo(buf []byte) (TextureInfo, []byte, error) {
	if len(buf) < SizeTextureInfo {
		return TextureInfo{}, nil, ErrTruncated
	}
	t := TextureInfo{
		ID:     binary.LittleEndian.Uint32(buf[0:4]),
		Format: TextureFormat(buf[4]),
		Size:   binary.LittleEndian.Uint32(buf[5:9]),
	}
	return t, buf[SizeTextureInfo:], nil
}

// MaterialInfo is the info struct of ResourcePacket<Material>. Materials
// carry no bulk bytes; they only reference texture ids.
type MaterialInfo struct {
	ID         uint32
	DiffuseID  uint32
	SpecularID uint32
	NormalID   uint32
}

const SizeMaterialInfo = 4 * 4

func (m MaterialInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], m.ID)
	binary.LittleEndian.PutUint32(buf[4:8], m.DiffuseID)
	binary.LittleEndian.PutUint32(buf[8:12], m.SpecularID)
	binary.LittleEndian.PutUint32(buf[12:16], m.NormalID)
	return SizeMaterialInfo
}

func DecodeMaterialInfo(buf []byte) (MaterialInfo, []byte, error) {
	if len(buf) < SizeMaterialInfo {
		return MaterialInfo{}, nil, ErrTruncated
	}
	m := MaterialInfo{
		ID:         binary.LittleEndian.Uint32(buf[0:4]),
		DiffuseID:  binary.LittleEndian.Uint32(buf[4:8]),
		SpecularID: binary.LittleEndian.Uint32(buf[8:12]),
		NormalID:   binary.LittleEndian.Uint32(buf[12:16]),
	}
	return m, buf[SizeMaterialInfo:], nil
}

// ModelInfo is the info struct of ResourcePacket<Model>. The trailing
// Size bytes encode, in order: the material id list, then the mesh list
// (MeshInfo entries); vertex/index bytes are NOT part of resource
// exchange — they arrive later as GEOM_UPDATE chunks seeded on model
// admission.
type ModelInfo struct {
	ID            uint32
	VertexCount   uint32
	IndexCount    uint32
	MaterialCount uint32
	MeshCount     uint32
	Size          uint32 // trailing byte count (materials[] + meshes[])
}

const SizeModelInfo = 4 * 6

func (m ModelInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], m.ID)
	binary.LittleEndian.PutUint32(buf[4:8], m.VertexCount)
	binary.LittleEndian.PutUint32(buf[8:12], m.IndexCount)
	binary.LittleEndian.PutUint32(buf[12:16], m.MaterialCount)
	binary.LittleEndian.PutUint32(buf[16:20], m.MeshCount)
	binary.LittleEndian.PutUint32(buf[20:24], m.Size)
	return SizeModelInfo
}

func DecodeModelInfo(buf []byte) (ModelInfo, []byte, error) {
	if len(buf) < SizeModelInfo {
		return ModelInfo{}, nil, ErrTruncated
	}
	m := ModelInfo{
		ID:            binary.LittleEndian.Uint32(buf[0:4]),
		VertexCount:   binary.LittleEndian.Uint32(buf[4:8]),
		IndexCount:    binary.LittleEndian.Uint32(buf[8:12]),
		MaterialCount: binary.LittleEndian.Uint32(buf[12:16]),
		MeshCount:     binary.LittleEndian.Uint32(buf[16:20]),
		Size:          binary.LittleEndian.Uint32(buf[20:24]),
	}
	return m, buf[SizeModelInfo:], nil
}

// MeshInfo describes one mesh entry trailing a ModelInfo packet: a slice
// into the parent model's index array plus an index into its material
// list.
type MeshInfo struct {
	IndexOffset   uint32
	IndexLength   uint32
	MaterialIndex uint32
}

const SizeMeshInfo = 4 * 3

func (m MeshInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], m.IndexOffset)
	binary.LittleEndian.PutUint32(buf[4:8], m.IndexLength)
	binary.LittleEndian.PutUint32(buf[8:12], m.MaterialIndex)
	return SizeMeshInfo
}

func DecodeMeshInfo(buf []byte) (MeshInfo, []byte, error) {
	if len(buf) < SizeMeshInfo {
		return MeshInfo{}, nil, ErrTruncated
	}
	m := MeshInfo{
		IndexOffset:   binary.LittleEndian.Uint32(buf[0:4]),
		IndexLength:   binary.LittleEndian.Uint32(buf[4:8]),
		MaterialIndex: binary.LittleEndian.Uint32(buf[8:12]),
	}
	return m, buf[SizeMeshInfo:], nil
}

// ShaderInfo is the info struct of ResourcePacket<Shader>. Code bytes of
// length Size follow as the packet's trailing bytes.
type ShaderInfo struct {
	ID         uint32
	Stage      ShaderStage
	PassNumber uint32
	Size       uint32 // trailing byte count
}

const SizeShaderInfo = 4 + 1 + 4 + 4

func (s ShaderInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], s.ID)
	buf[4] = byte(s.Stage)
	binary.LittleEndian.PutUint32(buf[5:9], s.PassNumber)
	binary.LittleEndian.PutUint32(buf[9:13], s.Size)
	return SizeShaderInfo
}

func DecodeShaderInfo(buf []byte) (ShaderInfo, []byte, error) {
	if len(buf) < SizeShaderInfo {
		return ShaderInfo{}, nil, ErrTruncated
	}
	s := ShaderInfo{
		ID:         binary.LittleEndian.Uint32(buf[0:4]),
		Stage:      ShaderStage(buf[4]),
		PassNumber: binary.LittleEndian.Uint32(buf[5:9]),
		Size:       binary.LittleEndian.Uint32(buf[9:13]),
	}
	return s, buf[SizeShaderInfo:], nil
}

// PointLightInfo is the info struct of ResourcePacket<PointLight>. Point
// lights carry no trailing bulk bytes.
type PointLightInfo struct {
	ID        uint32
	Position  [3]float32
	Color     [3]float32
	Intensity float32
	DynMask   uint8
}

const SizePointLightInfo = 4 + 3*4 + 3*4 + 4 + 1

func (p PointLightInfo) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], p.ID)
	off := 4
	for _, v := range p.Position {
		binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(v))
		off += 4
	}
	for _, v := range p.Color {
		binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(v))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(p.Intensity))
	off += 4
	buf[off] = p.DynMask
	return SizePointLightInfo
}

func DecodePointLightInfo(buf []byte) (PointLightInfo, []byte, error) {
	if len(buf) < SizePointLightInfo {
		return PointLightInfo{}, nil, ErrTruncated
	}
	p := PointLightInfo{ID: binary.LittleEndian.Uint32(buf[0:4])}
	off := 4
	for i := range p.Position {
		p.Position[i] = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	for i := range p.Color {
		p.Color[i] = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	p.Intensity = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	p.DynMask = buf[off]
	return p, buf[SizePointLightInfo:], nil
}

// Vertex is the fixed-layout vertex format streamed inside GEOM_UPDATE
// chunks of kind vertex.
type Vertex struct {
	Pos    [3]float32
	Normal [3]float32
	UV     [2]float32
}

func (v Vertex) Encode(buf []byte) int {
	off := 0
	for _, f := range [...]float32{v.Pos[0], v.Pos[1], v.Pos[2], v.Normal[0], v.Normal[1], v.Normal[2], v.UV[0], v.UV[1]} {
		binary.LittleEndian.PutUint32(buf[off:off+4], f32bits(f))
		off += 4
	}
	return SizeVertex
}

func DecodeVertex(buf []byte) (Vertex, []byte, error) {
	if len(buf) < SizeVertex {
		return Vertex{}, nil, ErrTruncated
	}
	var fs [8]float32
	off := 0
	for i := range fs {
		fs[i] = f32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	v := Vertex{
		Pos:    [3]float32{fs[0], fs[1], fs[2]},
		Normal: [3]float32{fs[3], fs[4], fs[5]},
		UV:     [2]float32{fs[6], fs[7]},
	}
	return v, buf[SizeVertex:], nil
}

// Index is a single triangle-list index, stored as u32.
type Index uint32

func (i Index) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(i))
	return SizeIndex
}

func DecodeIndex(buf []byte) (Index, []byte, error) {
	if len(buf) < SizeIndex {
		return 0, nil, ErrTruncated
	}
	return Index(binary.LittleEndian.Uint32(buf[0:4])), buf[SizeIndex:], nil
}
