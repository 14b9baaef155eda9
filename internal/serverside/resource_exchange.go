// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serverside

import (
	"encoding/binary"
	"fmt"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/scene"
	"github.com/scenestream/scenestream/internal/wire"
)

// runResourceExchange drives the dependency-ordered sender side of
// resource exchange: textures, then materials, then models, then point
// lights, then shaders, each message self-describing its own trailing
// byte count so the receiver can always drain exactly what was sent
// before reading the next type byte. modelIDs
// restricts the exchange to the given models (used for re-entrant
// exchange on model admission during Streaming); a nil slice means every
// model-type scene node whose model is in the store (initial exchange).
func (e *Endpoint) runResourceExchange(modelIDs []idhash.ID) error {
	if err := e.reliable.SendMessage(wire.MsgStartRsrcExchange, nil); err != nil {
		return fmt.Errorf("serverside: sending START_RSRC_EXCHANGE: %w", err)
	}

	models := modelIDs
	if models == nil {
		models = e.allModelIDs()
	}

	sentTextures := make(map[idhash.ID]bool)
	sentMaterials := make(map[idhash.ID]bool)

	for _, modelID := range models {
		model, ok := e.Store.Model(modelID)
		if !ok {
			continue
		}
		for _, matID := range model.Materials {
			if sentMaterials[matID] {
				continue
			}
			mat, ok := e.Store.Material(matID)
			if !ok {
				continue
			}
			for _, texID := range []idhash.ID{mat.DiffuseID, mat.SpecularID, mat.NormalID} {
				if sentTextures[texID] {
					continue
				}
				if err := e.sendTexture(texID); err != nil {
					return err
				}
				sentTextures[texID] = true
			}
			if err := e.sendMaterial(mat); err != nil {
				return err
			}
			sentMaterials[matID] = true
		}
		if err := e.sendModel(model); err != nil {
			return err
		}
	}

	for _, light := range e.Store.PointLights() {
		if err := e.sendPointLight(light); err != nil {
			return err
		}
	}

	// Shaders carry no per-model linkage in this schema; send whatever
	// the store holds alongside this batch of models.
	for _, shaderID := range e.Store.ShaderIDs() {
		if err := e.sendShader(shaderID); err != nil {
			return err
		}
	}

	if err := e.reliable.SendMessage(wire.MsgEndRsrcExchange, nil); err != nil {
		return fmt.Errorf("serverside: sending END_RSRC_EXCHANGE: %w", err)
	}
	t, err := e.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("serverside: waiting for RSRC_EXCHANGE_ACK: %w", err)
	}
	if t != wire.MsgRsrcExchangeAck {
		return fmt.Errorf("serverside: expected RSRC_EXCHANGE_ACK, got %s", t)
	}
	e.logger.Info("resource exchange complete", "models", len(models))
	return nil
}

func (e *Endpoint) allModelIDs() []idhash.ID {
	var ids []idhash.ID
	for _, node := range e.Scene.Nodes() {
		if node.Type == scene.NodeModel && e.Store.HasModel(node.ID) {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

func (e *Endpoint) sendTexture(id idhash.ID) error {
	tex, data, ok := e.Store.Texture(id)
	if !ok {
		return nil
	}
	payload, err := wire.CompressBulk(e.compression, data)
	if err != nil {
		return fmt.Errorf("serverside: compressing texture %d: %w", id, err)
	}
	info := wire.TextureInfo{ID: uint32(id), Format: tex.Format, Size: uint32(len(payload))}
	buf := make([]byte, wire.SizeTextureInfo+len(payload))
	info.Encode(buf)
	copy(buf[wire.SizeTextureInfo:], payload)
	return e.reliable.SendMessage(wire.MsgRsrcTexture, buf)
}

func (e *Endpoint) sendMaterial(mat resource.Material) error {
	info := wire.MaterialInfo{
		ID:         uint32(mat.ID),
		DiffuseID:  uint32(mat.DiffuseID),
		SpecularID: uint32(mat.SpecularID),
		NormalID:   uint32(mat.NormalID),
	}
	buf := make([]byte, wire.SizeMaterialInfo)
	info.Encode(buf)
	return e.reliable.SendMessage(wire.MsgRsrcMaterial, buf)
}

func (e *Endpoint) sendModel(m resource.Model) error {
	bodyLen := 4*len(m.Materials) + wire.SizeMeshInfo*len(m.Meshes)
	info := wire.ModelInfo{
		ID:            uint32(m.ID),
		VertexCount:   m.VertexCount,
		IndexCount:    m.IndexCount,
		MaterialCount: uint32(len(m.Materials)),
		MeshCount:     uint32(len(m.Meshes)),
		Size:          uint32(bodyLen),
	}
	buf := make([]byte, wire.SizeModelInfo+bodyLen)
	info.Encode(buf)
	off := wire.SizeModelInfo
	for _, id := range m.Materials {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(id))
		off += 4
	}
	for _, mesh := range m.Meshes {
		meshInfo := wire.MeshInfo{IndexOffset: mesh.IndexOffset, IndexLength: mesh.IndexLength, MaterialIndex: mesh.MaterialIndex}
		off += meshInfo.Encode(buf[off:])
	}
	return e.reliable.SendMessage(wire.MsgRsrcModel, buf)
}

func (e *Endpoint) sendPointLight(l resource.PointLight) error {
	info := wire.PointLightInfo{ID: uint32(l.ID), Position: l.Position, Color: l.Color, Intensity: l.Intensity, DynMask: l.DynMask}
	buf := make([]byte, wire.SizePointLightInfo)
	info.Encode(buf)
	return e.reliable.SendMessage(wire.MsgRsrcPointLight, buf)
}

func (e *Endpoint) sendShader(id idhash.ID) error {
	shader, code, ok := e.Store.Shader(id)
	if !ok {
		return nil
	}
	payload, err := wire.CompressBulk(e.compression, code)
	if err != nil {
		return fmt.Errorf("serverside: compressing shader %d: %w", id, err)
	}
	info := wire.ShaderInfo{ID: uint32(id), Stage: shader.Stage, PassNumber: shader.PassNumber, Size: uint32(len(payload))}
	buf := make([]byte, wire.SizeShaderInfo+len(payload))
	info.Encode(buf)
	copy(buf[wire.SizeShaderInfo:], payload)
	return e.reliable.SendMessage(wire.MsgRsrcShader, buf)
}
