// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"encoding/binary"
	"fmt"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/wire"
)

// runResourceExchange drives the dependency-ordered receiver side of
// resource exchange: wait for START_RSRC_EXCHANGE, then loop decoding
// RSRC_TEXTURE/RSRC_MATERIAL/RSRC_MODEL/RSRC_POINT_LIGHT/RSRC_SHADER
// packets and inserting each into the store, until END_RSRC_EXCHANGE.
//
// The exchange is deliberately not acknowledged per-packet: the server
// only performs one RecvType call after sending END_RSRC_EXCHANGE
// (internal/serverside's
// runResourceExchange), so an early ack byte would sit unread on the
// TCP stream and get misread as the reply to a later message, corrupting
// the subsequent READY handshake. The client therefore sends exactly
// one RSRC_EXCHANGE_ACK, after END_RSRC_EXCHANGE, matching the server's
// actual expectation.
func (c *Client) runResourceExchange() error {
	t, err := c.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("clientside: waiting for START_RSRC_EXCHANGE: %w", err)
	}
	if t != wire.MsgStartRsrcExchange {
		return fmt.Errorf("clientside: expected START_RSRC_EXCHANGE, got %s", t)
	}
	return c.runResourceExchangeBody()
}

// runResourceExchangeBody is the per-resource receive loop shared by the
// initial exchange and a Streaming -> ResourceExchange re-entry; the
// caller has already consumed the START_RSRC_EXCHANGE type byte.
func (c *Client) runResourceExchangeBody() error {
	for {
		t, err := c.reliable.RecvType()
		if err != nil {
			return fmt.Errorf("clientside: reading resource message: %w", err)
		}
		switch t {
		case wire.MsgRsrcTexture:
			if err := c.recvTexture(); err != nil {
				return err
			}
		case wire.MsgRsrcMaterial:
			if err := c.recvMaterial(); err != nil {
				return err
			}
		case wire.MsgRsrcModel:
			if err := c.recvModel(); err != nil {
				return err
			}
		case wire.MsgRsrcPointLight:
			if err := c.recvPointLight(); err != nil {
				return err
			}
		case wire.MsgRsrcShader:
			if err := c.recvShader(); err != nil {
				return err
			}
		case wire.MsgEndRsrcExchange:
			if err := c.reliable.SendMessage(wire.MsgRsrcExchangeAck, nil); err != nil {
				return fmt.Errorf("clientside: sending RSRC_EXCHANGE_ACK: %w", err)
			}
			c.logger.Info("resource exchange complete")
			return nil
		default:
			return fmt.Errorf("clientside: unexpected message %s during resource exchange", t)
		}
	}
}

func (c *Client) recvTexture() error {
	hdr, err := c.reliable.ReadTrailing(wire.SizeTextureInfo)
	if err != nil {
		return fmt.Errorf("clientside: reading texture info: %w", err)
	}
	info, _, err := wire.DecodeTextureInfo(hdr)
	if err != nil {
		return fmt.Errorf("clientside: decoding texture info: %w", err)
	}
	payload, err := c.reliable.ReadTrailing(int(info.Size))
	if err != nil {
		return fmt.Errorf("clientside: reading texture bytes: %w", err)
	}
	data, err := wire.DecompressBulk(c.compression, payload)
	if err != nil {
		return fmt.Errorf("clientside: decompressing texture %d: %w", info.ID, err)
	}
	c.Store.InsertTexture(idhash.ID(info.ID), info.Format, data)
	return nil
}

func (c *Client) recvMaterial() error {
	buf, err := c.reliable.ReadTrailing(wire.SizeMaterialInfo)
	if err != nil {
		return fmt.Errorf("clientside: reading material info: %w", err)
	}
	info, _, err := wire.DecodeMaterialInfo(buf)
	if err != nil {
		return fmt.Errorf("clientside: decoding material info: %w", err)
	}
	c.Store.InsertMaterial(resource.Material{
		ID:         idhash.ID(info.ID),
		DiffuseID:  idhash.ID(info.DiffuseID),
		SpecularID: idhash.ID(info.SpecularID),
		NormalID:   idhash.ID(info.NormalID),
	})
	return nil
}

func (c *Client) recvModel() error {
	hdr, err := c.reliable.ReadTrailing(wire.SizeModelInfo)
	if err != nil {
		return fmt.Errorf("clientside: reading model info: %w", err)
	}
	info, _, err := wire.DecodeModelInfo(hdr)
	if err != nil {
		return fmt.Errorf("clientside: decoding model info: %w", err)
	}
	body, err := c.reliable.ReadTrailing(int(info.Size))
	if err != nil {
		return fmt.Errorf("clientside: reading model body: %w", err)
	}

	materials := make([]idhash.ID, info.MaterialCount)
	off := 0
	for i := range materials {
		materials[i] = idhash.ID(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
	}
	meshes := make([]resource.Mesh, info.MeshCount)
	for i := range meshes {
		var mi wire.MeshInfo
		mi, _, err = wire.DecodeMeshInfo(body[off:])
		if err != nil {
			return fmt.Errorf("clientside: decoding mesh %d of model %d: %w", i, info.ID, err)
		}
		meshes[i] = resource.Mesh{IndexOffset: mi.IndexOffset, IndexLength: mi.IndexLength, MaterialIndex: mi.MaterialIndex}
		off += wire.SizeMeshInfo
	}

	modelID := idhash.ID(info.ID)
	if err := c.Store.InsertModel(resource.Model{
		ID:          modelID,
		VertexCount: info.VertexCount,
		IndexCount:  info.IndexCount,
		Materials:   materials,
		Meshes:      meshes,
	}); err != nil {
		return fmt.Errorf("clientside: inserting model %d: %w", info.ID, err)
	}
	if _, err := c.Geometry.Reserve(modelID, info.VertexCount, info.IndexCount); err != nil {
		return fmt.Errorf("clientside: reserving staging for model %d: %w", info.ID, err)
	}
	return nil
}

func (c *Client) recvPointLight() error {
	buf, err := c.reliable.ReadTrailing(wire.SizePointLightInfo)
	if err != nil {
		return fmt.Errorf("clientside: reading point light info: %w", err)
	}
	info, _, err := wire.DecodePointLightInfo(buf)
	if err != nil {
		return fmt.Errorf("clientside: decoding point light info: %w", err)
	}
	c.Store.InsertPointLight(resource.PointLight{
		ID:        idhash.ID(info.ID),
		Position:  info.Position,
		Color:     info.Color,
		Intensity: info.Intensity,
		DynMask:   info.DynMask,
	})
	return nil
}

func (c *Client) recvShader() error {
	hdr, err := c.reliable.ReadTrailing(wire.SizeShaderInfo)
	if err != nil {
		return fmt.Errorf("clientside: reading shader info: %w", err)
	}
	info, _, err := wire.DecodeShaderInfo(hdr)
	if err != nil {
		return fmt.Errorf("clientside: decoding shader info: %w", err)
	}
	payload, err := c.reliable.ReadTrailing(int(info.Size))
	if err != nil {
		return fmt.Errorf("clientside: reading shader code: %w", err)
	}
	code, err := wire.DecompressBulk(c.compression, payload)
	if err != nil {
		return fmt.Errorf("clientside: decompressing shader %d: %w", info.ID, err)
	}
	c.Store.InsertShader(idhash.ID(info.ID), info.Stage, info.PassNumber, code)
	return nil
}
