// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package clientside

import (
	"fmt"

	"github.com/scenestream/scenestream/internal/wire"
)

// runHandshake drives the client side of New -> Handshaking: send HELO
// carrying the requested compression mode, wait for HELO_ACK, and
// record the server's negotiated mode.
func (c *Client) runHandshake() error {
	if err := c.reliable.SendMessage(wire.MsgHELO, []byte{byte(c.cfg.CompressionRequested)}); err != nil {
		return fmt.Errorf("clientside: sending HELO: %w", err)
	}
	t, err := c.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("clientside: waiting for HELO_ACK: %w", err)
	}
	if t != wire.MsgHELOAck {
		return fmt.Errorf("clientside: expected HELO_ACK, got %s", t)
	}
	payload, err := c.reliable.ReadTrailing(1)
	if err != nil {
		return fmt.Errorf("clientside: reading HELO_ACK payload: %w", err)
	}
	c.compression = wire.CompressionMode(payload[0])
	c.logger.Info("handshake complete", "compression", c.compression)
	return nil
}

// runReadyHandshake drives ResourceExchange -> Streaming: wait for
// START_STREAMING, reply READY.
func (c *Client) runReadyHandshake() error {
	t, err := c.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("clientside: waiting for START_STREAMING: %w", err)
	}
	if t != wire.MsgStartStreaming {
		return fmt.Errorf("clientside: expected START_STREAMING, got %s", t)
	}
	if err := c.reliable.SendMessage(wire.MsgReady, nil); err != nil {
		return fmt.Errorf("clientside: sending READY: %w", err)
	}
	c.logger.Info("ready, entering streaming")
	return nil
}
