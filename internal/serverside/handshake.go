// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package serverside

import (
	"fmt"

	"github.com/scenestream/scenestream/internal/wire"
)

// runHandshake drives the server side of New -> Handshaking: wait for
// HELO, reply HELO_ACK. The HELO payload's single byte is the client's
// requested CompressionMode; the server negotiates down to
// CompressionNone unless both ends want zstd, and echoes the
// negotiated mode back in HELO_ACK's payload.
func (e *Endpoint) runHandshake() error {
	t, err := e.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("serverside: waiting for HELO: %w", err)
	}
	if t != wire.MsgHELO {
		return fmt.Errorf("serverside: expected HELO, got %s", t)
	}
	payload, err := e.reliable.ReadTrailing(1)
	if err != nil {
		return fmt.Errorf("serverside: reading HELO payload: %w", err)
	}
	clientMode := wire.CompressionMode(payload[0])
	negotiated := wire.CompressionNone
	if clientMode != wire.CompressionNone && e.compression != wire.CompressionNone {
		negotiated = wire.CompressionZstd
	}
	e.compression = negotiated
	if err := e.reliable.SendMessage(wire.MsgHELOAck, []byte{byte(negotiated)}); err != nil {
		return fmt.Errorf("serverside: sending HELO_ACK: %w", err)
	}
	e.logger.Info("handshake complete", "compression", negotiated)
	return nil
}

// runReadyHandshake drives ResourceExchange -> Streaming: announce
// START_STREAMING and wait for the client's READY.
func (e *Endpoint) runReadyHandshake() error {
	if err := e.reliable.SendMessage(wire.MsgStartStreaming, nil); err != nil {
		return fmt.Errorf("serverside: sending START_STREAMING: %w", err)
	}
	t, err := e.reliable.RecvType()
	if err != nil {
		return fmt.Errorf("serverside: waiting for READY: %w", err)
	}
	if t != wire.MsgReady {
		return fmt.Errorf("serverside: expected READY, got %s", t)
	}
	e.logger.Info("client ready, entering streaming")
	return nil
}
