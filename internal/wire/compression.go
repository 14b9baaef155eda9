// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionMode identifies how a resource packet's trailing bulk
// bytes are encoded on the wire. Negotiated during HELO/HELO_ACK; off
// by default.
type CompressionMode uint8

const (
	CompressionNone CompressionMode = 0
	CompressionZstd CompressionMode = 1
)

// CompressBulk compresses data per mode. CompressionNone returns data
// unchanged.
func CompressBulk(mode CompressionMode, data []byte) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("wire: creating zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("wire: unknown compression mode %d", mode)
	}
}

// DecompressBulk reverses CompressBulk.
func DecompressBulk(mode CompressionMode, data []byte) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("wire: creating zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("wire: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wire: unknown compression mode %d", mode)
	}
}
