// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package staging implements the bounded SPSC byte queue the client's
// datagram-rx task uses to hand received bytes to the main thread. The
// queue never blocks its single writer: an append that would overflow
// drops the new bytes and logs a warning.
package staging

import (
	"log/slog"
	"sync"
)

const defaultCapacity = 128 * 1024 * 1024 // 128 MiB default

// Queue is a mutex-guarded circular byte buffer with exactly one writer
// (datagram-rx) and one reader (the main thread).
type Queue struct {
	mu     sync.Mutex
	buf    []byte
	used   int
	logger *slog.Logger
}

// New creates a Queue with the given capacity B. A capacity of zero
// selects the 128 MiB default.
func New(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{buf: make([]byte, capacity), logger: logger}
}

// Append copies slice into the queue. If slice would overfill the
// buffer, the entire slice is dropped, a warning is logged, and the
// queue's used length is reset to zero.
func (q *Queue) Append(slice []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.used+len(slice) > len(q.buf) {
		q.logger.Warn("staging queue overflow, dropping datagram payload",
			"pending", q.used, "incoming", len(slice), "capacity", len(q.buf))
		q.used = 0
		return
	}
	copy(q.buf[q.used:], slice)
	q.used += len(slice)
}

// DrainInto copies the queue's pending bytes into dst and resets used to
// zero, returning the number of bytes copied. If dst is too small to
// hold everything pending, only len(dst) bytes are copied and the
// remainder is dropped (never partially retained — a drain is always a
// full reset, matching the single-writer/single-reader handoff
// contract).
func (q *Queue) DrainInto(dst []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.used
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst[:n], q.buf[:n])
	q.used = 0
	return n
}

// Len reports the number of bytes currently pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Cap reports the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}
