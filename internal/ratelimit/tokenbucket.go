// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package ratelimit implements the datagram-tx token bucket: a single
// shared bucket governing the send rate of the server's datagram
// channel. Request never blocks — the caller must back off and retry on
// the next refill tick itself, so pending updates are never reordered
// just to squeeze in a smaller one.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultTick is the refill period used when none is configured.
const defaultTick = 200 * time.Millisecond

// TokenBucket is a fill-rate/capacity token bucket. Tokens refill
// continuously inside rate.Limiter, not in per-tick steps; the tick only
// paces the wake-ups of WaitForTick callers. It wraps rate.Limiter purely
// for its token accounting (AllowN), never its blocking Wait family — the
// bucket itself never sleeps.
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	tick    time.Duration
	enabled bool

	waitersCh chan struct{} // closed and replaced on every refill tick
}

// New creates a TokenBucket. fillRate is in bytes per second, capacity is
// the burst allowance in bytes, and tick is the refill period (zero
// defaults to 200ms). A fillRate <= 0 produces an inert bucket: Request
// always succeeds immediately.
func New(fillRate, capacity int64, tick time.Duration) *TokenBucket {
	if tick <= 0 {
		tick = defaultTick
	}
	b := &TokenBucket{tick: tick, waitersCh: make(chan struct{})}
	if fillRate <= 0 {
		return b
	}
	b.enabled = true
	b.limiter = rate.NewLimiter(rate.Limit(fillRate), int(capacity))
	return b
}

// Enabled reports whether this bucket enforces a rate at all.
func (b *TokenBucket) Enabled() bool {
	return b.enabled
}

// Tick is the configured refill period.
func (b *TokenBucket) Tick() time.Duration {
	return b.tick
}

// Request attempts to deduct n tokens. It never blocks: it returns true
// and deducts iff n <= tokens available right now; otherwise it returns
// false and the bucket is left untouched.
func (b *TokenBucket) Request(n int) bool {
	if !b.enabled {
		return true
	}
	return b.limiter.AllowN(time.Now(), n)
}

// Run drives the bucket's refill notifications until ctx-like stop is
// closed. rate.Limiter refills continuously on its own internally (every
// AllowN call reconciles elapsed time), so Run's only job is to wake up
// goroutines blocked in WaitForTick once per configured tick.
func (b *TokenBucket) Run(stop <-chan struct{}) {
	if !b.enabled {
		return
	}
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			close(b.waitersCh)
			b.waitersCh = make(chan struct{})
			b.mu.Unlock()
		}
	}
}

// WaitForTick blocks the caller until the next refill tick fires or stop
// is closed. Used by udp-tx after a denied Request to sleep until the
// next tick and retry, instead of busy-polling.
func (b *TokenBucket) WaitForTick(stop <-chan struct{}) {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	ch := b.waitersCh
	b.mu.Unlock()
	select {
	case <-ch:
	case <-stop:
	}
}
