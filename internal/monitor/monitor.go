// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package monitor implements the system observer injected into the
// server's keepalive diagnostic payload. It models host diagnostics as
// a per-component Observer interface rather than a process-wide
// mutable monitor, so tests can substitute a capturing fake.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is a point-in-time system snapshot.
type Stats struct {
	CPUPercent  float64
	MemUsedPct  float64
	DiskFreeMB  uint64
	SampledAt   time.Time
}

// Observer reports the latest sampled Stats.
type Observer interface {
	Sample() Stats
}

const defaultInterval = 15 * time.Second

// SystemObserver polls host CPU/memory/disk on a ticker and serves the
// latest snapshot without blocking callers on the syscalls themselves.
type SystemObserver struct {
	mu        sync.RWMutex
	stats     Stats
	diskPath  string
	interval  time.Duration
}

// NewSystemObserver creates a SystemObserver. diskPath is the
// filesystem path whose free space is reported (e.g. "/"). A zero
// interval selects the 15 second default.
func NewSystemObserver(diskPath string, interval time.Duration) *SystemObserver {
	if interval <= 0 {
		interval = defaultInterval
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemObserver{diskPath: diskPath, interval: interval}
}

// Run polls until ctx is cancelled.
func (o *SystemObserver) Run(ctx context.Context) {
	o.collect()
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.collect()
		}
	}
}

func (o *SystemObserver) collect() {
	var s Stats
	s.SampledAt = time.Now()

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemUsedPct = vm.UsedPercent
	}
	if du, err := disk.Usage(o.diskPath); err == nil {
		s.DiskFreeMB = du.Free / (1024 * 1024)
	}

	o.mu.Lock()
	o.stats = s
	o.mu.Unlock()
}

// Sample returns the most recently collected Stats.
func (o *SystemObserver) Sample() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

// NoopObserver always reports the zero Stats; used where diagnostics
// are disabled.
type NoopObserver struct{}

func (NoopObserver) Sample() Stats { return Stats{} }
