// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsSweepOnTick(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 10ms", func() { calls.Add(1) }, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweep ran %d times in 2s, want at least 2", calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var running atomic.Int32
	var maxConcurrent atomic.Int32

	sweep := func() {
		n := running.Add(1)
		for {
			cur := maxConcurrent.Load()
			if n <= cur || maxConcurrent.CompareAndSwap(cur, n) {
				break
			}
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		running.Add(-1)
	}

	s, err := New("@every 5ms", sweep, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never started")
	}

	// Let several more ticks elapse while the first sweep is still
	// blocked in release; the scheduler must skip them rather than run
	// concurrently. robfig/cron runs "@every" schedules at most once a
	// second, so this wait spans at least two more ticks.
	time.Sleep(2500 * time.Millisecond)
	close(release)
	s.Stop(context.Background())

	if got := maxConcurrent.Load(); got > 1 {
		t.Fatalf("observed %d concurrent sweeps, want at most 1", got)
	}
}

func TestNewRejectsInvalidCronSpec(t *testing.T) {
	if _, err := New("not a cron spec", func() {}, nil); err == nil {
		t.Fatal("expected an error for an invalid cron spec")
	}
}
