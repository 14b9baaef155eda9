// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package maintenance runs the server's periodic sweep: reaping of
// drained connections and a stats snapshot log, on a cron schedule.
package maintenance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// SweepFunc performs one maintenance pass. It must not block for long —
// the scheduler enforces at most one concurrent execution.
type SweepFunc func()

// Scheduler wraps a single cron job guarded against overlapping runs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	sweep   SweepFunc
	mu      sync.Mutex
	running bool
}

// New creates a Scheduler that runs sweep on the given cron spec
// (e.g. "@every 30s").
func New(spec string, sweep SweepFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{logger: logger, sweep: sweep}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins running the schedule.
func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started")
	s.cron.Start()
}

// Stop stops the schedule, waiting for any in-flight sweep to finish or
// ctx to be cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("maintenance scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
	}
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("maintenance sweep already running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.sweep()
}
