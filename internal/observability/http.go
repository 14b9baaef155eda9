// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package observability exposes a minimal JSON status endpoint over
// plain net/http.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// ConnectionSnapshot is one connection's point-in-time metrics.
type ConnectionSnapshot struct {
	RemoteAddr      string `json:"remote_addr"`
	State           string `json:"state"`
	BytesSent       int64  `json:"bytes_sent"`
	BytesReceived   int64  `json:"bytes_received"`
	PersistentDepth int    `json:"persistent_depth"`
	LastKeepaliveMS int64  `json:"last_keepalive_ms_ago"`
}

// MetricsSource is implemented by the server's connection registry.
type MetricsSource interface {
	ConnectionsSnapshot() []ConnectionSnapshot
}

// Server is the optional status HTTP server.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates a Server bound to addr, serving GET /status from source.
func New(addr string, source MetricsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(source.ConnectionsSnapshot()); err != nil {
			logger.Warn("observability: encoding status response", "error", err)
		}
	})
	return &Server{
		http:   &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
