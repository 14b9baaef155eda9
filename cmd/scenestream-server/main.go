// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scenestream/scenestream/internal/config"
	"github.com/scenestream/scenestream/internal/logging"
	"github.com/scenestream/scenestream/internal/maintenance"
	"github.com/scenestream/scenestream/internal/monitor"
	"github.com/scenestream/scenestream/internal/netutil"
	"github.com/scenestream/scenestream/internal/observability"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/serverside"
	"github.com/scenestream/scenestream/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/scenestream/server.yaml", "path to server config file")
	httpListen := flag.String("http-listen", "", "address for the optional status endpoint, e.g. :9090")
	verbose := flag.Bool("vv", false, "debug-level logging")
	humanLog := flag.Bool("n", false, "human-readable (text) log output instead of JSON")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.LogLevel
	if *verbose {
		logLevel = "debug"
	}
	logFormat := cfg.LogFormat
	if *humanLog {
		logFormat = "text"
	}
	logger := logging.NewLogger(logLevel, logFormat)

	dscp, err := netutil.ParseDSCP(cfg.DSCP)
	if err != nil {
		logger.Error("invalid dscp config", "error", err)
		os.Exit(1)
	}
	fillRate, _ := config.ParseByteSize(cfg.RateLimit.FillRate)
	capacity, _ := config.ParseByteSize(cfg.RateLimit.Capacity)

	store := resource.New(logger)
	observer := monitor.NewSystemObserver("/", 0)

	sup := serverside.New(serverside.Config{
		ReliableListen:    cfg.ReliableListen,
		UDPSendListen:     cfg.UdpSendListen,
		UDPRecvListen:     cfg.UdpRecvListen,
		UDPSendPort:       udpPort(cfg.UdpSendListen, 1234),
		RateLimitFill:     fillRate,
		RateLimitCapacity: capacity,
		RateLimitTick:     cfg.RateLimit.Tick,
		KeepaliveInterval: cfg.KeepaliveInterval,
		ReadTimeout:       cfg.ReadTimeout,
		DSCP:              dscp,
		Compression:       byte(compressionMode(cfg.CompressionEnabled)),
		// Geometry is left nil: live vertex/index bytes are produced by
		// whichever app-stage owns the scene's mesh data, outside this
		// streaming core.
	}, store, observer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	go observer.Run(ctx)

	scheduler, err := maintenance.New(cfg.MaintenanceCron, sup.Sweep, logger)
	if err != nil {
		logger.Error("building maintenance scheduler failed", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	if *httpListen != "" {
		statusSrv := observability.New(*httpListen, sup, logger)
		go func() {
			if err := statusSrv.Run(ctx); err != nil {
				logger.Warn("observability server stopped", "error", err)
			}
		}()
	}

	logger.Info("scenestream-server starting", "reliable_listen", cfg.ReliableListen)
	if err := sup.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func compressionMode(enabled bool) wire.CompressionMode {
	if enabled {
		return wire.CompressionZstd
	}
	return wire.CompressionNone
}

// udpPort extracts the numeric port from a ":1234"-style listen
// address, falling back to def when the address can't be parsed.
func udpPort(listen string, def int) int {
	for i := len(listen) - 1; i >= 0; i-- {
		if listen[i] == ':' {
			var port int
			if _, err := fmt.Sscanf(listen[i+1:], "%d", &port); err == nil && port != 0 {
				return port
			}
			break
		}
	}
	return def
}
