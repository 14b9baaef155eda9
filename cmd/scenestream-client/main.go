// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scenestream/scenestream/internal/clientside"
	"github.com/scenestream/scenestream/internal/config"
	"github.com/scenestream/scenestream/internal/logging"
	"github.com/scenestream/scenestream/internal/netutil"
	"github.com/scenestream/scenestream/internal/resource"
	"github.com/scenestream/scenestream/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/scenestream/client.yaml", "path to client config file")
	cameraMode := flag.Bool("c", false, "run in camera (free-fly observer) mode")
	debugRender := flag.Bool("d", false, "enable debug rendering overlays")
	verbose := flag.Bool("vv", false, "debug-level logging")
	humanLog := flag.Bool("n", false, "human-readable (text) log output instead of JSON")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: scenestream-client <server-ip> [-config path] [-c] [-d] [-vv] [-n]")
		os.Exit(1)
	}
	serverHost := os.Args[1]
	flag.CommandLine.Parse(os.Args[2:])

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *cameraMode {
		cfg.CameraMode = true
	}
	if *debugRender {
		cfg.DebugRender = true
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
	stagingCap, _ := config.ParseByteSize(cfg.StagingCapacity)
	vertexCap, _ := config.ParseByteSize(cfg.VertexCapacity)
	indexCap, _ := config.ParseByteSize(cfg.IndexCapacity)

	store := resource.New(logger)

	// UdpSendPort/UdpRecvPort are named from the server's channel-role
	// perspective (ClientConfig mirrors ServerConfig's UdpSendListen/
	// UdpRecvListen): UdpSendPort is the port the server sends datagrams
	// to, so the client must bind it locally to receive; UdpRecvPort is
	// the server's ack-recv port, so the client dials it to send acks.
	cc := clientside.Config{
		ServerHost:   serverHost,
		ReliablePort: cfg.ReliablePort,
		UDPListen:    fmt.Sprintf(":%d", cfg.UdpSendPort),
		UDPSendPort:  cfg.UdpRecvPort,

		ReadTimeout:       cfg.ReadTimeout,
		KeepaliveInterval: cfg.KeepaliveInterval,
		DSCP:              dscp,

		CompressionRequested: compressionMode(cfg.CompressionEnabled),

		StagingCapacity: int(stagingCap),
		VertexCapacity:  int(vertexCap),
		IndexCapacity:   int(indexCap),
	}

	client := clientside.New(cc, store, nil, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		client.Cancel()
	}()

	go applyLoop(client)

	logger.Info("scenestream-client connecting", "server", serverHost, "camera_mode", cfg.CameraMode, "debug_render", cfg.DebugRender)
	if err := client.Run(); err != nil {
		logger.Error("client error", "error", err)
		os.Exit(1)
	}
}

func compressionMode(enabled bool) wire.CompressionMode {
	if enabled {
		return wire.CompressionZstd
	}
	return wire.CompressionNone
}

// applyLoop drains received chunks into the staging buffers on a fixed
// tick. A real embedding app instead calls client.DrainAndApply directly
// from its own render-frame loop, since the client's main thread should
// never block on the network directly; this loop stands in for that
// when running headless.
func applyLoop(client *clientside.Client) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-client.Done():
			return
		case <-ticker.C:
			client.DrainAndApply()
		}
	}
}
