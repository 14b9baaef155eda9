// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads and validates the server and client YAML
// configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig configures the datagram-tx token bucket. FillRate and
// Capacity are zero-value ("") by default, which leaves the bucket
// inert: rate limiting is opt-in, and transmission is unbounded unless
// FillRate is set.
type RateLimitConfig struct {
	FillRate string        `yaml:"fill_rate"`
	Capacity string        `yaml:"capacity"`
	Tick     time.Duration `yaml:"tick"`
}

// ObservabilityConfig configures the optional HTTP status endpoint.
type ObservabilityConfig struct {
	Listen string `yaml:"listen"`
}

// ServerConfig is the server's top-level configuration.
type ServerConfig struct {
	ReliableListen string `yaml:"reliable_listen"`
	UdpSendListen  string `yaml:"udp_send_listen"`
	UdpRecvListen  string `yaml:"udp_recv_listen"`

	StagingArenaHint string `yaml:"staging_arena_hint"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`

	DSCP string `yaml:"dscp"`

	CompressionEnabled bool `yaml:"compression_enabled"`

	MaintenanceCron string `yaml:"maintenance_cron"`

	Observability ObservabilityConfig `yaml:"observability"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LoadServerConfig reads and validates a ServerConfig from path.
func LoadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.ReliableListen == "" {
		c.ReliableListen = ":1236"
	}
	if c.UdpSendListen == "" {
		c.UdpSendListen = ":1234"
	}
	if c.UdpRecvListen == "" {
		c.UdpRecvListen = ":1235"
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.RateLimit.Tick <= 0 {
		c.RateLimit.Tick = 200 * time.Millisecond
	}
	if c.MaintenanceCron == "" {
		c.MaintenanceCron = "@every 30s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func (c *ServerConfig) validate() error {
	var errs []string
	if c.ReliableListen == "" {
		errs = append(errs, "reliable_listen is required")
	}
	if _, err := ParseByteSize(c.RateLimit.FillRate); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := ParseByteSize(c.RateLimit.Capacity); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid server config: %v", errs)
	}
	return nil
}

// ClientConfig is the client's top-level configuration.
type ClientConfig struct {
	ServerAddr string `yaml:"server_addr"`

	ReliablePort int `yaml:"reliable_port"`
	UdpSendPort  int `yaml:"udp_send_port"`
	UdpRecvPort  int `yaml:"udp_recv_port"`

	StagingCapacity string `yaml:"staging_capacity"`
	VertexCapacity  string `yaml:"vertex_capacity"`
	IndexCapacity   string `yaml:"index_capacity"`

	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`

	DSCP string `yaml:"dscp"`

	CompressionEnabled bool `yaml:"compression_enabled"`

	CameraMode  bool `yaml:"camera_mode"`
	DebugRender bool `yaml:"debug_render"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LoadClientConfig reads and validates a ClientConfig from path.
func LoadClientConfig(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.ReliablePort == 0 {
		c.ReliablePort = 1236
	}
	if c.UdpSendPort == 0 {
		c.UdpSendPort = 1234
	}
	if c.UdpRecvPort == 0 {
		c.UdpRecvPort = 1235
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.StagingCapacity == "" {
		c.StagingCapacity = "128mb"
	}
	if c.VertexCapacity == "" {
		c.VertexCapacity = "64mb"
	}
	if c.IndexCapacity == "" {
		c.IndexCapacity = "32mb"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func (c *ClientConfig) validate() error {
	var errs []string
	if c.ServerAddr == "" {
		errs = append(errs, "server_addr is required")
	}
	if _, err := ParseByteSize(c.StagingCapacity); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := ParseByteSize(c.VertexCapacity); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := ParseByteSize(c.IndexCapacity); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid client config: %v", errs)
	}
	return nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
