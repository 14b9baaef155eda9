// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"128":   128,
		"1kb":   1024,
		"2mb":   2 * 1024 * 1024,
		"1gb":   1024 * 1024 * 1024,
		"0.5mb": 512 * 1024,
	}
	for in, want := range cases {
		got, err := ParseByteSize(in)
		if err != nil {
			t.Fatalf("ParseByteSize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLoadClientConfig_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	os.WriteFile(path, []byte("server_addr: 127.0.0.1\n"), 0644)

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.ReliablePort != 1236 {
		t.Errorf("expected default reliable port 1236, got %d", cfg.ReliablePort)
	}
	if cfg.StagingCapacity != "128mb" {
		t.Errorf("expected default staging capacity 128mb, got %q", cfg.StagingCapacity)
	}
}

func TestLoadClientConfig_MissingServerAddrRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0644)

	if _, err := LoadClientConfig(path); err == nil {
		t.Fatal("expected missing server_addr to be rejected")
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	os.WriteFile(path, []byte("{}\n"), 0644)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ReliableListen != ":1236" {
		t.Errorf("expected default reliable listen :1236, got %q", cfg.ReliableListen)
	}
	if cfg.MaintenanceCron != "@every 30s" {
		t.Errorf("expected default maintenance cron, got %q", cfg.MaintenanceCron)
	}
}
