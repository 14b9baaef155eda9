// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connstate

import (
	"testing"
	"time"
)

func TestMachine_HappyPath(t *testing.T) {
	m := NewMachine()
	steps := []State{Handshaking, ResourceExchange, Streaming, ResourceExchange, Streaming, Draining, Closed}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestMachine_IllegalTransitionRejected(t *testing.T) {
	m := NewMachine()
	if err := m.Transition(Streaming); err == nil {
		t.Fatal("expected New -> Streaming to be rejected")
	}
}

func TestMachine_AnyStateToDraining(t *testing.T) {
	m := NewMachine()
	if err := m.Transition(Handshaking); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := m.Transition(Draining); err != nil {
		t.Fatalf("expected Handshaking -> Draining to be allowed, got %v", err)
	}
}

func TestMachine_KeepaliveExpiry(t *testing.T) {
	m := NewMachine()
	base := time.Now()
	if m.KeepaliveExpired(base.Add(10*time.Second), base, 30*time.Second, time.Second) {
		t.Fatal("should not be expired within 2K")
	}
	if !m.KeepaliveExpired(base.Add(65*time.Second), base, 30*time.Second, time.Second) {
		t.Fatal("should be expired past 2K + jitter")
	}
}
