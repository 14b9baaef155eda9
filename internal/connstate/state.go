// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package connstate implements the connection state machine shared by
// both ends of a connection: New -> Handshaking -> ResourceExchange ->
// Streaming -> Draining -> Closed, with a Streaming -> ResourceExchange
// re-entry for mid-session model delivery.
package connstate

import (
	"fmt"
	"sync/atomic"
	"time"
)

// State is one node of the connection state machine.
type State int32

const (
	New State = iota
	Handshaking
	ResourceExchange
	Streaming
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case New:
		return "New"
	case Handshaking:
		return "Handshaking"
	case ResourceExchange:
		return "ResourceExchange"
	case Streaming:
		return "Streaming"
	case Draining:
		return "Draining"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// allowed lists the legal direct transitions out of each state.
var allowed = map[State][]State{
	New:              {Handshaking, Draining},
	Handshaking:      {ResourceExchange, Draining},
	ResourceExchange: {Streaming, Draining},
	Streaming:        {ResourceExchange, Draining},
	Draining:         {Closed},
	Closed:           {},
}

// Machine is an atomically-readable connection state, used identically
// on the server and the client — the state names are shared, only the
// roles driving the transitions differ.
type Machine struct {
	state            atomic.Int32
	lastKeepaliveUTC atomic.Int64 // unix nanos
}

// NewMachine creates a Machine starting in State New.
func NewMachine() *Machine {
	m := &Machine{}
	m.state.Store(int32(New))
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Transition moves the machine to next if the edge is legal, returning
// an error otherwise. Any state may unconditionally transition to
// Draining, on a received DISCONNECT, a socket error, or a keepalive
// timeout.
func (m *Machine) Transition(next State) error {
	for {
		cur := State(m.state.Load())
		if cur == next {
			return nil
		}
		if next != Draining && !isAllowed(cur, next) {
			return fmt.Errorf("connstate: illegal transition %s -> %s", cur, next)
		}
		if next == Draining && cur == Closed {
			return fmt.Errorf("connstate: illegal transition %s -> %s", cur, next)
		}
		if m.state.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

func isAllowed(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RecordKeepalive stamps the latest keepalive receipt time.
func (m *Machine) RecordKeepalive(t time.Time) {
	m.lastKeepaliveUTC.Store(t.UnixNano())
}

// KeepaliveExpired reports whether now - latest keepalive exceeds
// 2*K + jitter, the threshold past which a connection transitions to
// Draining. Before any keepalive has been recorded, the reference
// point is since, typically the time Streaming began.
func (m *Machine) KeepaliveExpired(now time.Time, since time.Time, k, jitter time.Duration) bool {
	last := m.lastKeepaliveUTC.Load()
	var lastT time.Time
	if last == 0 {
		lastT = since
	} else {
		lastT = time.Unix(0, last)
	}
	return now.Sub(lastT) > 2*k+jitter
}
