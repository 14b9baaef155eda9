// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package updatequeue

import (
	"testing"
	"time"

	"github.com/scenestream/scenestream/internal/idhash"
	"github.com/scenestream/scenestream/internal/wire"
)

func TestQueues_PersistentEviction(t *testing.T) {
	q := NewQueues()
	model := idhash.Of("m")
	u1 := NewGeomUpdate(model, wire.GeomKindVertex, 0, 3)
	u2 := NewGeomUpdate(model, wire.GeomKindVertex, 0, 3) // same serial id
	q.EnqueuePersistent(u1)
	q.EnqueuePersistent(u2)

	if q.PersistentLen() != 1 {
		t.Fatalf("expected one collapsed entry, got %d", q.PersistentLen())
	}
}

func TestQueues_AckRemovesEntry(t *testing.T) {
	q := NewQueues()
	u := NewGeomUpdate(idhash.Of("m"), wire.GeomKindVertex, 0, 1)
	q.EnqueuePersistent(u)
	q.Ack(u.Geom.SerialID())
	if q.PersistentLen() != 0 {
		t.Fatalf("expected entry removed after ack, got %d", q.PersistentLen())
	}
}

func TestQueues_SnapshotClearsTransitory(t *testing.T) {
	q := NewQueues()
	q.EnqueueTransitory(NewTransformUpdate(idhash.Of("n"), [16]float32{}))
	trans, _ := q.Snapshot()
	if len(trans) != 1 {
		t.Fatalf("expected 1 transitory update, got %d", len(trans))
	}
	trans2, _ := q.Snapshot()
	if len(trans2) != 0 {
		t.Fatalf("expected transitory to be cleared after snapshot, got %d", len(trans2))
	}
}

func TestQueues_WaitWakesOnEnqueue(t *testing.T) {
	q := NewQueues()
	done := make(chan bool, 1)
	go func() { done <- q.Wait() }()

	time.Sleep(10 * time.Millisecond)
	q.EnqueueTransitory(NewTransformUpdate(idhash.Of("n"), [16]float32{}))

	select {
	case woke := <-done:
		if !woke {
			t.Fatal("expected Wait to return true on enqueue")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after enqueue")
	}
}

func TestQueues_CloseWakesWait(t *testing.T) {
	q := NewQueues()
	done := make(chan bool, 1)
	go func() { done <- q.Wait() }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Close")
	}
}
