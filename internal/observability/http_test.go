// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

type fakeMetricsSource struct {
	snapshot []ConnectionSnapshot
}

func (f fakeMetricsSource) ConnectionsSnapshot() []ConnectionSnapshot { return f.snapshot }

func TestStatusHandlerEncodesSnapshot(t *testing.T) {
	want := []ConnectionSnapshot{
		{RemoteAddr: "127.0.0.1:1234", State: "Streaming", BytesSent: 100, BytesReceived: 50, PersistentDepth: 3, LastKeepaliveMS: 20},
	}
	srv := New(":0", fakeMetricsSource{snapshot: want}, nil)

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got []ConnectionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStatusHandlerEmptySnapshot(t *testing.T) {
	srv := New(":0", fakeMetricsSource{snapshot: nil}, nil)
	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)

	var got []ConnectionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}
