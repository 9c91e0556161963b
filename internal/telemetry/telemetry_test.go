/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type sink struct {
	mu     sync.Mutex
	bodies map[string][]string
	types  map[string]string
}

func newSink(t *testing.T) (*sink, *httptest.Server) {
	t.Helper()
	s := &sink{bodies: map[string][]string{}, types: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies[r.URL.Path] = append(s.bodies[r.URL.Path], string(b))
		s.types[r.URL.Path] = r.Header.Get("Content-Type")
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *sink) get(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies[path]...)
}

func (s *sink) contentType(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[path]
}

func flush(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)
}

func TestRoundAppliedSendsCountsOnly(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	defer c.Close()

	c.RoundApplied(RoundApply{Mode: "circular", Store: "document", Rounded: 8, Degenerate: 1, Passed: 3})
	flush(c)

	got := s.get("/events")
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(got[0]), &m); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	for _, k := range []string{"ts", "version", "os", "arch"} {
		if m[k] == nil || m[k] == "" {
			t.Fatalf("missing %s in %v", k, m)
		}
		delete(m, k)
	}
	want := map[string]any{
		"name": EventRoundApply, "mode": "circular", "store": "document",
		"rounded": 8.0, "degenerate": 1.0, "passed": 3.0,
	}
	if d := cmp.Diff(want, m); d != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", d)
	}
	if ct := s.contentType("/events"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestUploadCrash(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash"})
	defer c.Close()

	report := []byte("panic: bad segment\n")
	c.UploadCrash(report)
	report[0] = 'X'
	flush(c)

	if got := s.get("/crash"); len(got) != 1 || got[0] != "panic: bad segment\n" {
		t.Fatalf("crash uploads = %q", got)
	}
	if ct := s.contentType("/crash"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	// no events URL, so rounding runs stay local
	c.RoundApplied(RoundApply{Mode: "circular", Rounded: 1})
	flush(c)
	if got := s.get("/events"); len(got) != 0 {
		t.Fatalf("unexpected events %q", got)
	}
}

func TestNothingSentWithoutOptIn(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client enabled without opt-in")
	}
	c.RoundApplied(RoundApply{Mode: "chamfer", Rounded: 2})
	c.UploadCrash([]byte("panic"))
	flush(c)
	if n := len(s.get("/events")) + len(s.get("/crash")); n != 0 {
		t.Fatalf("%d requests sent without opt-in", n)
	}
}

func TestFailedSendDoesNotBlockFlush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := New(Config{OptIn: true, EventsURL: srv.URL, DebugLogging: true, Timeout: 200 * time.Millisecond})
	defer c.Close()

	c.RoundApplied(RoundApply{Mode: "circular"})
	flush(c)
	if n := c.pending.Load(); n != 0 {
		t.Fatalf("pending = %d after flush", n)
	}
	if err := c.post(srv.URL, "application/json", nil); err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
}

func TestClosedClientDropsEvents(t *testing.T) {
	s, srv := newSink(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	c.Close()
	c.Close()
	c.RoundApplied(RoundApply{Mode: "circular"})
	flush(c)
	if got := s.get("/events"); len(got) != 0 {
		t.Fatalf("closed client sent %q", got)
	}
}

func TestDefaultClient(t *testing.T) {
	old := std.Swap(nil)
	t.Cleanup(func() { std.Store(old) })

	// without a default client the package functions do nothing
	RoundApplied(RoundApply{Mode: "circular"})
	UploadCrash([]byte("panic"))
	Flush(context.Background())

	s, srv := newSink(t)
	c := NewDefault(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	defer c.Close()
	RoundApplied(RoundApply{Mode: "circular", Store: "memory", Rounded: 4})
	flush(c)
	if got := s.get("/events"); len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvOptIn, "Yes")
	t.Setenv(EnvEventsURL, " https://t.example/events ")
	t.Setenv(EnvCrashURL, "")
	t.Setenv(EnvTimeoutMs, "250")
	t.Setenv(EnvDebug, "0")
	want := Config{OptIn: true, EventsURL: "https://t.example/events", Timeout: 250 * time.Millisecond}
	if d := cmp.Diff(want, FromEnv()); d != "" {
		t.Fatalf("FromEnv mismatch (-want +got):\n%s", d)
	}
	t.Setenv(EnvTimeoutMs, "soon")
	if got := FromEnv().Timeout; got != 0 {
		t.Fatalf("timeout = %v for a bad value", got)
	}
}
