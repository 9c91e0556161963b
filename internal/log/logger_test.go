/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lastRecord(t *testing.T, b []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestRoundingRecordGoesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "shaperounder.log")
	Init(Options{Level: "debug", File: file, Output: io.Discard})

	ctx := WithPath(context.Background(), "Logo (Rounded)")
	WithOperation(WithComponent("txn"), "apply").InfoContext(ctx, "rounded", Points(4, 1, 2))

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastRecord(t, b)
	got := map[string]any{"app": m["app"], "component": m["component"], "op": m["op"], "path": m["path"], "msg": m["msg"]}
	want := map[string]any{"app": AppName, "component": "txn", "op": "apply", "path": "Logo (Rounded)", "msg": "rounded"}
	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", d)
	}
	pts, _ := m["points"].(map[string]any)
	if d := cmp.Diff(map[string]any{"rounded": 4.0, "degenerate": 1.0, "passed": 2.0}, pts); d != "" {
		t.Fatalf("points mismatch (-want +got):\n%s", d)
	}
}

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Format: "json", Output: &buf})

	ctx := WithRequestID(WithPath(context.Background(), "box"), "r-1")
	l.InfoContext(ctx, "round")
	m := lastRecord(t, buf.Bytes())
	if m["req_id"] != "r-1" || m["path"] != "box" {
		t.Fatalf("req_id = %v, path = %v", m["req_id"], m["path"])
	}

	// attributes set with With keep the context attrs
	buf.Reset()
	l.With(slog.String("subject", "box (Original)")).InfoContext(ctx, "restore")
	m = lastRecord(t, buf.Bytes())
	if m["subject"] != "box (Original)" || m["path"] != "box" {
		t.Fatalf("record = %v", m)
	}

	buf.Reset()
	l.InfoContext(WithPath(context.Background(), ""), "list")
	m = lastRecord(t, buf.Bytes())
	if _, ok := m["path"]; ok {
		t.Fatalf("empty path name was logged: %v", m)
	}
	if _, ok := m["req_id"]; ok {
		t.Fatalf("unexpected req_id: %v", m)
	}
}

func TestTextConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Level: "WARNING", Format: "console", Output: &buf})
	l.Info("listing paths")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	l.WarnContext(WithPath(context.Background(), "box"), "placeholder cleanup failed")
	out := buf.String()
	for _, want := range []string{"level=WARN", "app=shaperounder", "path=box", `msg="placeholder cleanup failed"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "TRUE")
	t.Setenv(EnvFile, " /tmp/shr.log ")
	want := Options{Level: "debug", Format: "json", AddSource: true, File: "/tmp/shr.log"}
	if d := cmp.Diff(want, FromEnv(), cmp.Comparer(func(a, b io.Writer) bool { return a == b })); d != "" {
		t.Fatalf("FromEnv mismatch (-want +got):\n%s", d)
	}
}
