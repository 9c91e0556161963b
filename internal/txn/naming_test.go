/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package txn

import (
	"context"
	"testing"
	"time"

	"shaperounder/internal/storage"
	"shaperounder/internal/vector"
)

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"box":                             "box",
		"box (Original)":                  "box",
		"box (Rounded)":                   "box",
		"box (Rounded) (3)":               "box",
		"box (Restored)":                  "box",
		"box (Restored 2)":                "box",
		"box (Restored 2) (1)":            "box",
		"box (Original) (Rounded)":        "box (Original)",
		"box (3)":                         "box (3)",
		"box (Rounded) (x)":               "box (Rounded) (x)",
		"(Rounded)":                       "(Rounded)",
		"my (Original) thing":             "my (Original) thing",
		"box (Original) (20250101-1)":     "box (Original) (20250101-1)",
		"box (Rounded) (20250102-030405)": "box",
		"box (Restored 20250102-030405)":  "box",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Fatalf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCandidatesAreBounded(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	next := candidates("box (Rounded)", now)
	if n, _ := next(0); n != "box (Rounded)" {
		t.Fatalf("first = %q", n)
	}
	if n, _ := next(2); n != "box (Rounded) (2)" {
		t.Fatalf("second = %q", n)
	}
	if n, _ := next(maxRetries + 1); n != "box (Rounded) (20250304-050607)" {
		t.Fatalf("fallback = %q", n)
	}
	if _, ok := next(maxRetries + 2); ok {
		t.Fatalf("candidates should stop after the fallback")
	}

	r := restoredCandidates("box", now)
	if n, _ := r(0); n != "box" {
		t.Fatalf("restored first = %q", n)
	}
	if n, _ := r(1); n != "box (Restored 1)" {
		t.Fatalf("restored second = %q", n)
	}
}

func TestFindRenamedOriginalOrder(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(
		vector.Path{Name: "box"},
		vector.Path{Name: "box (Original) (2)"},
	)
	got, ok, err := FindRenamedOriginal(ctx, s, "box (Rounded)")
	if err != nil || !ok || got != "box (Original) (2)" {
		t.Fatalf("got %q, %v, %v", got, ok, err)
	}
	_, _ = s.Create(ctx, "box (Original)", nil)
	if got, _, _ := FindRenamedOriginal(ctx, s, "box"); got != "box (Original)" {
		t.Fatalf("plain (Original) should win, got %q", got)
	}
	if got, ok, _ := FindRenamedOriginal(ctx, s, "other"); ok {
		t.Fatalf("unexpected match %q", got)
	}
}
