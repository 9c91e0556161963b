/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/vector"
)

func testSubs() []vector.SubPath {
	return []vector.SubPath{{
		Closed: true,
		Op:     "add",
		Points: []vector.AnchorPoint{
			vector.CornerAt(vec.Vec2{X: 0, Y: 0}),
			{Anchor: vec.Vec2{X: 10, Y: 0}, Left: vec.Vec2{X: 8, Y: -1}, Right: vec.Vec2{X: 12, Y: 1}, Kind: vector.Smooth},
			vector.CornerAt(vec.Vec2{X: 10, Y: 10}),
			vector.CornerAt(vec.Vec2{X: 0, Y: 10}),
		},
	}}
}

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Create(ctx, "a", testSubs()); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := s.Create(ctx, "b", nil); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if _, err := s.Create(ctx, "a", testSubs()); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("duplicate Create: err = %v", err)
	}
	if _, err := s.Create(ctx, "  ", testSubs()); err == nil {
		t.Fatalf("blank name accepted")
	}

	got, err := s.Read(ctx, "a")
	if err != nil {
		t.Fatalf("Read a: %v", err)
	}
	if diff := cmp.Diff(testSubs(), got.SubPaths); diff != "" {
		t.Fatalf("read back mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Read(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: err = %v", err)
	}

	if ok, err := s.Exists(ctx, "b"); err != nil || !ok {
		t.Fatalf("Exists b = %v, %v", ok, err)
	}
	if ok, err := s.Exists(ctx, "zzz"); err != nil || ok {
		t.Fatalf("Exists zzz = %v, %v", ok, err)
	}

	if _, ok, err := s.ActiveSelectionName(ctx); err != nil || ok {
		t.Fatalf("fresh selection = %v, %v", ok, err)
	}
	if err := s.Select(ctx, "a"); err != nil {
		t.Fatalf("Select a: %v", err)
	}
	if err := s.Select(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Select missing: err = %v", err)
	}

	// renaming the selected path keeps it selected
	if err := s.Rename(ctx, "a", "b"); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("Rename onto b: err = %v", err)
	}
	if err := s.Rename(ctx, "zzz", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Rename missing: err = %v", err)
	}
	if err := s.Rename(ctx, "a", "a2"); err != nil {
		t.Fatalf("Rename a: %v", err)
	}
	if name, ok, err := s.ActiveSelectionName(ctx); err != nil || !ok || name != "a2" {
		t.Fatalf("selection after rename = %q, %v, %v", name, ok, err)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"a2", "b"}, names); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	// removing the selected path clears the selection
	if err := s.Remove(ctx, "a2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "a2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove: err = %v", err)
	}
	if _, ok, _ := s.ActiveSelectionName(ctx); ok {
		t.Fatalf("selection survived removal")
	}
	if err := s.Select(ctx, "b"); err != nil {
		t.Fatalf("Select b: %v", err)
	}
	if err := s.Select(ctx, ""); err != nil {
		t.Fatalf("clear selection: %v", err)
	}
	if _, ok, _ := s.ActiveSelectionName(ctx); ok {
		t.Fatalf("selection not cleared")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestDocumentStoreContract(t *testing.T) {
	s, err := InitDocument(t.TempDir())
	if err != nil {
		t.Fatalf("InitDocument: %v", err)
	}
	runStoreContract(t, s)
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "paths.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	runStoreContract(t, s)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	subs := testSubs()
	s := NewMemoryStore(vector.Path{Name: "p", SubPaths: subs})
	subs[0].Points[0].Anchor.X = 999
	got, _ := s.Read(ctx, "p")
	if got.SubPaths[0].Points[0].Anchor.X != 0 {
		t.Fatalf("store shares memory with caller")
	}
	got.SubPaths[0].Points[1].Anchor.X = 999
	again, _ := s.Read(ctx, "p")
	if again.SubPaths[0].Points[1].Anchor.X != 10 {
		t.Fatalf("Read result shares memory with store")
	}
}

func TestListRoundable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(
		vector.Path{Name: "empty"},
		vector.Path{Name: "box", SubPaths: testSubs()},
		vector.Path{Name: "hollow", SubPaths: []vector.SubPath{{Closed: true}}},
	)
	got, err := ListRoundable(ctx, s)
	if err != nil {
		t.Fatalf("ListRoundable: %v", err)
	}
	if diff := cmp.Diff([]Entry{{Name: "box", Anchors: 4}}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
