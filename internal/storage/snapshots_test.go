/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotsLifecycle(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx, "box"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty journal: err = %v", err)
	}

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.SaveSnapshot(ctx, "box", []byte{byte('a' + i)}, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	if err := s.SaveSnapshot(ctx, "other", []byte("x"), base); err != nil {
		t.Fatalf("SaveSnapshot other: %v", err)
	}

	latest, err := s.LatestSnapshot(ctx, "box")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(latest.Blob) != "e" || !latest.TS.Equal(base.Add(4*time.Second)) {
		t.Fatalf("latest = %q @ %v", latest.Blob, latest.TS)
	}

	list, err := s.ListSnapshots(ctx, "box", 3)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 3 || string(list[0].Blob) != "e" || string(list[2].Blob) != "c" {
		t.Fatalf("list = %+v", list)
	}

	n, err := s.PruneSnapshots(ctx, "box", 2)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if n != 3 {
		t.Fatalf("pruned %d, want 3", n)
	}
	rest, _ := s.ListSnapshots(ctx, "box", 0)
	if len(rest) != 2 {
		t.Fatalf("after prune %d snapshots, want 2", len(rest))
	}
	if other, _ := s.ListSnapshots(ctx, "other", 0); len(other) != 1 {
		t.Fatalf("prune touched another path: %d", len(other))
	}
}
