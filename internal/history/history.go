/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps path snapshots in memory. It is the snapshot journal of a
// server that runs without a persistent one, so snapshots are lost on restart.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shaperounder/internal/storage"
)

// Config bounds the memory a Journal may hold.
type Config struct {
	// MaxBytes is a soft cap over all blobs; the oldest snapshots across all paths are
	// dropped first. Zero means 16 MiB.
	MaxBytes int
	// MaxPerPath limits the snapshots kept per path (0 means unlimited).
	MaxPerPath int
}

// Journal holds the snapshots of each path, oldest first. It is safe for concurrent use.
type Journal struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string][]storage.Snapshot
	bytes   int
}

func NewJournal(cfg Config) *Journal {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024
	}
	return &Journal{cfg: cfg, entries: make(map[string][]storage.Snapshot)}
}

// SaveSnapshot records a copy of blob as the newest snapshot of name.
func (j *Journal) SaveSnapshot(_ context.Context, name string, blob []byte, ts time.Time) error {
	s := storage.Snapshot{TS: ts, Blob: append([]byte(nil), blob...)}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[name] = append(j.entries[name], s)
	j.bytes += len(s.Blob)
	j.trimLocked(name)
	return nil
}

// LatestSnapshot returns the newest snapshot of name.
func (j *Journal) LatestSnapshot(_ context.Context, name string) (storage.Snapshot, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	list := j.entries[name]
	if len(list) == 0 {
		return storage.Snapshot{}, fmt.Errorf("%w: no snapshot for %q", storage.ErrNotFound, name)
	}
	s := list[len(list)-1]
	s.Blob = append([]byte(nil), s.Blob...)
	return s, nil
}

func (j *Journal) trimLocked(name string) {
	if list := j.entries[name]; j.cfg.MaxPerPath > 0 && len(list) > j.cfg.MaxPerPath {
		drop := len(list) - j.cfg.MaxPerPath
		for _, s := range list[:drop] {
			j.bytes -= len(s.Blob)
		}
		j.entries[name] = append([]storage.Snapshot(nil), list[drop:]...)
	}
	for j.bytes > j.cfg.MaxBytes {
		oldest, found := "", false
		var oldestTS time.Time
		for n, list := range j.entries {
			if !found || list[0].TS.Before(oldestTS) {
				oldest, oldestTS, found = n, list[0].TS, true
			}
		}
		if !found {
			return
		}
		list := j.entries[oldest]
		j.bytes -= len(list[0].Blob)
		if len(list) == 1 {
			delete(j.entries, oldest)
		} else {
			j.entries[oldest] = list[1:]
		}
	}
}
