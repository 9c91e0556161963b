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
	"fmt"
	"strings"

	"shaperounder/internal/vector"
)

var (
	ErrNotFound     = errors.New("path not found")
	ErrNameConflict = errors.New("path name already in use")
)

// Store is a named collection of paths with one optional active selection.
// Names are unique. Implementations return ErrNotFound and ErrNameConflict (wrapped) so
// callers can branch with errors.Is.
type Store interface {
	Read(ctx context.Context, name string) (vector.Path, error)
	Create(ctx context.Context, name string, subs []vector.SubPath) (vector.Path, error)
	Rename(ctx context.Context, oldName, newName string) error
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Select marks name as the active path. An empty name clears the selection.
	Select(ctx context.Context, name string) error
	ActiveSelectionName(ctx context.Context) (string, bool, error)
	// List returns all names in creation order.
	List(ctx context.Context) ([]string, error)
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("path name is required")
	}
	return nil
}

// Entry describes a path offered for rounding.
type Entry struct {
	Name    string
	Anchors int
}

// ListRoundable lists the paths worth offering for rounding: paths without anchor points are
// skipped, and a path whose name and anchor count both match an earlier one is listed once.
// Paths that fail to load are skipped as well; the error of the first such path is returned
// alongside the result only when nothing could be listed.
func ListRoundable(ctx context.Context, s Store) ([]Entry, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var (
		out      []Entry
		firstErr error
	)
	for _, name := range names {
		p, err := s.Read(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n := p.PointCount()
		if n == 0 {
			continue
		}
		sig := fmt.Sprintf("%s::%d", name, n)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, Entry{Name: name, Anchors: n})
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
