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
	"fmt"
	"sync"

	"shaperounder/internal/vector"
)

// MemoryStore keeps paths in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	paths  map[string][]vector.SubPath
	order  []string
	active string
}

// NewMemoryStore returns a store pre-populated with paths, in the given order.
func NewMemoryStore(paths ...vector.Path) *MemoryStore {
	m := &MemoryStore{paths: map[string][]vector.SubPath{}}
	for _, p := range paths {
		if _, dup := m.paths[p.Name]; dup {
			continue
		}
		m.paths[p.Name] = cloneSubs(p.SubPaths)
		m.order = append(m.order, p.Name)
	}
	return m
}

func cloneSubs(subs []vector.SubPath) []vector.SubPath {
	out := make([]vector.SubPath, len(subs))
	for i, sp := range subs {
		out[i] = sp.Clone()
	}
	return out
}

func (m *MemoryStore) Read(_ context.Context, name string) (vector.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.paths[name]
	if !ok {
		return vector.Path{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return vector.Path{Name: name, SubPaths: cloneSubs(subs)}, nil
}

func (m *MemoryStore) Create(_ context.Context, name string, subs []vector.SubPath) (vector.Path, error) {
	if err := checkName(name); err != nil {
		return vector.Path{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paths[name]; ok {
		return vector.Path{}, fmt.Errorf("%w: %q", ErrNameConflict, name)
	}
	m.paths[name] = cloneSubs(subs)
	m.order = append(m.order, name)
	return vector.Path{Name: name, SubPaths: cloneSubs(subs)}, nil
}

func (m *MemoryStore) Rename(_ context.Context, oldName, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.paths[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, taken := m.paths[newName]; taken {
		return fmt.Errorf("%w: %q", ErrNameConflict, newName)
	}
	delete(m.paths, oldName)
	m.paths[newName] = subs
	for i, n := range m.order {
		if n == oldName {
			m.order[i] = newName
		}
	}
	if m.active == oldName {
		m.active = newName
	}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paths[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(m.paths, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == name {
		m.active = ""
	}
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.paths[name]
	return ok, nil
}

func (m *MemoryStore) Select(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		if _, ok := m.paths[name]; !ok {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
	}
	m.active = name
	return nil
}

func (m *MemoryStore) ActiveSelectionName(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != "", nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}
