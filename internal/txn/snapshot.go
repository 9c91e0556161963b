/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package txn

import (
	"encoding/json"
	"fmt"
	"time"

	"shaperounder/internal/vector"
)

// Snapshot is a deep copy of a path taken before any mutation.
type Snapshot struct {
	Name     string
	SubPaths []vector.SubPath
	Taken    time.Time
}

// Path returns a deep copy of the snapshot as a path.
func (s Snapshot) Path() vector.Path {
	p := vector.Path{Name: s.Name, SubPaths: s.SubPaths}
	return p.Clone()
}

func (s Snapshot) pointCount() int { return vector.Path{SubPaths: s.SubPaths}.PointCount() }

type snapshotJSON struct {
	Name     string                 `json:"name"`
	Taken    time.Time              `json:"taken"`
	SubPaths []vector.SubPathRecord `json:"subpaths"`
}

// Encode serializes the snapshot for the journal.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(snapshotJSON{Name: s.Name, Taken: s.Taken, SubPaths: vector.ToRecords(s.SubPaths)})
}

// DecodeSnapshot is the inverse of Encode.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var sj snapshotJSON
	if err := json.Unmarshal(b, &sj); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	subs, err := vector.FromRecords(sj.SubPaths)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %q: %w", sj.Name, err)
	}
	return Snapshot{Name: sj.Name, SubPaths: subs, Taken: sj.Taken}, nil
}
