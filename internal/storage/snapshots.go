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
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The snapshot journal keeps serialized pre-rounding backups so a path can be restored
// after the process died between commit and restore.

// language=SQL
const insertSnapshotSQL = `INSERT INTO snapshots(path_name, ts, data) VALUES (?, ?, ?)`

// language=SQL
const selectLatestSnapshotSQL = `SELECT ts, data FROM snapshots WHERE path_name = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
const listSnapshotsSQL = `SELECT ts, data FROM snapshots WHERE path_name = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE path_name = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE path_name = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// tsLayout is fixed-width so that text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot is one journal entry.
type Snapshot struct {
	TS   time.Time
	Blob []byte
}

// SaveSnapshot appends a snapshot blob for the named path.
func (s *SQLStore) SaveSnapshot(ctx context.Context, name string, blob []byte, ts time.Time) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q(insertSnapshotSQL), name, ts.UTC().Format(tsLayout), blob); err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for name, or ErrNotFound.
func (s *SQLStore) LatestSnapshot(ctx context.Context, name string) (Snapshot, error) {
	var tsStr string
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.q(selectLatestSnapshotSQL), name).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: no snapshot for %q", ErrNotFound, name)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %q: %w", name, err)
	}
	ts, _ := time.Parse(tsLayout, tsStr) // keep the blob even if ts is unreadable
	return Snapshot{TS: ts, Blob: blob}, nil
}

// ListSnapshots returns up to limit most recent snapshots for name.
func (s *SQLStore) ListSnapshots(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(listSnapshotsSQL), name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr string
		var blob []byte
		if err := rows.Scan(&tsStr, &blob); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(tsLayout, tsStr)
		out = append(out, Snapshot{TS: ts, Blob: blob})
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots for name and deletes older ones.
func (s *SQLStore) PruneSnapshots(ctx context.Context, name string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, s.q(pruneOldSnapshotsSQL), name, name, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
