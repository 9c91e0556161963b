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
	"errors"
	"fmt"
	"log/slog"

	applog "shaperounder/internal/log"
	"shaperounder/internal/rounding"
	"shaperounder/internal/storage"
)

// Outcome reports what Apply did.
type Outcome struct {
	Source   string
	Original string // set after a successful commit
	Rounded  string // set after a successful commit
	Restored string // set when a failure was rolled back
	Stats    rounding.Stats
}

// Apply rounds the stored path name and commits the result. Input problems fail with
// rounding.ErrValidation before anything is touched. Any later failure triggers Restore;
// if that fails too, both errors are returned joined.
func (m *Manager) Apply(ctx context.Context, name string, params rounding.Params, scale float64) (Outcome, error) {
	ctx = applog.WithPath(ctx, name)
	l := applog.WithOperation(m.log, "apply")
	out := Outcome{Source: name}
	m.Reset()

	p, err := m.store.Read(ctx, name)
	if err != nil {
		return out, fmt.Errorf("%w: %w", rounding.ErrValidation, err)
	}
	if !p.HasPoints() {
		return out, fmt.Errorf("%w: path %q has no anchor points", rounding.ErrValidation, name)
	}
	if err := params.Validate(); err != nil {
		return out, err
	}
	if err := rounding.ValidateScale(scale); err != nil {
		return out, err
	}

	snap, err := m.Backup(ctx, p)
	if err != nil {
		return out, err
	}

	res, applyErr := rounding.Round(p, params, scale)
	out.Stats = res.Stats
	if applyErr == nil {
		var cr CommitResult
		cr, applyErr = m.Commit(ctx, name, res.SubPaths)
		out.Original, out.Rounded = cr.Original, cr.Rounded
	}
	if applyErr == nil {
		l.InfoContext(ctx, "applied",
			slog.String("rounded", out.Rounded),
			applog.Points(res.Stats.Rounded, res.Stats.Degenerate, res.Stats.Passed),
		)
		return out, nil
	}

	l.ErrorContext(ctx, "apply failed, restoring", slog.Any("err", applyErr))
	restored, rerr := m.Restore(ctx, name, snap)
	if rerr != nil {
		return out, errors.Join(applyErr, rerr)
	}
	out.Original, out.Rounded = "", ""
	out.Restored = restored
	return out, applyErr
}

// RestoreFromJournal rebuilds name from the newest journaled snapshot.
func (m *Manager) RestoreFromJournal(ctx context.Context, name string) (string, error) {
	if m.journal == nil {
		return "", fmt.Errorf("%w: no snapshot journal configured", ErrRestoreFailure)
	}
	// snapshots are keyed by the name the path had before the commit
	entry, err := m.journal.LatestSnapshot(ctx, name)
	if errors.Is(err, storage.ErrNotFound) && BaseName(name) != name {
		entry, err = m.journal.LatestSnapshot(ctx, BaseName(name))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRestoreFailure, err)
	}
	snap, err := DecodeSnapshot(entry.Blob)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRestoreFailure, err)
	}
	m.Reset()
	return m.Restore(ctx, snap.Name, snap)
}

// DefaultTarget picks the path to round when the caller named none: the active selection
// if it is roundable, otherwise the first roundable path.
func DefaultTarget(ctx context.Context, s storage.Store) (string, error) {
	entries, err := storage.ListRoundable(ctx, s)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no path with anchor points", storage.ErrNotFound)
	}
	if active, ok, err := s.ActiveSelectionName(ctx); err == nil && ok {
		for _, e := range entries {
			if e.Name == active {
				return active, nil
			}
		}
	}
	return entries[0].Name, nil
}
