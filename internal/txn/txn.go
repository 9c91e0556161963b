/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package txn applies a rounding result to a path store without losing the source path:
// the source is snapshotted, renamed to "<base> (Original)", and the result is created as
// "<base> (Rounded)". If anything fails after the snapshot, the original is recreated from it.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	applog "shaperounder/internal/log"
	"shaperounder/internal/storage"
	"shaperounder/internal/vector"
)

var (
	ErrBackupFailure  = errors.New("backup failed")
	ErrCommitFailure  = errors.New("commit failed")
	ErrRestoreFailure = errors.New("restore failed")
)

// State is the position in the transaction lifecycle.
type State int

const (
	Idle State = iota
	BackedUp
	Committed
	RestoreAttempted
	Restored
	RestoreFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BackedUp:
		return "backed-up"
	case Committed:
		return "committed"
	case RestoreAttempted:
		return "restore-attempted"
	case Restored:
		return "restored"
	case RestoreFailed:
		return "restore-failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Journal persists snapshots outside the path store. *storage.SQLStore implements it.
type Journal interface {
	SaveSnapshot(ctx context.Context, name string, blob []byte, ts time.Time) error
	LatestSnapshot(ctx context.Context, name string) (storage.Snapshot, error)
}

// Manager runs one backup/commit/restore cycle at a time against a store.
// A Manager is not safe for concurrent use.
type Manager struct {
	store   storage.Store
	journal Journal
	now     func() time.Time
	log     *slog.Logger

	state     State
	renamedTo string // where Commit moved the source, if it got that far
}

type Option func(*Manager)

// WithJournal also records every snapshot in j.
func WithJournal(j Journal) Option { return func(m *Manager) { m.journal = j } }

// WithClock overrides the time source used for snapshots and fallback names.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(s storage.Store, opts ...Option) *Manager {
	m := &Manager{store: s, now: time.Now, log: applog.WithComponent("txn")}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) State() State { return m.state }

// Reset returns the manager to Idle so it can run another cycle.
func (m *Manager) Reset() {
	m.state = Idle
	m.renamedTo = ""
}

// Backup deep-copies p. A path without anchor points cannot be backed up; in that case
// nothing is touched and the state stays Idle.
func (m *Manager) Backup(ctx context.Context, p vector.Path) (Snapshot, error) {
	snap := Snapshot{Name: p.Name, Taken: m.now()}
	for _, sp := range p.SubPaths {
		snap.SubPaths = append(snap.SubPaths, sp.Clone())
	}
	if snap.pointCount() == 0 {
		return Snapshot{}, fmt.Errorf("%w: %q has no anchor points", ErrBackupFailure, p.Name)
	}
	if m.journal != nil {
		ctx := applog.WithPath(ctx, snap.Name)
		l := applog.WithOperation(m.log, "backup")
		if blob, err := snap.Encode(); err != nil {
			l.WarnContext(ctx, "encode snapshot failed", slog.Any("err", err))
		} else if err := m.journal.SaveSnapshot(ctx, snap.Name, blob, snap.Taken); err != nil {
			l.WarnContext(ctx, "journal snapshot failed", slog.Any("err", err))
		}
	}
	m.state = BackedUp
	m.renamedTo = ""
	return snap, nil
}

// CommitResult names the two paths a successful commit leaves behind.
type CommitResult struct {
	Original string
	Rounded  string
}

// Commit renames srcName to "<base> (Original)" and creates "<base> (Rounded)" from subs,
// each disambiguated with " (1)".." (50)" and then a timestamp. The new path is selected.
func (m *Manager) Commit(ctx context.Context, srcName string, subs []vector.SubPath) (CommitResult, error) {
	ctx = applog.WithPath(ctx, srcName)
	l := applog.WithOperation(m.log, "commit")
	if m.state != BackedUp {
		return CommitResult{}, fmt.Errorf("%w: commit requires a backup first (state %s)", ErrCommitFailure, m.state)
	}
	base := BaseName(srcName)
	now := m.now()

	origName, err := firstFree(ctx, m.store, candidates(base+" ("+SuffixOriginal+")", now))
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: name for original: %v", ErrCommitFailure, err)
	}
	if err := m.store.Rename(ctx, srcName, origName); err != nil {
		return CommitResult{}, fmt.Errorf("%w: rename %q to %q: %w", ErrCommitFailure, srcName, origName, err)
	}
	m.renamedTo = origName

	newName, err := firstFree(ctx, m.store, candidates(base+" ("+SuffixRounded+")", now))
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: name for result: %v", ErrCommitFailure, err)
	}
	if _, err := m.store.Create(ctx, newName, subs); err != nil {
		return CommitResult{}, fmt.Errorf("%w: create %q: %w", ErrCommitFailure, newName, err)
	}
	if err := m.store.Select(ctx, newName); err != nil {
		l.WarnContext(ctx, "select result failed", slog.String("name", newName), slog.Any("err", err))
	}
	m.state = Committed
	l.InfoContext(ctx, "committed", slog.String("original", origName), slog.String("rounded", newName))
	return CommitResult{Original: origName, Rounded: newName}, nil
}

// Restore replaces the (possibly renamed) source with a path rebuilt from snap and returns
// its name. The source is looked up where this manager's Commit moved it, then at
// "<base> (Original)", "<base> (Original) (1..50)" and finally srcName.
// The recreated path is named "<base>", or "<base> (Restored N)" when that is taken.
// If this manager backed up srcName but never renamed it, srcName itself is replaced.
func (m *Manager) Restore(ctx context.Context, srcName string, snap Snapshot) (name string, err error) {
	ctx = applog.WithPath(ctx, srcName)
	l := applog.WithOperation(m.log, "restore")
	// a failure between Backup and the rename leaves the source where it was
	untouched := m.state == BackedUp && m.renamedTo == ""
	m.state = RestoreAttempted
	defer func() {
		if err != nil {
			m.state = RestoreFailed
			l.ErrorContext(ctx, "restore failed", slog.Any("err", err))
			return
		}
		m.state = Restored
		l.InfoContext(ctx, "restored", slog.String("name", name))
	}()

	if snap.pointCount() == 0 {
		return "", fmt.Errorf("%w: snapshot of %q is empty", ErrRestoreFailure, srcName)
	}
	target, err := m.locate(ctx, srcName, untouched)
	if err != nil {
		return "", err
	}

	if err := m.removeWithPlaceholder(ctx, target); err != nil {
		return "", err
	}

	base := BaseName(srcName)
	name, err = firstFree(ctx, m.store, restoredCandidates(base, m.now()))
	if err != nil {
		return "", fmt.Errorf("%w: name for restored path: %v", ErrRestoreFailure, err)
	}
	if _, err := m.store.Create(ctx, name, snap.Path().SubPaths); err != nil {
		return "", fmt.Errorf("%w: create %q: %w", ErrRestoreFailure, name, err)
	}
	if err := m.store.Select(ctx, name); err != nil {
		l.WarnContext(ctx, "select restored path failed", slog.Any("err", err))
	}
	return name, nil
}

func (m *Manager) locate(ctx context.Context, srcName string, untouched bool) (string, error) {
	first := m.renamedTo
	if untouched {
		first = srcName
	}
	if first != "" {
		if ok, err := m.store.Exists(ctx, first); err == nil && ok {
			return first, nil
		}
	}
	target, ok, err := FindRenamedOriginal(ctx, m.store, srcName)
	if err != nil {
		return "", fmt.Errorf("%w: locate %q: %w", ErrRestoreFailure, srcName, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: original of %q not found", ErrRestoreFailure, srcName)
	}
	return target, nil
}

const placeholderStem = "shaperounder restore placeholder"

// removeWithPlaceholder moves the selection onto a throwaway path before removing target,
// so the removal never happens with target in focus. The placeholder is always removed.
func (m *Manager) removeWithPlaceholder(ctx context.Context, target string) (err error) {
	ph, err := firstFree(ctx, m.store, candidates(placeholderStem, m.now()))
	if err != nil {
		return fmt.Errorf("%w: placeholder name: %v", ErrRestoreFailure, err)
	}
	if _, err := m.store.Create(ctx, ph, nil); err != nil {
		return fmt.Errorf("%w: create placeholder: %w", ErrRestoreFailure, err)
	}
	defer func() {
		if rerr := m.store.Remove(ctx, ph); rerr != nil {
			applog.WithOperation(m.log, "restore").Warn("placeholder cleanup failed", slog.String("name", ph), slog.Any("err", rerr))
			if err == nil {
				err = fmt.Errorf("%w: remove placeholder %q: %w", ErrRestoreFailure, ph, rerr)
			}
		}
	}()
	if err := m.store.Select(ctx, ph); err != nil {
		return fmt.Errorf("%w: select placeholder: %w", ErrRestoreFailure, err)
	}
	if err := m.store.Remove(ctx, target); err != nil {
		return fmt.Errorf("%w: remove %q: %w", ErrRestoreFailure, target, err)
	}
	return nil
}
