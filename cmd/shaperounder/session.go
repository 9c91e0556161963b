/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shaperounder/internal/backend"
	"shaperounder/internal/config"
	"shaperounder/internal/storage"
	"shaperounder/internal/txn"
)

const (
	// journalFileName holds the snapshot journal next to a JSON document.
	journalFileName = "journal.sqlite"
	// sqliteFileName is used when the sqlite storage path names a directory.
	sqliteFileName = "paths.sqlite"
)

// session is an open path store plus the journal that records its snapshots.
type session struct {
	store   storage.Store
	journal txn.Journal
	kind    string
	closers []io.Closer
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (s *session) manager() *txn.Manager {
	return txn.NewManager(s.store, txn.WithJournal(s.journal))
}

// open connects to the configured storage backend.
func (a *app) open(ctx context.Context) (*session, error) {
	sc := a.cfg.Storage
	kind := strings.ToLower(strings.TrimSpace(sc.Backend))
	l := a.log.With(slog.String("backend", kind))
	switch kind {
	case "", config.BackendFile:
		doc, err := storage.OpenOrInitDocument(sc.Path)
		if err != nil {
			return nil, err
		}
		a.crash.set(doc)
		j, err := storage.OpenSQLite(filepath.Join(doc.Root, journalFileName))
		if err != nil {
			return nil, fmt.Errorf("open snapshot journal: %w", err)
		}
		l.Debug("opened document", slog.String("root", doc.Root))
		return &session{store: doc, journal: j, kind: config.BackendFile, closers: []io.Closer{j}}, nil
	case config.BackendSQLite:
		p := sc.Path
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			p = filepath.Join(p, sqliteFileName)
		}
		s, err := storage.OpenSQLite(p)
		if err != nil {
			return nil, err
		}
		l.Debug("opened sqlite", slog.String("path", p))
		return &session{store: s, journal: s, kind: kind, closers: []io.Closer{s}}, nil
	case config.BackendPostgres:
		if sc.DSN == "" {
			return nil, fmt.Errorf("postgres backend needs storage.dsn or %s", config.EnvPGDSN)
		}
		dsn, err := config.ResolveDSN(sc.DSN, a.secrets)
		if err != nil {
			return nil, err
		}
		s, err := backend.OpenPG(ctx, dsn)
		if err != nil {
			return nil, err
		}
		l.Debug("opened postgres")
		return &session{store: s, journal: s, kind: kind, closers: []io.Closer{s}}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// withSession opens the store, runs fn and closes the store again.
func (a *app) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.log.Warn("close store failed", slog.Any("err", cerr))
		}
	}()
	return fn(s)
}

// target returns the explicit name or the default rounding target.
func target(ctx context.Context, s storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return txn.DefaultTarget(ctx, s)
}
