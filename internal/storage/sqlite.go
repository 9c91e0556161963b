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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "shaperounder/internal/log"
	"shaperounder/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the SQLite schema of the path database.
// Bump this when you perform breaking schema changes and add migrations.
const schemaVersion = 3

// ErrCorrupt is returned when an existing database fails its integrity check.
var ErrCorrupt = errors.New("path database corrupt")

// OpenSQLite opens (creating if needed) the path database at path, enables WAL mode,
// ensures the meta/version tables and runs pending migrations.
// A corrupt database is copied into a sibling backups directory and reported as ErrCorrupt.
func OpenSQLite(path string) (*SQLStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create db dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fail := func(err error) (*SQLStore, error) {
		_ = db.Close()
		if errors.Is(err, ErrCorrupt) {
			backupSQLiteFile(path)
		}
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		l.Error("enable WAL failed", slog.Any("err", err))
		return fail(fmt.Errorf("%w: enable WAL: %v", ErrCorrupt, err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return fail(err)
	}
	if err := runMigrations(ctx, db); err != nil {
		l.Error("run migrations failed", slog.Any("err", err))
		return fail(err)
	}
	if err := checkSQLite(ctx, db); err != nil {
		l.Error("integrity check failed", slog.Any("err", err))
		return fail(err)
	}

	l.Info("path database ready")
	return NewSQLStore(db, SQLite), nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: create table: %v", ErrCorrupt, err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh database: start at 0 so every migration runs
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// migrations[i] brings the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS paths (
			name       TEXT PRIMARY KEY,
			position   INTEGER NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_paths_position ON paths(position);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			path_name TEXT NOT NULL,
			ts        TEXT NOT NULL,
			data      BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_path_ts ON snapshots(path_name, ts);`,
	},
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for ; cur < schemaVersion && cur < len(migrations); cur++ {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
	}
	return nil
}

func checkSQLite(ctx context.Context, db *sql.DB) error {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("%w: quick_check: %v", ErrCorrupt, err)
	}
	if !strings.Contains(strings.ToLower(chk), "ok") {
		return fmt.Errorf("%w: quick_check: %s", ErrCorrupt, chk)
	}
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM paths LIMIT 1;`); err != nil {
		return fmt.Errorf("%w: check paths: %v", ErrCorrupt, err)
	}
	return nil
}

// backupSQLiteFile copies the database file into a timestamped backup next to it.
func backupSQLiteFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
