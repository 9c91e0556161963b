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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"shaperounder/internal/vector"
)

// Dialect selects the placeholder syntax of the underlying database.
type Dialect int

const (
	SQLite   Dialect = iota // ?
	Postgres                // $1, $2, ...
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders for the dialect. Queries in this file never contain
// literal question marks.
func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const activeKey = "active_path"

// SQLStore keeps paths in a SQL database with the tables
//
//	paths(name TEXT PRIMARY KEY, position BIGINT, data TEXT)
//	meta(key TEXT PRIMARY KEY, value TEXT)
//
// where data holds the JSON-encoded subpath records. The schema is created by OpenSQLite
// or by the PostgreSQL migrations in internal/backend.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore { return &SQLStore{db: db, dialect: d} }

// DB exposes the underlying handle, e.g. for closing.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) q(query string) string { return s.dialect.rebind(query) }

func (s *SQLStore) Read(ctx context.Context, name string) (vector.Path, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data FROM paths WHERE name = ?`), name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.Path{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return vector.Path{}, fmt.Errorf("read %q: %w", name, err)
	}
	var recs []vector.SubPathRecord
	if err := json.Unmarshal([]byte(data), &recs); err != nil {
		return vector.Path{}, fmt.Errorf("decode %q: %w", name, err)
	}
	subs, err := vector.FromRecords(recs)
	if err != nil {
		return vector.Path{}, fmt.Errorf("read %q: %w", name, err)
	}
	return vector.Path{Name: name, SubPaths: subs}, nil
}

func exists(ctx context.Context, tx *sql.Tx, d Dialect, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, d.rebind(`SELECT 1 FROM paths WHERE name = ?`), name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, name string, subs []vector.SubPath) (vector.Path, error) {
	if err := checkName(name); err != nil {
		return vector.Path{}, err
	}
	data, err := json.Marshal(vector.ToRecords(subs))
	if err != nil {
		return vector.Path{}, fmt.Errorf("encode %q: %w", name, err)
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, s.dialect, name)
		if err != nil {
			return fmt.Errorf("check %q: %w", name, err)
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrNameConflict, name)
		}
		var pos int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM paths`).Scan(&pos); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO paths(name, position, data) VALUES(?, ?, ?)`), name, pos+1, string(data)); err != nil {
			return fmt.Errorf("insert %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return vector.Path{}, err
	}
	return vector.Path{Name: name, SubPaths: cloneSubs(subs)}, nil
}

func (s *SQLStore) Rename(ctx context.Context, oldName, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, s.dialect, oldName)
		if err != nil {
			return fmt.Errorf("check %q: %w", oldName, err)
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrNotFound, oldName)
		}
		if oldName == newName {
			return nil
		}
		taken, err := exists(ctx, tx, s.dialect, newName)
		if err != nil {
			return fmt.Errorf("check %q: %w", newName, err)
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrNameConflict, newName)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE paths SET name = ? WHERE name = ?`), newName, oldName); err != nil {
			return fmt.Errorf("rename %q: %w", oldName, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE meta SET value = ? WHERE key = ? AND value = ?`), newName, activeKey, oldName); err != nil {
			return fmt.Errorf("move selection: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Remove(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM paths WHERE name = ?`), name)
		if err != nil {
			return fmt.Errorf("remove %q: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM meta WHERE key = ? AND value = ?`), activeKey, name); err != nil {
			return fmt.Errorf("clear selection: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM paths WHERE name = ?`), name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %q: %w", name, err)
	}
	return true, nil
}

func (s *SQLStore) Select(ctx context.Context, name string) error {
	if name == "" {
		if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM meta WHERE key = ?`), activeKey); err != nil {
			return fmt.Errorf("clear selection: %w", err)
		}
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, s.dialect, name)
		if err != nil {
			return fmt.Errorf("check %q: %w", name, err)
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`), activeKey, name)
		if err != nil {
			return fmt.Errorf("select %q: %w", name, err)
		}
		return nil
	})
}

func (s *SQLStore) ActiveSelectionName(ctx context.Context) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM meta WHERE key = ?`), activeKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read selection: %w", err)
	}
	return name, name != "", nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM paths ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
