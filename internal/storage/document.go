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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	applog "shaperounder/internal/log"
	"shaperounder/internal/vector"
)

const (
	DocumentFileName = "paths.json"
	BackupsDirName   = "backups"

	documentVersion = 1
	// maxBackups caps the number of timestamped copies kept next to the document.
	maxBackups = 20
)

//go:embed paths.schema.json
var documentSchema []byte

type pathRecord struct {
	Name     string                 `json:"name"`
	SubPaths []vector.SubPathRecord `json:"subpaths"`
}

type document struct {
	Version int          `json:"version"`
	Active  string       `json:"active,omitempty"`
	Paths   []pathRecord `json:"paths"`
}

func (d *document) find(name string) int {
	for i, p := range d.Paths {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// DocumentStore persists paths in a single JSON document (<root>/paths.json).
// Every mutation rewrites the document transactionally and keeps a timestamped
// backup of the previous version under <root>/backups.
type DocumentStore struct {
	Root         string
	DocumentPath string

	mu  sync.Mutex
	doc document
}

// InitDocument creates root (if needed) and writes an empty document.
func InitDocument(root string) (*DocumentStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create document root: %w", err)
	}
	s := &DocumentStore{
		Root:         root,
		DocumentPath: filepath.Join(root, DocumentFileName),
		doc:          document{Version: documentVersion, Paths: []pathRecord{}},
	}
	if err := s.save(s.doc); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenDocument loads an existing document from root. If the current document cannot be
// read, parsed or validated, the latest backup is used instead.
func OpenDocument(root string) (*DocumentStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "document_open").With(slog.String("root", root))
	dpath := filepath.Join(root, DocumentFileName)
	s := &DocumentStore{Root: root, DocumentPath: dpath}
	b, err := os.ReadFile(dpath)
	if err == nil {
		var doc document
		if doc, err = decodeDocument(b); err == nil {
			s.doc = doc
			return s, nil
		}
	}
	l.Warn("document unreadable, trying latest backup", slog.Any("err", err))
	doc, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	s.doc = *doc
	return s, nil
}

// OpenOrInitDocument opens the document under root, creating it when neither the document
// nor any backup exists yet.
func OpenOrInitDocument(root string) (*DocumentStore, error) {
	if _, err := os.Stat(filepath.Join(root, DocumentFileName)); errors.Is(err, os.ErrNotExist) {
		if _, berr := latestBackup(root); berr != nil {
			return InitDocument(root)
		}
	}
	return OpenDocument(root)
}

// ValidateDocument checks raw document bytes against the embedded JSON schema.
func ValidateDocument(b []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(documentSchema), gojsonschema.NewBytesLoader(b))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("document does not conform to schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func decodeDocument(b []byte) (document, error) {
	if err := ValidateDocument(b); err != nil {
		return document{}, err
	}
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return document{}, fmt.Errorf("parse document: %w", err)
	}
	if d.Version > documentVersion {
		return document{}, fmt.Errorf("document version %d is newer than supported %d", d.Version, documentVersion)
	}
	return d, nil
}

// mutate applies fn to a copy of the document and persists it; the in-memory state only
// changes when the write succeeded.
func (s *DocumentStore) mutate(fn func(d *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc
	next.Paths = append([]pathRecord(nil), s.doc.Paths...)
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *DocumentStore) Read(_ context.Context, name string) (vector.Path, error) {
	s.mu.Lock()
	i := s.doc.find(name)
	var recs []vector.SubPathRecord
	if i >= 0 {
		recs = s.doc.Paths[i].SubPaths
	}
	s.mu.Unlock()
	if i < 0 {
		return vector.Path{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	subs, err := vector.FromRecords(recs)
	if err != nil {
		return vector.Path{}, fmt.Errorf("read %q: %w", name, err)
	}
	return vector.Path{Name: name, SubPaths: subs}, nil
}

func (s *DocumentStore) Create(_ context.Context, name string, subs []vector.SubPath) (vector.Path, error) {
	if err := checkName(name); err != nil {
		return vector.Path{}, err
	}
	err := s.mutate(func(d *document) error {
		if d.find(name) >= 0 {
			return fmt.Errorf("%w: %q", ErrNameConflict, name)
		}
		d.Paths = append(d.Paths, pathRecord{Name: name, SubPaths: vector.ToRecords(subs)})
		return nil
	})
	if err != nil {
		return vector.Path{}, err
	}
	return vector.Path{Name: name, SubPaths: cloneSubs(subs)}, nil
}

func (s *DocumentStore) Rename(_ context.Context, oldName, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	return s.mutate(func(d *document) error {
		i := d.find(oldName)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, oldName)
		}
		if oldName == newName {
			return nil
		}
		if d.find(newName) >= 0 {
			return fmt.Errorf("%w: %q", ErrNameConflict, newName)
		}
		d.Paths[i].Name = newName
		if d.Active == oldName {
			d.Active = newName
		}
		return nil
	})
}

func (s *DocumentStore) Remove(_ context.Context, name string) error {
	return s.mutate(func(d *document) error {
		i := d.find(name)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		d.Paths = append(d.Paths[:i], d.Paths[i+1:]...)
		if d.Active == name {
			d.Active = ""
		}
		return nil
	})
}

func (s *DocumentStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.find(name) >= 0, nil
}

func (s *DocumentStore) Select(_ context.Context, name string) error {
	return s.mutate(func(d *document) error {
		if name != "" && d.find(name) < 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		d.Active = name
		return nil
	})
}

func (s *DocumentStore) ActiveSelectionName(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Active, s.doc.Active != "", nil
}

func (s *DocumentStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.doc.Paths))
	for _, p := range s.doc.Paths {
		out = append(out, p.Name)
	}
	return out, nil
}

// save writes d with transactional semantics and a timestamped backup of the previous
// document (if present).
func (s *DocumentStore) save(d document) error {
	if s.Root == "" || s.DocumentPath == "" {
		return errors.New("invalid DocumentStore: missing paths")
	}
	if d.Paths == nil {
		d.Paths = []pathRecord{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(s.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(s.DocumentPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", DocumentFileName, stamp))
		if cerr := copyFile(s.DocumentPath, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
		pruneBackups(bdir)
	}

	// Write to a temp file in the same directory, then rename over the target.
	dir := filepath.Dir(s.DocumentPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", DocumentFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(s.DocumentPath); err == nil {
		_ = os.Remove(s.DocumentPath)
	}
	if rerr := os.Rename(temp, s.DocumentPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func backupCandidates(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func latestBackup(root string) (string, error) {
	c, err := backupCandidates(root)
	if err != nil {
		return "", err
	}
	if len(c) == 0 {
		return "", errors.New("no backups found")
	}
	return c[len(c)-1], nil
}

func pruneBackups(bdir string) {
	c, err := backupCandidates(filepath.Dir(bdir))
	if err != nil || len(c) <= maxBackups {
		return
	}
	for _, p := range c[:len(c)-maxBackups] {
		_ = os.Remove(p)
	}
}

// openFromLatestBackup tries to open the latest timestamped backup.
func openFromLatestBackup(root string) (*document, error) {
	latest, err := latestBackup(root)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	d, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &d, nil
}

// ReportDir is the directory crash reports for this document go to.
func (s *DocumentStore) ReportDir() string { return filepath.Join(s.Root, BackupsDirName) }

// CrashSnapshot writes the in-memory document next to the backups without touching the
// document itself. It is meant for panic handlers, so it does not take the lock.
func (s *DocumentStore) CrashSnapshot() (string, error) {
	d := s.doc
	if d.Paths == nil {
		d.Paths = []pathRecord{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	stamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(s.ReportDir(), fmt.Sprintf("%s.crash-%s.json", DocumentFileName, stamp))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := writeFileSync(path, data); err != nil {
		return "", err
	}
	return path, nil
}
