/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend exposes a path store over HTTP and provides the PostgreSQL-backed store.
package backend

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"shaperounder/internal/history"
	applog "shaperounder/internal/log"
	"shaperounder/internal/rounding"
	"shaperounder/internal/storage"
	"shaperounder/internal/telemetry"
	"shaperounder/internal/txn"
	"shaperounder/internal/vector"
	"shaperounder/internal/version"
)

// Config holds server configuration.
type Config struct {
	Addr       string // http bind address, e.g., ":8080"
	AuthSecret string
	Params     rounding.Params // defaults for round requests
	Scale      float64
	StoreKind  string // reported in telemetry only

	// NoTokenIssue turns off POST /api/auth/token; tokens must then be signed out of band
	// with the shared secret.
	NoTokenIssue bool
}

const devSecret = "dev-secret-change-me"

// memoryJournalDepth caps the in-memory snapshots kept per path.
const memoryJournalDepth = 20

// Server serves one path store. Round and restore requests run one at a time because a
// txn.Manager owns the store for the duration of a transaction.
type Server struct {
	cfg     Config
	store   storage.Store
	journal txn.Journal
	log     *slog.Logger

	txMu sync.Mutex
}

// NewServer prepares a server over s. journal may be nil.
func NewServer(cfg Config, s storage.Store, journal txn.Journal) *Server {
	l := applog.WithComponent("backend")
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = devSecret
		l.Warn("auth secret not set; using insecure dev secret")
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if journal == nil {
		l.Info("no snapshot journal configured; keeping snapshots in memory")
		journal = history.NewJournal(history.Config{MaxPerPath: memoryJournalDepth})
	}
	return &Server{cfg: cfg, store: s, journal: journal, log: l}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})
	// Anyone who can reach the listener may mint a token here, so the token only proves
	// network reachability. Deployments that expose the port set NoTokenIssue.
	if !s.cfg.NoTokenIssue {
		mux.HandleFunc("POST /api/auth/token", s.handleToken)
	}
	mux.HandleFunc("GET /api/paths", withAuth(s.cfg.AuthSecret, s.handleList))
	mux.HandleFunc("GET /api/paths/{name}", withAuth(s.cfg.AuthSecret, s.handleGet))
	mux.HandleFunc("POST /api/paths/{name}/round", withAuth(s.cfg.AuthSecret, s.handleRound))
	mux.HandleFunc("POST /api/paths/{name}/restore", withAuth(s.cfg.AuthSecret, s.handleRestore))
	return s.withRequestID(mux)
}

// withRequestID tags every request with an id, taken from X-Request-ID when the caller sent
// one. The id is echoed back and attached to log records made with the request context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := applog.WithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.log.DebugContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)),
		)
	})
}

func newRequestID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.cfg.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	db, ok := s.store.(interface{ DB() *sql.DB })
	if ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.DB().PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// POST /api/auth/token → { token, expires_at }
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.cfg.AuthSecret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ string) {
	names, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	roundable, err := storage.ListRoundable(r.Context(), s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ok := map[string]int{}
	for _, e := range roundable {
		ok[e.Name] = e.Anchors
	}
	resp := PathList{Paths: []PathSummary{}}
	if active, has, err := s.store.ActiveSelectionName(r.Context()); err == nil && has {
		resp.Active = active
	}
	for _, n := range names {
		anchors, isRoundable := ok[n]
		resp.Paths = append(resp.Paths, PathSummary{Name: n, Anchors: anchors, Roundable: isRoundable})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ string) {
	p, err := s.store.Read(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, PathDoc{Name: p.Name, SubPaths: vector.ToRecords(p.SubPaths)})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request, sub string) {
	name := r.PathValue("name")
	ctx := applog.WithPath(r.Context(), name)
	var req RoundRequest
	if b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20)); len(b) > 0 {
		if err := json.Unmarshal(b, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
	}
	params, scale, err := req.Resolve(s.cfg.Params, s.cfg.Scale)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	out, err := txn.NewManager(s.store, txn.WithJournal(s.journal)).Apply(ctx, name, params, scale)
	resp := RoundResponse{
		Source:   out.Source,
		Original: out.Original,
		Rounded:  out.Rounded,
		Restored: out.Restored,
		Stats:    RoundStats{Rounded: out.Stats.Rounded, Degenerate: out.Stats.Degenerate, Passed: out.Stats.Passed},
	}
	if err != nil {
		resp.Error = err.Error()
		s.log.WarnContext(ctx, "round failed", slog.String("subject", sub), slog.Any("err", err))
		writeJSON(w, statusFor(err), resp)
		return
	}
	telemetry.RoundApplied(telemetry.RoundApply{
		Mode:       params.Mode.String(),
		Store:      s.cfg.StoreKind,
		Rounded:    out.Stats.Rounded,
		Degenerate: out.Stats.Degenerate,
		Passed:     out.Stats.Passed,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request, _ string) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	restored, err := txn.NewManager(s.store, txn.WithJournal(s.journal)).RestoreFromJournal(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, RoundResponse{Source: r.PathValue("name"), Restored: restored})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rounding.ErrValidation), errors.Is(err, vector.ErrIncompleteRecord):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNameConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
