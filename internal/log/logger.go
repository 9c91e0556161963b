/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process logger. Records go to the console and, when a file is
// configured, to a rotating JSON log. Records logged with a context carry the request id
// and the name of the path being rounded.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"shaperounder/internal/version"
)

const AppName = "shaperounder"

const (
	EnvLevel  = "SHR_LOG_LEVEL"
	EnvFormat = "SHR_LOG_FORMAT"
	EnvSource = "SHR_LOG_SOURCE"
	EnvFile   = "SHR_LOG_FILE"
)

// rotation of the JSON log file
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// Options controls Init. Zero values give info level text output on stderr.
type Options struct {
	Level     string // debug | info | warn | error
	Format    string // text (alias console) | json
	AddSource bool
	File      string    // rotated JSON log, optional
	Output    io.Writer // console sink; nil means stderr
}

// FromEnv reads Options from SHR_LOG_*.
func FromEnv() Options {
	return Options{
		Level:     os.Getenv(EnvLevel),
		Format:    os.Getenv(EnvFormat),
		AddSource: strings.EqualFold(strings.TrimSpace(os.Getenv(EnvSource)), "true"),
		File:      strings.TrimSpace(os.Getenv(EnvFile)),
	}
}

var current atomic.Pointer[slog.Logger]

// Init builds the process logger, installs it as slog's default and returns it.
func Init(opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), AddSource: opts.AddSource}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		console = slog.NewJSONHandler(out, ho)
	default:
		console = slog.NewTextHandler(out, ho)
	}
	h := console
	if opts.File != "" {
		w := &lj.Logger{Filename: opts.File, MaxSize: fileMaxSizeMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxAgeDays, Compress: true}
		h = fanout{console, slog.NewJSONHandler(w, ho)}
	}
	l := slog.New(contextHandler{h}).With(
		slog.String("app", AppName),
		slog.String("ver", version.Version),
	)
	current.Store(l)
	slog.SetDefault(l)
	return l
}

func logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return Init(FromEnv())
}

// WithComponent returns the process logger tagged with component=name.
func WithComponent(name string) *slog.Logger { return logger().With(slog.String("component", name)) }

// WithOperation tags l with op=op.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// Points groups the outcome counts of a rounding run as points.rounded, points.degenerate
// and points.passed.
func Points(rounded, degenerate, passed int) slog.Attr {
	return slog.Group("points",
		slog.Int("rounded", rounded),
		slog.Int("degenerate", degenerate),
		slog.Int("passed", passed),
	)
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var lv slog.Level
	if s == "" || lv.UnmarshalText([]byte(s)) != nil {
		return slog.LevelInfo
	}
	return lv
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	pathKey
)

// WithRequestID returns a context whose log records carry req_id=id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) (string, bool) { return ctxString(ctx, requestIDKey) }

// WithPath returns a context whose log records carry path=name.
func WithPath(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pathKey, name)
}

// PathName returns the name stored by WithPath.
func PathName(ctx context.Context) (string, bool) { return ctxString(ctx, pathKey) }

func ctxString(ctx context.Context, k ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(k).(string)
	return v, ok && v != ""
}

// contextHandler copies the request id and path name from the context onto each record.
type contextHandler struct{ next slog.Handler }

func (h contextHandler) Enabled(ctx context.Context, l slog.Level) bool { return h.next.Enabled(ctx, l) }

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	id, hasID := RequestID(ctx)
	name, hasPath := PathName(ctx)
	if hasID || hasPath {
		r = r.Clone()
		if hasID {
			r.AddAttrs(slog.String("req_id", id))
		}
		if hasPath {
			r.AddAttrs(slog.String("path", name))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return contextHandler{h.next.WithAttrs(as)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.next.WithGroup(name)}
}

// fanout passes each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
