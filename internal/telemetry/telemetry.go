/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry reports committed rounding runs and crash reports to an opt-in
// endpoint. Only counts and the rounding mode are sent; path names and coordinates
// never leave the process.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "shaperounder/internal/log"
	"shaperounder/internal/version"
)

const (
	EnvOptIn     = "SHR_TELEMETRY_OPT_IN"
	EnvEventsURL = "SHR_TELEMETRY_URL"
	EnvCrashURL  = "SHR_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "SHR_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "SHR_TELEMETRY_DEBUG"
)

const (
	defaultTimeout = 1500 * time.Millisecond
	queueSize      = 64
	flushPoll      = 10 * time.Millisecond
)

// EventRoundApply names the event sent for every committed rounding run.
const EventRoundApply = "round.apply"

// Config is off unless OptIn is set and the matching URL is not empty.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads Config from the SHR_TELEMETRY_* and SHR_CRASH_UPLOAD_URL variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		DebugLogging: parseBool(os.Getenv(EnvDebug)),
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMs))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// RoundApply carries the counts of one committed rounding run.
type RoundApply struct {
	Mode       string `json:"mode"`
	Store      string `json:"store"`
	Rounded    int    `json:"rounded"`
	Degenerate int    `json:"degenerate"`
	Passed     int    `json:"passed"`
}

type roundEvent struct {
	Name    string `json:"name"`
	TS      string `json:"ts"`
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	RoundApply
}

// Client posts events from a single goroutine. Crash reports are posted right away.
// A nil *Client is valid and sends nothing.
type Client struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	queue   chan []byte
	pending atomic.Int64
	stop    chan struct{}
	once    sync.Once
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:   cfg,
		log:   applog.WithComponent("telemetry"),
		http:  &http.Client{Timeout: cfg.Timeout},
		queue: make(chan []byte, queueSize),
		stop:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Enabled reports whether round events are sent.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.OptIn && c.cfg.EventsURL != ""
}

// RoundApplied queues a round.apply event. A full queue drops the event.
func (c *Client) RoundApplied(r RoundApply) {
	if !c.Enabled() {
		return
	}
	select {
	case <-c.stop:
		return
	default:
	}
	b, err := json.Marshal(roundEvent{
		Name:       EventRoundApply,
		TS:         time.Now().UTC().Format(time.RFC3339),
		Version:    version.Version,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		RoundApply: r,
	})
	if err != nil {
		return
	}
	c.pending.Add(1)
	select {
	case c.queue <- b:
	default:
		c.pending.Add(-1)
		c.debug("event queue full, dropping", slog.String("event", EventRoundApply))
	}
}

// UploadCrash posts report in the background when crash uploads are enabled.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" || len(report) == 0 {
		return
	}
	body := append([]byte(nil), report...)
	c.pending.Add(1)
	go func() {
		defer c.pending.Add(-1)
		if err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", body); err != nil {
			c.debug("crash upload failed", slog.Any("err", err))
		}
	}()
}

// Flush waits until every queued event and crash upload has been attempted or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	t := time.NewTicker(flushPoll)
	defer t.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close stops the sender. Events still queued are dropped.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}

func (c *Client) run() {
	for {
		select {
		case <-c.stop:
			for {
				select {
				case <-c.queue:
					c.pending.Add(-1)
				default:
					return
				}
			}
		case b := <-c.queue:
			if err := c.post(c.cfg.EventsURL, "application/json", b); err != nil {
				c.debug("event send failed", slog.Any("err", err))
			}
			c.pending.Add(-1)
		}
	}
}

func (c *Client) post(url, contentType string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", applog.AppName+"/"+version.Version)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return nil
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.DebugLogging {
		c.log.Debug(msg, attrs...)
	}
}

var std atomic.Pointer[Client]

// NewDefault creates a client and installs it for the package-level functions.
func NewDefault(cfg Config) *Client {
	c := New(cfg)
	if old := std.Swap(c); old != nil {
		old.Close()
	}
	return c
}

// RoundApplied reports r through the default client, if one is installed.
func RoundApplied(r RoundApply) { std.Load().RoundApplied(r) }

// UploadCrash sends report through the default client, if one is installed.
func UploadCrash(report []byte) { std.Load().UploadCrash(report) }

// Flush waits for the default client.
func Flush(ctx context.Context) { std.Load().Flush(ctx) }
