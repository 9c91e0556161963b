/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/rounding"
	"shaperounder/internal/storage"
	"shaperounder/internal/txn"
	"shaperounder/internal/vector"
)

func square(name string) vector.Path {
	return vector.Path{Name: name, SubPaths: []vector.SubPath{{
		Closed: true,
		Points: []vector.AnchorPoint{
			vector.CornerAt(vec.Vec2{X: 0, Y: 0}),
			vector.CornerAt(vec.Vec2{X: 100, Y: 0}),
			vector.CornerAt(vec.Vec2{X: 100, Y: 100}),
			vector.CornerAt(vec.Vec2{X: 0, Y: 100}),
		},
	}}}
}

func newTestServer(t *testing.T, s storage.Store, j txn.Journal) (*httptest.Server, *Client) {
	t.Helper()
	srv := NewServer(Config{AuthSecret: "test-secret", Params: rounding.DefaultParams(), Scale: 1}, s, j)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	c := NewClient(ts.URL+"/", "")
	if _, err := c.RequestToken(context.Background(), "tester"); err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	return ts, c
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := newTestServer(t, storage.NewMemoryStore(), nil)
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready", "/version": "shaperounder"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), want) {
			t.Fatalf("GET %s = %d %q", path, resp.StatusCode, b)
		}
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts, _ := newTestServer(t, storage.NewMemoryStore(), nil)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc123" {
		t.Fatalf("request id = %q", got)
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); len(got) != 16 {
		t.Fatalf("generated request id = %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, storage.NewMemoryStore(square("a")), nil)
	_, err := NewClient(ts.URL, "").ListPaths(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	_, err = NewClient(ts.URL, "garbage.token").ListPaths(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("bad token: err = %v, want 401", err)
	}
}

func TestTokenIssueDisabled(t *testing.T) {
	srv := NewServer(Config{AuthSecret: "test-secret", Params: rounding.DefaultParams(), Scale: 1, NoTokenIssue: true},
		storage.NewMemoryStore(square("a")), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := NewClient(ts.URL, "").RequestToken(context.Background(), "anyone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("RequestToken: err = %v, want 404", err)
	}
	tok, err := signToken("test-secret", "ops", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	list, err := NewClient(ts.URL, tok).ListPaths(context.Background())
	if err != nil || len(list.Paths) != 1 {
		t.Fatalf("ListPaths with a pre-shared token = %+v, %v", list, err)
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	now := time.Now()
	tok, err := signToken("s", "alice", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if sub, err := verifyToken("s", tok, now); err != nil || sub != "alice" {
		t.Fatalf("verify = %q, %v", sub, err)
	}
	if _, err := verifyToken("s", tok, now.Add(2*time.Minute)); err == nil {
		t.Fatalf("expired token accepted")
	}
	if _, err := verifyToken("other", tok, now); err == nil {
		t.Fatalf("token accepted under a different secret")
	}
}

func TestRoundOverHTTP(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(vector.Path{Name: "empty"}, square("box"))
	_, c := newTestServer(t, s, nil)

	list, err := c.ListPaths(ctx)
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(list.Paths) != 2 || list.Paths[0].Roundable || !list.Paths[1].Roundable || list.Paths[1].Anchors != 4 {
		t.Fatalf("list = %+v", list)
	}

	p, err := c.GetPath(ctx, "box")
	if err != nil || p.PointCount() != 4 {
		t.Fatalf("GetPath = %+v, %v", p, err)
	}

	radius := 10.0
	resp, err := c.Round(ctx, "box", RoundRequest{Radius: &radius})
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if resp.Rounded != "box (Rounded)" || resp.Original != "box (Original)" || resp.Stats.Rounded != 4 {
		t.Fatalf("resp = %+v", resp)
	}
	rounded, err := c.GetPath(ctx, "box (Rounded)")
	if err != nil || rounded.PointCount() != 8 {
		t.Fatalf("rounded = %+v, %v", rounded, err)
	}
	list, _ = c.ListPaths(ctx)
	if list.Active != "box (Rounded)" {
		t.Fatalf("active = %q", list.Active)
	}
}

func TestRoundErrors(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t, storage.NewMemoryStore(square("box")), nil)
	var apiErr *APIError

	bad := -1.0
	if _, err := c.Round(ctx, "box", RoundRequest{Radius: &bad}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("negative radius: err = %v", err)
	}
	if _, err := c.Round(ctx, "box", RoundRequest{EditMode: "sideways"}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("bad mode: err = %v", err)
	}
	if _, err := c.Round(ctx, "nope", RoundRequest{}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("missing path: err = %v", err)
	}
	if _, err := c.Restore(ctx, "box"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("restore without snapshot: err = %v", err)
	}
}

func TestRestoreOverHTTP(t *testing.T) {
	ctx := context.Background()
	j, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer j.Close()
	s := storage.NewMemoryStore(square("box"))
	_, c := newTestServer(t, s, j)

	if _, err := c.Round(ctx, "box", RoundRequest{}); err != nil {
		t.Fatalf("Round: %v", err)
	}
	resp, err := c.Restore(ctx, "box")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if resp.Restored != "box" {
		t.Fatalf("restored = %q", resp.Restored)
	}
	p, _ := c.GetPath(ctx, "box")
	if p.PointCount() != 4 {
		t.Fatalf("restored path has %d points", p.PointCount())
	}
}

func TestRestoreFromMemoryJournal(t *testing.T) {
	ctx := context.Background()
	_, c := newTestServer(t, storage.NewMemoryStore(square("box")), nil)
	round, err := c.Round(ctx, "box", RoundRequest{})
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	resp, err := c.Restore(ctx, round.Rounded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if resp.Restored != "box" {
		t.Fatalf("restored = %q", resp.Restored)
	}
}

func TestResolveRequest(t *testing.T) {
	res := 144.0
	p, scale, err := RoundRequest{
		Resolution: &res,
		EditMode:   "custom",
		PointType:  "outer",
		YAxis:      "up",
		Custom:     map[int]float64{2: 5},
	}.Resolve(rounding.DefaultParams(), 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scale != 0.5 || p.Mode != rounding.CustomPoints || p.Filter != rounding.FilterOuter || p.YAxis != vector.YUp {
		t.Fatalf("params = %+v, scale %v", p, scale)
	}
	if p.CustomRadii[2] != 5 || p.Radius != rounding.DefaultParams().Radius {
		t.Fatalf("custom radii = %v, radius %v", p.CustomRadii, p.Radius)
	}

	zero := 0.0
	if _, _, err := (RoundRequest{Resolution: &zero}).Resolve(rounding.DefaultParams(), 1); !errors.Is(err, rounding.ErrValidation) {
		t.Fatalf("zero resolution: err = %v", err)
	}
	if _, _, err := (RoundRequest{YAxis: "left"}).Resolve(rounding.DefaultParams(), 1); !errors.Is(err, rounding.ErrValidation) {
		t.Fatalf("bad y axis: err = %v", err)
	}
	// 72/1e-310 overflows to +Inf
	tiny := 1e-310
	if _, _, err := (RoundRequest{Resolution: &tiny}).Resolve(rounding.DefaultParams(), 1); !errors.Is(err, rounding.ErrValidation) {
		t.Fatalf("tiny resolution: err = %v", err)
	}
}
