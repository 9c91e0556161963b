/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rounding

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"shaperounder/internal/vector"
)

func squarePath() vector.Path {
	return vector.Path{Name: "box", SubPaths: []vector.SubPath{{
		Closed: true,
		Op:     "xor",
		Points: []vector.AnchorPoint{
			vector.CornerAt(v(0, 0)), vector.CornerAt(v(100, 0)),
			vector.CornerAt(v(100, 100)), vector.CornerAt(v(0, 100)),
		},
	}}}
}

func TestRoundSquare(t *testing.T) {
	params := DefaultParams()
	params.Radius = 10
	res, err := Round(squarePath(), params, 1)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if len(res.SubPaths) != 1 {
		t.Fatalf("subpaths = %d", len(res.SubPaths))
	}
	sp := res.SubPaths[0]
	if !sp.Closed || sp.Op != "xor" {
		t.Fatalf("flags lost: closed=%v op=%q", sp.Closed, sp.Op)
	}
	if len(sp.Points) != 8 {
		t.Fatalf("points = %d, want 8", len(sp.Points))
	}
	for i, ap := range sp.Points {
		if ap.Kind != vector.Corner {
			t.Fatalf("point %d kind = %v", i, ap.Kind)
		}
	}
	if res.Stats != (Stats{Rounded: 4}) {
		t.Fatalf("stats = %+v", res.Stats)
	}
	// corner 0 is replaced by (0,10) then (10,0); order follows prev → next
	if !vector.ApproxEqual(sp.Points[0].Anchor, v(0, 10), 1e-9) || !vector.ApproxEqual(sp.Points[1].Anchor, v(10, 0), 1e-9) {
		t.Fatalf("first fillet = %v, %v", sp.Points[0].Anchor, sp.Points[1].Anchor)
	}
}

func TestRoundIsNotIdempotent(t *testing.T) {
	params := DefaultParams()
	params.Radius = 10
	first, err := Round(squarePath(), params, 1)
	if err != nil {
		t.Fatalf("first Round: %v", err)
	}
	again, err := Round(vector.Path{SubPaths: first.SubPaths}, params, 1)
	if err != nil {
		t.Fatalf("second Round: %v", err)
	}
	if n := again.SubPaths[0].Points; len(n) != 16 {
		t.Fatalf("second pass points = %d, want 16", len(n))
	}
	if again.Stats.Rounded != 8 {
		t.Fatalf("second pass rounded %d, want 8", again.Stats.Rounded)
	}
}

func TestRoundScalesEveryPoint(t *testing.T) {
	params := DefaultParams()
	params.Mode = CustomPoints
	params.CustomRadii = map[vector.GlobalIndex]float64{2: 10}
	res, err := Round(squarePath(), params, 0.5)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	got := res.SubPaths[0].Points
	want := []vector.AnchorPoint{
		vector.CornerAt(v(0, 0)),
		vector.CornerAt(v(50, 0)),
		{Anchor: v(50, 45), Left: v(50, 45), Right: v(50, 45+0.5*circleHandle(10)), Kind: vector.Corner},
		{Anchor: v(45, 50), Left: v(45+0.5*circleHandle(10), 50), Right: v(45, 50), Kind: vector.Corner},
		vector.CornerAt(v(0, 50)),
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("scaled output mismatch (-want +got):\n%s", diff)
	}
}

func circleHandle(r float64) float64 { return 4.0 / 3.0 * math.Tan(math.Pi/8) * r }

func TestSynthesizeBypassesShortSubpaths(t *testing.T) {
	tri := vector.SubPath{Closed: true, Op: "add", Points: []vector.AnchorPoint{
		vector.CornerAt(v(0, 0)), vector.CornerAt(v(10, 0)), vector.CornerAt(v(0, 10)),
	}}
	seg := vector.SubPath{Points: []vector.AnchorPoint{
		vector.CornerAt(v(0, 0)), vector.CornerAt(v(10, 10)),
	}}
	p := vector.Path{SubPaths: []vector.SubPath{tri, seg}}
	// force a round decision on every point: bypass must still win
	ds := make([]Decision, p.PointCount())
	for i := range ds {
		ds[i] = Decision{Round: true, Radius: 5}
	}
	got, st, err := Synthesize(p, ds, DefaultParams(), 2)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := []vector.SubPath{tri.Clone(), seg.Clone()}
	for i := range want {
		for j := range want[i].Points {
			want[i].Points[j] = want[i].Points[j].Scaled(2)
		}
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("bypass mismatch (-want +got):\n%s", diff)
	}
	if st.Rounded != 0 || st.Passed != 5 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSynthesizeAbsorbsDegenerateCorners(t *testing.T) {
	sp := vector.SubPath{Closed: true, Points: []vector.AnchorPoint{
		vector.CornerAt(v(0, 0)), vector.CornerAt(v(0, 0)),
		vector.CornerAt(v(50, 0)), vector.CornerAt(v(50, 50)),
	}}
	params := DefaultParams()
	params.Radius = 5
	res, err := Round(vector.Path{SubPaths: []vector.SubPath{sp}}, params, 1)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if res.Stats.Degenerate != 2 || res.Stats.Rounded != 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if n := len(res.SubPaths[0].Points); n != 6 {
		t.Fatalf("points = %d, want 6", n)
	}
}

func TestSynthesizeEmpty(t *testing.T) {
	p := vector.Path{SubPaths: []vector.SubPath{{Closed: true}, {}}}
	_, _, err := Synthesize(p, nil, DefaultParams(), 1)
	if !errors.Is(err, ErrSynthesisEmpty) {
		t.Fatalf("err = %v, want ErrSynthesisEmpty", err)
	}
}

func TestSynthesizeDropsEmptySubpaths(t *testing.T) {
	p := squarePath()
	p.SubPaths = append([]vector.SubPath{{Closed: true}}, p.SubPaths...)
	got, _, err := Synthesize(p, nil, DefaultParams(), 1)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got) != 1 || len(got[0].Points) != 4 {
		t.Fatalf("got %d subpaths", len(got))
	}
}

func TestRoundRejectsBadInput(t *testing.T) {
	if _, err := Round(vector.Path{Name: "empty"}, DefaultParams(), 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty path: err = %v", err)
	}
	if _, err := Round(squarePath(), DefaultParams(), 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero scale: err = %v", err)
	}
	bad := DefaultParams()
	bad.Radius = -1
	if _, err := Round(squarePath(), bad, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative radius: err = %v", err)
	}
}
