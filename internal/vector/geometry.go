/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Basic 2D geometry and local corner tests.
// Coordinates are float64 so tolerance checks down to 1e-9 stay meaningful.

import (
	"fmt"
	"math"
	"strings"

	"seehuhn.de/go/geom/vec"
)

const (
	// DegenerateEps is the length below which a neighbour vector is treated as missing.
	DegenerateEps = 1e-9
	// HandleEps is the tolerance for "handle sits on its anchor".
	HandleEps = 1e-6
)

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() vec.Vec2 { return vec.Vec2{X: r.X, Y: r.Y} }
func (r Rect) Max() vec.Vec2 { return vec.Vec2{X: r.X + r.W, Y: r.Y + r.H} }

func (r Rect) Empty() bool { return r.W <= 0 && r.H <= 0 }

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
// stored as [a b c d e f].
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }

// ApproxEqual reports whether a and b coincide within eps on both axes.
func ApproxEqual(a, b vec.Vec2, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

// Unit returns v scaled to length 1, or the zero vector when v is shorter than DegenerateEps.
func Unit(v vec.Vec2) vec.Vec2 {
	l := v.Length()
	if l < DegenerateEps {
		return vec.Vec2{}
	}
	return v.Mul(1 / l)
}

// AngleAt returns the interior angle at curr in degrees, in [0, 180].
// A neighbour closer than DegenerateEps yields 0.
func AngleAt(prev, curr, next vec.Vec2) float64 {
	v1 := prev.Sub(curr)
	v2 := next.Sub(curr)
	l1, l2 := v1.Length(), v2.Length()
	if l1 < DegenerateEps || l2 < DegenerateEps {
		return 0
	}
	cos := v1.Dot(v2) / (l1 * l2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Orientation classifies the turn at a vertex.
type Orientation int8

const (
	Straight Orientation = iota
	Inner
	Outer
)

func (o Orientation) String() string {
	switch o {
	case Inner:
		return "inner"
	case Outer:
		return "outer"
	default:
		return "straight"
	}
}

// YAxis selects the coordinate convention used for orientation signs.
type YAxis uint8

const (
	YDown YAxis = iota
	YUp
)

func (a YAxis) String() string {
	if a == YUp {
		return "up"
	}
	return "down"
}

// ParseYAxis accepts "down" (screen coordinates, the default) and "up".
func ParseYAxis(s string) (YAxis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "down":
		return YDown, nil
	case "up":
		return YUp, nil
	}
	return YDown, fmt.Errorf("unknown y axis %q", s)
}

// Cross returns the z component of the 2D cross product a×b.
func Cross(a, b vec.Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// OrientationOf returns the turn direction at curr. In a Y-down system a positive
// cross product of (prev-curr, next-curr) is Inner; YUp flips the sign.
func OrientationOf(prev, curr, next vec.Vec2, axis YAxis) Orientation {
	c := Cross(prev.Sub(curr), next.Sub(curr))
	if axis == YUp {
		c = -c
	}
	switch {
	case math.Abs(c) < DegenerateEps:
		return Straight
	case c > 0:
		return Inner
	default:
		return Outer
	}
}

// IsGeometricCorner reports whether p is a corner point with both handles retracted
// onto its anchor, i.e. no curvature enters or leaves it.
func IsGeometricCorner(p AnchorPoint) bool {
	return p.Kind == Corner &&
		ApproxEqual(p.Anchor, p.Left, HandleEps) &&
		ApproxEqual(p.Anchor, p.Right, HandleEps)
}
