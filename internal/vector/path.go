/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Anchor-point paths as stored by a host document.

import (
	"math"

	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
)

type PointKind uint8

const (
	Corner PointKind = iota
	Smooth
)

func (k PointKind) String() string {
	if k == Smooth {
		return "smooth"
	}
	return "corner"
}

// WindingOp is the boolean-combine tag of a subpath. It is opaque to this package.
type WindingOp string

// AnchorPoint is a path vertex. Left is the incoming control point, Right the outgoing one;
// both are absolute coordinates.
type AnchorPoint struct {
	Anchor vec.Vec2
	Left   vec.Vec2
	Right  vec.Vec2
	Kind   PointKind
}

// CornerAt returns a corner point with both handles retracted onto p.
func CornerAt(p vec.Vec2) AnchorPoint {
	return AnchorPoint{Anchor: p, Left: p, Right: p, Kind: Corner}
}

// Transform applies m to the anchor and both handles.
func (a AnchorPoint) Transform(m Affine2D) AnchorPoint {
	return AnchorPoint{Anchor: m.Apply(a.Anchor), Left: m.Apply(a.Left), Right: m.Apply(a.Right), Kind: a.Kind}
}

// Scaled multiplies all coordinates uniformly by f.
func (a AnchorPoint) Scaled(f float64) AnchorPoint { return a.Transform(Scale(f, f)) }

type SubPath struct {
	Points []AnchorPoint
	Closed bool
	Op     WindingOp
}

// Neighbors returns the indices of the points before and after i. Closed subpaths wrap
// around; the endpoints of an open subpath have no neighbours.
func (s SubPath) Neighbors(i int) (prev, next int, ok bool) {
	n := len(s.Points)
	if i < 0 || i >= n || n < 3 && s.Closed || n < 2 {
		return 0, 0, false
	}
	if !s.Closed && (i == 0 || i == n-1) {
		return 0, 0, false
	}
	return (i - 1 + n) % n, (i + 1) % n, true
}

// Clone returns a deep copy.
func (s SubPath) Clone() SubPath {
	out := SubPath{Closed: s.Closed, Op: s.Op}
	out.Points = append([]AnchorPoint(nil), s.Points...)
	return out
}

// Path is a named collection of subpaths.
type Path struct {
	Name     string
	SubPaths []SubPath
}

// GlobalIndex numbers all points of a path in subpath-major, point-minor order.
type GlobalIndex int

// PointCount returns the total number of anchor points.
func (p Path) PointCount() int {
	n := 0
	for _, sp := range p.SubPaths {
		n += len(sp.Points)
	}
	return n
}

// HasPoints reports whether any subpath holds at least one anchor point.
func (p Path) HasPoints() bool { return p.PointCount() > 0 }

// Locate maps a global index back to its subpath and point index.
func (p Path) Locate(gi GlobalIndex) (sub, pt int, ok bool) {
	if gi < 0 {
		return 0, 0, false
	}
	rest := int(gi)
	for i, sp := range p.SubPaths {
		if rest < len(sp.Points) {
			return i, rest, true
		}
		rest -= len(sp.Points)
	}
	return 0, 0, false
}

// GlobalIndexOf is the inverse of Locate. It does not range-check pt.
func (p Path) GlobalIndexOf(sub, pt int) GlobalIndex {
	base := 0
	for i := 0; i < sub && i < len(p.SubPaths); i++ {
		base += len(p.SubPaths[i].Points)
	}
	return GlobalIndex(base + pt)
}

// Clone returns a deep copy of the path.
func (p Path) Clone() Path {
	out := Path{Name: p.Name, SubPaths: make([]SubPath, len(p.SubPaths))}
	for i, sp := range p.SubPaths {
		out.SubPaths[i] = sp.Clone()
	}
	return out
}

// Bounds returns an axis-aligned bounding box over anchors and handles. Control points
// are included, which over-estimates curves slightly; that is fine for previews.
func (p Path) Bounds() Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(v vec.Vec2) {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	for _, sp := range p.SubPaths {
		for _, ap := range sp.Points {
			grow(ap.Anchor)
			grow(ap.Left)
			grow(ap.Right)
		}
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Outline converts the anchor-point representation into drawing commands.
// A segment whose handles both sit on their anchors is emitted as a line.
func (p Path) Outline() path.Path {
	return func(yield func(path.Command, []vec.Vec2) bool) {
		for _, sp := range p.SubPaths {
			n := len(sp.Points)
			if n == 0 {
				continue
			}
			if !yield(path.CmdMoveTo, []vec.Vec2{sp.Points[0].Anchor}) {
				return
			}
			segs := n - 1
			if sp.Closed {
				segs = n
			}
			for i := 0; i < segs; i++ {
				from := sp.Points[i]
				to := sp.Points[(i+1)%n]
				if !segment(from, to, yield) {
					return
				}
			}
			if sp.Closed {
				if !yield(path.CmdClose, nil) {
					return
				}
			}
		}
	}
}

func segment(from, to AnchorPoint, yield func(path.Command, []vec.Vec2) bool) bool {
	if ApproxEqual(from.Right, from.Anchor, HandleEps) && ApproxEqual(to.Left, to.Anchor, HandleEps) {
		return yield(path.CmdLineTo, []vec.Vec2{to.Anchor})
	}
	return yield(path.CmdCubeTo, []vec.Vec2{from.Right, to.Left, to.Anchor})
}
