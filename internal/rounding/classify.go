/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rounding

import "shaperounder/internal/vector"

const (
	// Subpaths at or below these point counts pass through unrounded.
	maxBypassOpen   = 2
	maxBypassClosed = 3
)

// Bypassed reports whether sp is too short to have any roundable corner.
// Closed triangles count as too short and are never rounded.
func Bypassed(sp vector.SubPath) bool {
	n := len(sp.Points)
	if sp.Closed {
		return n <= maxBypassClosed
	}
	return n <= maxBypassOpen
}

// PointInfo is the local classification of one anchor point.
type PointInfo struct {
	Index       vector.GlobalIndex
	Sub, Pt     int
	Eligible    bool // both neighbours resolve and the subpath is not bypassed
	Angle       float64
	Orientation vector.Orientation
	Corner      bool // geometric corner
}

// Classification holds one PointInfo per point, indexed by GlobalIndex.
type Classification []PointInfo

// Classify computes angle, orientation and cornerness for every point of p.
// Ineligible points keep angle 0, orientation Straight and Corner=false.
func Classify(p vector.Path, axis vector.YAxis) Classification {
	out := make(Classification, 0, p.PointCount())
	gi := vector.GlobalIndex(0)
	for si, sp := range p.SubPaths {
		bypass := Bypassed(sp)
		for pi, ap := range sp.Points {
			info := PointInfo{Index: gi, Sub: si, Pt: pi, Orientation: vector.Straight}
			if prev, next, ok := sp.Neighbors(pi); ok && !bypass {
				a, b := sp.Points[prev].Anchor, sp.Points[next].Anchor
				info.Eligible = true
				info.Angle = vector.AngleAt(a, ap.Anchor, b)
				info.Orientation = vector.OrientationOf(a, ap.Anchor, b, axis)
				info.Corner = vector.IsGeometricCorner(ap)
			}
			out = append(out, info)
			gi++
		}
	}
	return out
}

// At returns the info for gi, or false when gi is out of range.
func (c Classification) At(gi vector.GlobalIndex) (PointInfo, bool) {
	if gi < 0 || int(gi) >= len(c) {
		return PointInfo{}, false
	}
	return c[gi], true
}
