/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rounding

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/vector"
)

const (
	minSegment = 1e-6
	// tan(θ/2) outside [tanLow, tanHigh] means no usable bound on the offset: the
	// corner is either folded back (θ≈0) or collinear (θ≈180).
	tanLow  = 1e-9
	tanHigh = 1e9
	// unbounded stands in for an infinite offset bound, as a multiple of the radius.
	unbounded = 1e9
)

// FilletResult is the replacement geometry for one corner.
type FilletResult struct {
	A, B   vector.AnchorPoint // A lies toward prev, B toward next
	Offset float64            // distance from the corner to A and to B
	Handle float64            // length of the inward handles
}

// Fillet replaces corner p by two corner points approximating a circular arc of radius r.
// flatness in [0,1] shortens the handles; 1 yields a straight chamfer.
// Only anchors are read; the corner's own handles are discarded.
func Fillet(prev, p, next vec.Vec2, r, flatness float64) (FilletResult, error) {
	v1 := prev.Sub(p)
	v2 := next.Sub(p)
	l1, l2 := v1.Length(), v2.Length()
	if l1 < minSegment || l2 < minSegment {
		return FilletResult{}, fmt.Errorf("%w: neighbour too close (l1=%g, l2=%g)", ErrGeometryDegenerate, l1, l2)
	}
	theta := vector.AngleAt(prev, p, next) * math.Pi / 180

	maxOffset := r * unbounded
	if t := math.Tan(theta / 2); t > tanLow && t < tanHigh {
		maxOffset = r / t
	}
	offset := math.Min(maxOffset, math.Min(l1/2, l2/2))
	if !(offset >= minSegment) {
		return FilletResult{}, fmt.Errorf("%w: offset %g too small", ErrGeometryDegenerate, offset)
	}

	a := p.Add(vector.Unit(v1).Mul(offset))
	b := p.Add(vector.Unit(v2).Mul(offset))
	h := 4.0 / 3.0 * math.Tan((math.Pi-theta)/4) * r * (1 - flatness)

	return FilletResult{
		A: vector.AnchorPoint{
			Anchor: a,
			Left:   a,
			Right:  a.Add(vector.Unit(p.Sub(a)).Mul(h)),
			Kind:   vector.Corner,
		},
		B: vector.AnchorPoint{
			Anchor: b,
			Left:   b.Add(vector.Unit(p.Sub(b)).Mul(h)),
			Right:  b,
			Kind:   vector.Corner,
		},
		Offset: offset,
		Handle: h,
	}, nil
}
