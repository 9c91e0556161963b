/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rounding

import "shaperounder/internal/vector"

// Decision says whether a point is rounded and with which radius.
type Decision struct {
	Round  bool
	Radius float64
}

// Select decides per GlobalIndex which points to round. The result has one entry per
// classified point; ineligible points are never rounded.
func Select(c Classification, p Params) []Decision {
	out := make([]Decision, len(c))
	if p.Mode.Custom() {
		// CustomCorners trusts the caller to have supplied corners only.
		for gi, r := range p.CustomRadii {
			info, ok := c.At(gi)
			if !ok || !info.Eligible || r <= 0 {
				continue
			}
			out[gi] = Decision{Round: true, Radius: r}
		}
		return out
	}
	for i, info := range c {
		if !info.Eligible || !p.Filter.Accepts(info.Orientation) {
			continue
		}
		if p.Mode == AngleFilteredCorners && !(info.Corner && inRange(info.Angle, p)) {
			continue
		}
		out[i] = Decision{Round: true, Radius: p.Radius}
	}
	return out
}

func inRange(angle float64, p Params) bool { return angle >= p.AngleMin && angle <= p.AngleMax }

// CornerCandidates builds the override map offered for CustomCorners: every eligible
// geometric corner inside the angle range that passes the point-type filter, seeded
// with the global radius.
func CornerCandidates(c Classification, p Params) map[vector.GlobalIndex]float64 {
	out := map[vector.GlobalIndex]float64{}
	for _, info := range c {
		if info.Eligible && info.Corner && inRange(info.Angle, p) && p.Filter.Accepts(info.Orientation) {
			out[info.Index] = p.Radius
		}
	}
	return out
}
