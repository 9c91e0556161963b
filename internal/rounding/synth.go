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

	"shaperounder/internal/vector"
)

// Stats counts what happened to each input point.
type Stats struct {
	Rounded    int // replaced by a fillet pair
	Degenerate int // selected but left as is because the geometry did not allow a fillet
	Passed     int // not selected
}

// Synthesize rebuilds every subpath of p, substituting a fillet pair for each point
// whose decision says so. All output coordinates are multiplied by scale.
// decisions is indexed by GlobalIndex; missing entries mean "do not round".
func Synthesize(p vector.Path, decisions []Decision, params Params, scale float64) ([]vector.SubPath, Stats, error) {
	var st Stats
	out := make([]vector.SubPath, 0, len(p.SubPaths))
	gi := 0
	for _, sp := range p.SubPaths {
		pts := make([]vector.AnchorPoint, 0, len(sp.Points)+4)
		bypass := Bypassed(sp)
		for i, ap := range sp.Points {
			var d Decision
			if gi < len(decisions) {
				d = decisions[gi]
			}
			gi++
			prev, next, ok := sp.Neighbors(i)
			if bypass || !ok || !d.Round {
				pts = append(pts, ap.Scaled(scale))
				st.Passed++
				continue
			}
			f, err := Fillet(sp.Points[prev].Anchor, ap.Anchor, sp.Points[next].Anchor, d.Radius, params.Flatness)
			if err != nil {
				pts = append(pts, ap.Scaled(scale))
				st.Degenerate++
				continue
			}
			pts = append(pts, f.A.Scaled(scale), f.B.Scaled(scale))
			st.Rounded++
		}
		if len(pts) == 0 {
			continue
		}
		out = append(out, vector.SubPath{Points: pts, Closed: sp.Closed, Op: sp.Op})
	}
	if len(out) == 0 {
		return nil, st, fmt.Errorf("%w: %d input subpaths", ErrSynthesisEmpty, len(p.SubPaths))
	}
	return out, st, nil
}
