/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"seehuhn.de/go/geom/vec"
)

// ErrIncompleteRecord is returned when a stored point lacks a coordinate or kind.
var ErrIncompleteRecord = errors.New("incomplete point record")

// PointRecord is the serialized form of an AnchorPoint. Fields are pointers so that
// missing values can be told apart from zero coordinates.
type PointRecord struct {
	Anchor *[2]float64 `json:"anchor"`
	Left   *[2]float64 `json:"left"`
	Right  *[2]float64 `json:"right"`
	Kind   *string     `json:"kind"`
}

// SubPathRecord is the serialized form of a SubPath.
type SubPathRecord struct {
	Closed bool          `json:"closed"`
	Op     string        `json:"op,omitempty"`
	Points []PointRecord `json:"points"`
}

// ParseKind accepts "corner" or "smooth" (case-insensitive).
func ParseKind(s string) (PointKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "corner":
		return Corner, nil
	case "smooth":
		return Smooth, nil
	}
	return Corner, fmt.Errorf("unknown point kind %q", s)
}

func toVec(a *[2]float64) (vec.Vec2, bool) {
	if a == nil || math.IsNaN(a[0]) || math.IsNaN(a[1]) || math.IsInf(a[0], 0) || math.IsInf(a[1], 0) {
		return vec.Vec2{}, false
	}
	return vec.Vec2{X: a[0], Y: a[1]}, true
}

// Point validates a record into an AnchorPoint.
func (r PointRecord) Point() (AnchorPoint, error) {
	anchor, ok1 := toVec(r.Anchor)
	left, ok2 := toVec(r.Left)
	right, ok3 := toVec(r.Right)
	if !ok1 || !ok2 || !ok3 {
		return AnchorPoint{}, fmt.Errorf("%w: missing or non-finite coordinate", ErrIncompleteRecord)
	}
	if r.Kind == nil {
		return AnchorPoint{}, fmt.Errorf("%w: missing kind", ErrIncompleteRecord)
	}
	kind, err := ParseKind(*r.Kind)
	if err != nil {
		return AnchorPoint{}, fmt.Errorf("%w: %v", ErrIncompleteRecord, err)
	}
	return AnchorPoint{Anchor: anchor, Left: left, Right: right, Kind: kind}, nil
}

// FromRecords converts stored subpaths into the validated model. The first bad record
// aborts the conversion; the error names its global index.
func FromRecords(recs []SubPathRecord) ([]SubPath, error) {
	out := make([]SubPath, 0, len(recs))
	gi := 0
	for si, r := range recs {
		sp := SubPath{Closed: r.Closed, Op: WindingOp(r.Op), Points: make([]AnchorPoint, 0, len(r.Points))}
		for _, pr := range r.Points {
			ap, err := pr.Point()
			if err != nil {
				return nil, fmt.Errorf("subpath %d, point %d: %w", si, gi, err)
			}
			sp.Points = append(sp.Points, ap)
			gi++
		}
		out = append(out, sp)
	}
	return out, nil
}

// ToRecords is the inverse of FromRecords.
func ToRecords(subs []SubPath) []SubPathRecord {
	out := make([]SubPathRecord, 0, len(subs))
	for _, sp := range subs {
		r := SubPathRecord{Closed: sp.Closed, Op: string(sp.Op), Points: make([]PointRecord, 0, len(sp.Points))}
		for _, ap := range sp.Points {
			kind := ap.Kind.String()
			r.Points = append(r.Points, PointRecord{
				Anchor: &[2]float64{ap.Anchor.X, ap.Anchor.Y},
				Left:   &[2]float64{ap.Left.X, ap.Left.Y},
				Right:  &[2]float64{ap.Right.X, ap.Right.Y},
				Kind:   &kind,
			})
		}
		out = append(out, r)
	}
	return out
}
