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
	"strconv"
	"strings"

	"shaperounder/internal/vector"
)

type EditMode uint8

const (
	AllPoints EditMode = iota
	AngleFilteredCorners
	CustomPoints
	CustomCorners
)

func (m EditMode) String() string {
	switch m {
	case AngleFilteredCorners:
		return "corners"
	case CustomPoints:
		return "custom-points"
	case CustomCorners:
		return "custom-corners"
	default:
		return "all"
	}
}

// Custom reports whether the mode takes its decisions from the override map.
func (m EditMode) Custom() bool { return m == CustomPoints || m == CustomCorners }

// ParseEditMode accepts the names printed by EditMode.String plus a few aliases.
func ParseEditMode(s string) (EditMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all-points":
		return AllPoints, nil
	case "corners", "angle", "only-corners":
		return AngleFilteredCorners, nil
	case "custom", "custom-points", "points":
		return CustomPoints, nil
	case "custom-corners":
		return CustomCorners, nil
	}
	return AllPoints, fmt.Errorf("%w: unknown edit mode %q", ErrValidation, s)
}

type PointTypeFilter uint8

const (
	FilterAll PointTypeFilter = iota
	FilterInner
	FilterOuter
)

func (f PointTypeFilter) String() string {
	switch f {
	case FilterInner:
		return "inner"
	case FilterOuter:
		return "outer"
	default:
		return "all"
	}
}

func ParsePointTypeFilter(s string) (PointTypeFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "inner":
		return FilterInner, nil
	case "outer":
		return FilterOuter, nil
	}
	return FilterAll, fmt.Errorf("%w: unknown point type %q", ErrValidation, s)
}

// Accepts reports whether a point of orientation o passes the filter.
func (f PointTypeFilter) Accepts(o vector.Orientation) bool {
	switch f {
	case FilterInner:
		return o == vector.Inner
	case FilterOuter:
		return o == vector.Outer
	default:
		return true
	}
}

// Params configures one rounding run.
type Params struct {
	Radius   float64
	Flatness float64 // 0 = circular, 1 = straight chamfer
	AngleMin float64 // degrees
	AngleMax float64 // degrees
	Mode     EditMode
	Filter   PointTypeFilter
	YAxis    vector.YAxis
	// CustomRadii maps global point indexes to per-point radii for the custom modes.
	// Entries with a radius <= 0 are ignored.
	CustomRadii map[vector.GlobalIndex]float64
}

// DefaultParams mirrors the values a fresh dialog starts with.
func DefaultParams() Params {
	return Params{Radius: 30, Flatness: 0, AngleMin: 0, AngleMax: 180, Mode: AllPoints, Filter: FilterAll, YAxis: vector.YDown}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Validate checks ranges. All failures wrap ErrValidation.
func (p Params) Validate() error {
	if !finite(p.Radius) || p.Radius <= 0 {
		return fmt.Errorf("%w: radius must be > 0, got %v", ErrValidation, p.Radius)
	}
	if !finite(p.Flatness) || p.Flatness < 0 || p.Flatness > 1 {
		return fmt.Errorf("%w: flatness must be within [0,1], got %v", ErrValidation, p.Flatness)
	}
	if !finite(p.AngleMin) || !finite(p.AngleMax) || p.AngleMin < 0 || p.AngleMax > 180 || p.AngleMin > p.AngleMax {
		return fmt.Errorf("%w: angle range [%v,%v] must satisfy 0 <= min <= max <= 180", ErrValidation, p.AngleMin, p.AngleMax)
	}
	if p.Mode > CustomCorners {
		return fmt.Errorf("%w: edit mode %d", ErrValidation, p.Mode)
	}
	if p.Filter > FilterOuter {
		return fmt.Errorf("%w: point type filter %d", ErrValidation, p.Filter)
	}
	for gi, r := range p.CustomRadii {
		if gi < 0 {
			return fmt.Errorf("%w: negative point index %d", ErrValidation, gi)
		}
		if !finite(r) {
			return fmt.Errorf("%w: radius for point %d is not finite", ErrValidation, gi)
		}
	}
	return nil
}

// ParseCustomRadii parses "5=12,7=3.5" into an override map. A bare index ("5") takes
// the fallback radius.
func ParseCustomRadii(s string, fallback float64) (map[vector.GlobalIndex]float64, error) {
	out := map[vector.GlobalIndex]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idxStr, radStr, hasRadius := strings.Cut(part, "=")
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: bad point index %q", ErrValidation, idxStr)
		}
		r := fallback
		if hasRadius {
			r, err = strconv.ParseFloat(strings.TrimSpace(radStr), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad radius %q for point %d", ErrValidation, radStr, idx)
			}
		}
		out[vector.GlobalIndex(idx)] = r
	}
	return out, nil
}
