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
	"fmt"
	"math"

	"shaperounder/internal/rounding"
	"shaperounder/internal/vector"
)

// Wire types shared by Server and Client.

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type PathSummary struct {
	Name      string `json:"name"`
	Anchors   int    `json:"anchors"`
	Roundable bool   `json:"roundable"`
}

type PathList struct {
	Active string        `json:"active,omitempty"`
	Paths  []PathSummary `json:"paths"`
}

type PathDoc struct {
	Name     string                 `json:"name"`
	SubPaths []vector.SubPathRecord `json:"subpaths"`
}

// RoundRequest overrides the server's default parameters. Omitted fields keep the default.
type RoundRequest struct {
	Radius     *float64 `json:"radius,omitempty"`
	Flatness   *float64 `json:"flatness,omitempty"`
	AngleMin   *float64 `json:"min_angle,omitempty"`
	AngleMax   *float64 `json:"max_angle,omitempty"`
	EditMode   string   `json:"edit_mode,omitempty"`
	PointType  string   `json:"point_type,omitempty"`
	YAxis      string   `json:"y_axis,omitempty"`
	Resolution *float64 `json:"resolution,omitempty"` // dpi; scale = 72/resolution
	// Custom maps global point indexes to radii for the custom edit modes.
	Custom map[int]float64 `json:"custom,omitempty"`
}

// Resolve merges the request over base and returns validated parameters plus the scale.
func (rr RoundRequest) Resolve(base rounding.Params, baseScale float64) (rounding.Params, float64, error) {
	p := base
	if rr.Radius != nil {
		p.Radius = *rr.Radius
	}
	if rr.Flatness != nil {
		p.Flatness = *rr.Flatness
	}
	if rr.AngleMin != nil {
		p.AngleMin = *rr.AngleMin
	}
	if rr.AngleMax != nil {
		p.AngleMax = *rr.AngleMax
	}
	var err error
	if rr.EditMode != "" {
		if p.Mode, err = rounding.ParseEditMode(rr.EditMode); err != nil {
			return p, 0, err
		}
	}
	if rr.PointType != "" {
		if p.Filter, err = rounding.ParsePointTypeFilter(rr.PointType); err != nil {
			return p, 0, err
		}
	}
	if rr.YAxis != "" {
		if p.YAxis, err = vector.ParseYAxis(rr.YAxis); err != nil {
			return p, 0, fmt.Errorf("%w: %v", rounding.ErrValidation, err)
		}
	}
	if len(rr.Custom) > 0 {
		p.CustomRadii = make(map[vector.GlobalIndex]float64, len(rr.Custom))
		for gi, r := range rr.Custom {
			p.CustomRadii[vector.GlobalIndex(gi)] = r
		}
	}
	scale := baseScale
	if rr.Resolution != nil {
		res := *rr.Resolution
		if res <= 0 || math.IsNaN(res) || math.IsInf(res, 0) {
			return p, 0, fmt.Errorf("%w: resolution must be > 0, got %v", rounding.ErrValidation, res)
		}
		scale = 72 / res
	}
	if err := rounding.ValidateScale(scale); err != nil {
		return p, 0, err
	}
	if err := p.Validate(); err != nil {
		return p, 0, err
	}
	return p, scale, nil
}

type RoundStats struct {
	Rounded    int `json:"rounded"`
	Degenerate int `json:"degenerate"`
	Passed     int `json:"passed"`
}

type RoundResponse struct {
	Source   string     `json:"source"`
	Original string     `json:"original,omitempty"`
	Rounded  string     `json:"rounded,omitempty"`
	Restored string     `json:"restored,omitempty"`
	Stats    RoundStats `json:"stats"`
	Error    string     `json:"error,omitempty"`
}
