/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rounding replaces sharp corners of anchor-point paths with cubic Bezier
// fillets. It is pure: paths go in, new subpaths come out, nothing is stored.
//
// The pipeline is Classify → Select → Synthesize (which calls Fillet per corner).
// Round runs all three.
package rounding

import (
	"fmt"

	"shaperounder/internal/vector"
)

// Result bundles the output of a full rounding run.
type Result struct {
	SubPaths  []vector.SubPath
	Decisions []Decision
	Stats     Stats
}

// ValidateScale rejects scale factors that are not finite and positive.
func ValidateScale(scale float64) error {
	if !finite(scale) || scale <= 0 {
		return fmt.Errorf("%w: scale factor must be > 0, got %v", ErrValidation, scale)
	}
	return nil
}

// Round validates its inputs and runs the full pipeline on p.
func Round(p vector.Path, params Params, scale float64) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if err := ValidateScale(scale); err != nil {
		return Result{}, err
	}
	if !p.HasPoints() {
		return Result{}, fmt.Errorf("%w: path %q has no anchor points", ErrValidation, p.Name)
	}
	c := Classify(p, params.YAxis)
	d := Select(c, params)
	subs, st, err := Synthesize(p, d, params, scale)
	if err != nil {
		return Result{Decisions: d, Stats: st}, err
	}
	return Result{SubPaths: subs, Decisions: d, Stats: st}, nil
}
