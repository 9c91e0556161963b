/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rounding

import "errors"

var (
	// ErrValidation marks bad parameters or a source path without anchor points.
	ErrValidation = errors.New("validation error")
	// ErrGeometryDegenerate is returned by Fillet for a corner that cannot be rounded.
	// Synthesize absorbs it and keeps the point as is.
	ErrGeometryDegenerate = errors.New("degenerate corner geometry")
	// ErrSynthesisEmpty means every subpath was dropped; nothing may be committed.
	ErrSynthesisEmpty = errors.New("synthesis produced no subpaths")
)
