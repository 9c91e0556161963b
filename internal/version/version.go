/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version exposes build metadata.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags "-X shaperounder/internal/version.Version=... -X shaperounder/internal/version.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

// String returns "shaperounder <version> (<commit>)", falling back to the VCS revision
// recorded in the binary when Commit was not injected.
func String() string {
	c := Commit
	if c == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					c = s.Value[:7]
				}
			}
		}
	}
	if c == "" {
		return fmt.Sprintf("shaperounder %s", Version)
	}
	return fmt.Sprintf("shaperounder %s (%s)", Version, c)
}
