/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package txn

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"shaperounder/internal/storage"
)

const (
	SuffixOriginal = "Original"
	SuffixRounded  = "Rounded"
	SuffixRestored = "Restored"

	// maxRetries bounds the "(1)".."(N)" disambiguation loop.
	maxRetries = 50
	stampFmt   = "20060102-150405"
)

var suffixRE = regexp.MustCompile(` \((Original|Rounded|Restored( (\d+|\d{8}-\d{6}))?)\)( \((\d+|\d{8}-\d{6})\))?$`)

// BaseName strips one trailing "(Original)", "(Rounded)" or "(Restored N)" marker, with an
// optional collision counter or timestamp, from name.
func BaseName(name string) string { return suffixRE.ReplaceAllString(name, "") }

// candidates yields the names tried for base+" (suffix)": the plain name, then " (1)".." (50)",
// then a timestamp.
func candidates(stem string, now time.Time) func(i int) (string, bool) {
	return func(i int) (string, bool) {
		switch {
		case i == 0:
			return stem, true
		case i <= maxRetries:
			return fmt.Sprintf("%s (%d)", stem, i), true
		case i == maxRetries+1:
			return fmt.Sprintf("%s (%s)", stem, now.Format(stampFmt)), true
		}
		return "", false
	}
}

// restoredCandidates follows the same bounded scheme but starts with the bare base name
// and counts inside the marker: "<base>", "<base> (Restored 1)", ...
func restoredCandidates(base string, now time.Time) func(i int) (string, bool) {
	return func(i int) (string, bool) {
		switch {
		case i == 0:
			return base, true
		case i <= maxRetries:
			return fmt.Sprintf("%s (%s %d)", base, SuffixRestored, i), true
		case i == maxRetries+1:
			return fmt.Sprintf("%s (%s %s)", base, SuffixRestored, now.Format(stampFmt)), true
		}
		return "", false
	}
}

// firstFree returns the first candidate name not present in s.
func firstFree(ctx context.Context, s storage.Store, next func(i int) (string, bool)) (string, error) {
	for i := 0; ; i++ {
		name, ok := next(i)
		if !ok {
			return "", fmt.Errorf("no free name after %d attempts", i)
		}
		taken, err := s.Exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
}

// FindRenamedOriginal locates the path a commit for srcName renamed away: "<base> (Original)",
// then "<base> (Original) (1..50)", then srcName itself.
func FindRenamedOriginal(ctx context.Context, s storage.Store, srcName string) (string, bool, error) {
	stem := BaseName(srcName) + " (" + SuffixOriginal + ")"
	try := []string{stem}
	for i := 1; i <= maxRetries; i++ {
		try = append(try, fmt.Sprintf("%s (%d)", stem, i))
	}
	try = append(try, srcName)
	for _, name := range try {
		ok, err := s.Exists(ctx, name)
		if err != nil {
			return "", false, err
		}
		if ok {
			return name, true, nil
		}
	}
	return "", false, nil
}
