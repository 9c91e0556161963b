/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// labelSizePt is the size of raster labels drawn with a TrueType/OpenType font.
const labelSizePt = 9

var (
	fontMu    sync.Mutex
	fontCache = map[string]*opentype.Font{}
)

// loadFont parses the font file at path once per process.
func loadFont(path string) (*opentype.Font, error) {
	fontMu.Lock()
	defer fontMu.Unlock()
	if f, ok := fontCache[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	fontCache[path] = f
	return f, nil
}

// labelFace returns the face for raster labels. Without a font file the fixed
// 7x13 bitmap face is used.
func labelFace(path string, dpi int) (font.Face, error) {
	if path == "" {
		return basicfont.Face7x13, nil
	}
	f, err := loadFont(path)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: labelSizePt, DPI: float64(dpi), Hinting: font.HintingFull})
}
