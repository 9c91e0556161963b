/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders paths to SVG, PDF and PNG previews.
//
// All exporters share the same page layout: the page is the path's bounding box grown by
// Margin on every side, with the origin at the top-left. Paths stored with a y-up axis are
// flipped so that they look the same as in the host application.
package export

import (
	"fmt"
	"image/color"

	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/vector"
)

// Options controls the look of an exported path. Zero values get reasonable defaults.
//
//nolint:revive // clarity is preferred
type Options struct {
	DPI         int     // raster resolution; also sets the SVG width/height attributes
	Margin      float64 // pt around the bounding box; negative means none
	YAxis       vector.YAxis
	Stroke      color.RGBA
	StrokeWidth float64    // pt
	Fill        color.RGBA // zero means no fill
	ShowAnchors bool
	Label       bool   // print the path name in the top-left corner
	LabelFont   string // TrueType/OpenType file for raster labels; empty uses a bitmap face
}

const (
	defaultDPI    = 150
	defaultMargin = 18
	anchorSize    = 4 // pt, edge of an anchor marker
)

var (
	black      = color.RGBA{A: 255}
	white      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	anchorBlue = color.RGBA{R: 0, G: 102, B: 204, A: 255}
)

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = defaultDPI
	}
	switch {
	case o.Margin == 0:
		o.Margin = defaultMargin
	case o.Margin < 0:
		o.Margin = 0
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = 1
	}
	if o.Stroke == (color.RGBA{}) {
		o.Stroke = black
	}
	return o
}

// page is the export canvas in points, with m mapping path coordinates onto it.
type page struct {
	W, H float64
	m    vector.Affine2D
}

func layout(p vector.Path, opt Options) (page, error) {
	if !p.HasPoints() {
		return page{}, fmt.Errorf("path %q has no points", p.Name)
	}
	b := p.Bounds()
	pg := page{W: b.W + 2*opt.Margin, H: b.H + 2*opt.Margin}
	if opt.YAxis == vector.YUp {
		pg.m = vector.Translate(opt.Margin-b.X, opt.Margin+b.Y+b.H).Mul(vector.Scale(1, -1))
	} else {
		pg.m = vector.Translate(opt.Margin-b.X, opt.Margin-b.Y)
	}
	return pg, nil
}

// outline yields the drawing commands of p with m applied. The point slice is reused
// between calls.
func outline(p vector.Path, m vector.Affine2D) path.Path {
	return func(yield func(path.Command, []vec.Vec2) bool) {
		var buf [3]vec.Vec2
		for cmd, pts := range p.Outline() {
			out := buf[:len(pts)]
			for i, v := range pts {
				out[i] = m.Apply(v)
			}
			if !yield(cmd, out) {
				return
			}
		}
	}
}

type marker struct {
	at     vec.Vec2
	smooth bool
}

func anchors(p vector.Path, m vector.Affine2D) []marker {
	out := make([]marker, 0, p.PointCount())
	for _, sp := range p.SubPaths {
		for _, ap := range sp.Points {
			out = append(out, marker{at: m.Apply(ap.Anchor), smooth: ap.Kind == vector.Smooth})
		}
	}
	return out
}
