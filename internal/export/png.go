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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/vector"
)

// flattenTolerance is the maximum chord error in pixels when strokes are flattened.
const flattenTolerance = 0.25

// PNG rasterises p at opt.DPI and writes it as PNG.
func PNG(w io.Writer, p vector.Path, opt Options) error {
	img, err := Raster(p, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Raster draws p onto a new white image sized by the page layout at opt.DPI.
func Raster(p vector.Path, opt Options) (*image.RGBA, error) {
	opt = opt.withDefaults()
	pg, err := layout(p, opt)
	if err != nil {
		return nil, err
	}
	scale := float64(opt.DPI) / 72.0
	pixW := max(1, int(math.Round(pg.W*scale)))
	pixH := max(1, int(math.Round(pg.H*scale)))
	m := vector.Scale(scale, scale).Mul(pg.m)

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)

	r := xvector.NewRasterizer(pixW, pixH)
	if opt.Fill.A > 0 {
		for cmd, pts := range outline(p, m) {
			switch cmd {
			case path.CmdMoveTo:
				r.MoveTo(float32(pts[0].X), float32(pts[0].Y))
			case path.CmdLineTo:
				r.LineTo(float32(pts[0].X), float32(pts[0].Y))
			case path.CmdQuadTo:
				r.QuadTo(float32(pts[0].X), float32(pts[0].Y), float32(pts[1].X), float32(pts[1].Y))
			case path.CmdCubeTo:
				r.CubeTo(float32(pts[0].X), float32(pts[0].Y), float32(pts[1].X), float32(pts[1].Y), float32(pts[2].X), float32(pts[2].Y))
			case path.CmdClose:
				r.ClosePath()
			}
		}
		r.Draw(img, img.Bounds(), image.NewUniform(opt.Fill), image.Point{})
	}

	// Half width in pixels; thinner lines would vanish.
	hw := math.Max(opt.StrokeWidth*scale/2, 0.5)
	r.Reset(pixW, pixH)
	for _, pl := range flatten(outline(p, m), flattenTolerance) {
		strokePolyline(r, pl, hw)
	}
	r.Draw(img, img.Bounds(), image.NewUniform(opt.Stroke), image.Point{})

	if opt.ShowAnchors {
		h := anchorSize / 2.0 * scale
		r.Reset(pixW, pixH)
		for _, mk := range anchors(p, m) {
			rect(r, mk.at, h)
		}
		r.Draw(img, img.Bounds(), image.NewUniform(anchorBlue), image.Point{})
	}
	if opt.Label {
		face, err := labelFace(opt.LabelFont, opt.DPI)
		if err != nil {
			return nil, err
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot:  fixed.P(4, 4+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(p.Name)
	}
	return img, nil
}

type polyline struct {
	pts    []vec.Vec2
	closed bool
}

// flatten approximates curves by line segments no further than tol from the curve.
func flatten(o path.Path, tol float64) []polyline {
	var out []polyline
	var cur *polyline
	for cmd, pts := range o {
		switch cmd {
		case path.CmdMoveTo:
			out = append(out, polyline{pts: []vec.Vec2{pts[0]}})
			cur = &out[len(out)-1]
		case path.CmdLineTo:
			cur.pts = append(cur.pts, pts[0])
		case path.CmdQuadTo:
			p0 := cur.pts[len(cur.pts)-1]
			// degree elevation
			c1 := p0.Add(pts[0].Sub(p0).Mul(2.0 / 3))
			c2 := pts[1].Add(pts[0].Sub(pts[1]).Mul(2.0 / 3))
			cur.pts = appendCubic(cur.pts, p0, c1, c2, pts[1], tol)
		case path.CmdCubeTo:
			p0 := cur.pts[len(cur.pts)-1]
			cur.pts = appendCubic(cur.pts, p0, pts[0], pts[1], pts[2], tol)
		case path.CmdClose:
			cur.closed = true
		}
	}
	return out
}

func appendCubic(dst []vec.Vec2, p0, p1, p2, p3 vec.Vec2, tol float64) []vec.Vec2 {
	// The control polygon bounds the arc length, which is enough to pick a step count.
	l := p1.Sub(p0).Length() + p2.Sub(p1).Length() + p3.Sub(p2).Length()
	n := int(math.Ceil(math.Sqrt(l / tol)))
	n = min(max(n, 1), 256)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		u := 1 - t
		dst = append(dst, vec.Vec2{
			X: u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X,
			Y: u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y,
		})
	}
	return dst
}

// strokePolyline adds one quad per segment plus a square cap at every vertex, which
// covers the joins well enough for a preview. Quads and squares share one winding
// direction, so overlaps do not cancel.
func strokePolyline(r *xvector.Rasterizer, pl polyline, hw float64) {
	n := len(pl.pts)
	segs := n - 1
	if pl.closed {
		segs = n
	}
	for i := 0; i < segs; i++ {
		a, b := pl.pts[i], pl.pts[(i+1)%n]
		d := b.Sub(a)
		l := d.Length()
		if l == 0 {
			continue
		}
		nv := vec.Vec2{X: -d.Y / l * hw, Y: d.X / l * hw}
		r.MoveTo(float32(a.X-nv.X), float32(a.Y-nv.Y))
		r.LineTo(float32(b.X-nv.X), float32(b.Y-nv.Y))
		r.LineTo(float32(b.X+nv.X), float32(b.Y+nv.Y))
		r.LineTo(float32(a.X+nv.X), float32(a.Y+nv.Y))
		r.ClosePath()
	}
	for _, v := range pl.pts {
		rect(r, v, hw)
	}
}

// rect adds an axis-aligned square of half size h centred on c.
func rect(r *xvector.Rasterizer, c vec.Vec2, h float64) {
	r.MoveTo(float32(c.X-h), float32(c.Y-h))
	r.LineTo(float32(c.X+h), float32(c.Y-h))
	r.LineTo(float32(c.X+h), float32(c.Y+h))
	r.LineTo(float32(c.X-h), float32(c.Y+h))
	r.ClosePath()
}
