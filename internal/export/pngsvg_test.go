/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"seehuhn.de/go/geom/vec"

	"shaperounder/internal/vector"
)

var red = color.RGBA{R: 255, A: 255}

func pt(x, y float64) vec.Vec2 { return vec.Vec2{X: x, Y: y} }

func square(name string) vector.Path {
	return vector.Path{Name: name, SubPaths: []vector.SubPath{{
		Closed: true,
		Points: []vector.AnchorPoint{
			vector.CornerAt(pt(0, 0)),
			vector.CornerAt(pt(100, 0)),
			vector.CornerAt(pt(100, 100)),
			vector.CornerAt(pt(0, 100)),
		},
	}}}
}

// roundedEdge has one smooth point whose handles turn the first segment into a curve.
func roundedEdge() vector.Path {
	return vector.Path{Name: "arc", SubPaths: []vector.SubPath{{
		Points: []vector.AnchorPoint{
			{Anchor: pt(0, 0), Left: pt(0, 0), Right: pt(55.23, 0), Kind: vector.Smooth},
			vector.CornerAt(pt(100, 100)),
		},
	}}}
}

func TestSVGDrawsOutline(t *testing.T) {
	var buf bytes.Buffer
	if err := SVG(&buf, square("a <b>"), Options{DPI: 144, Margin: 10}); err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := buf.String()
	for _, want := range []string{
		`width="240px" height="240px" viewBox="0 0 120 120"`,
		`<title>a &lt;b&gt;</title>`,
		`d="M 10 10 L 110 10 L 110 110 L 10 110 Z" fill="none" stroke="#000000" stroke-width="1"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg lacks %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "<text") {
		t.Fatalf("label drawn without Label option")
	}
}

func TestSVGAnchorsAndFill(t *testing.T) {
	var buf bytes.Buffer
	p := square("box")
	p.SubPaths[0].Points[1].Kind = vector.Smooth
	if err := SVG(&buf, p, Options{Fill: red, ShowAnchors: true, Label: true}); err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := buf.String()
	// background plus three corner markers
	if n := strings.Count(s, "<rect "); n != 4 {
		t.Fatalf("got %d rects", n)
	}
	if n := strings.Count(s, "<circle "); n != 1 {
		t.Fatalf("got %d circles", n)
	}
	if !strings.Contains(s, `fill="#ff0000"`) || !strings.Contains(s, ">box</text>") {
		t.Fatalf("fill or label missing:\n%s", s)
	}
}

func TestSVGFlipsYUp(t *testing.T) {
	var buf bytes.Buffer
	p := vector.Path{Name: "l", SubPaths: []vector.SubPath{{
		Points: []vector.AnchorPoint{vector.CornerAt(pt(0, 0)), vector.CornerAt(pt(0, 50))},
	}}}
	if err := SVG(&buf, p, Options{Margin: -1, YAxis: vector.YUp}); err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(buf.String(), `d="M 0 50 L 0 0"`) {
		t.Fatalf("y axis not flipped:\n%s", buf.String())
	}
}

func TestPathDataEmitsCurves(t *testing.T) {
	d := pathData(outline(roundedEdge(), vector.Identity))
	if d != "M 0 0 C 55.23 0 100 100 100 100" {
		t.Fatalf("d = %q", d)
	}
}

func TestNum(t *testing.T) {
	cases := map[float64]string{2: "2", 1.23456: "1.235", -0.0001: "0", -3.5: "-3.5"}
	for in, want := range cases {
		if got := num(in); got != want {
			t.Fatalf("num(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEmptyPathIsRejected(t *testing.T) {
	var buf bytes.Buffer
	empty := vector.Path{Name: "nothing", SubPaths: []vector.SubPath{{Closed: true}}}
	if err := SVG(&buf, empty, Options{}); err == nil {
		t.Fatalf("svg of empty path accepted")
	}
	if err := PNG(&buf, empty, Options{}); err == nil {
		t.Fatalf("png of empty path accepted")
	}
	if buf.Len() != 0 {
		t.Fatalf("output written for empty path")
	}
}

func TestRasterFillAndStroke(t *testing.T) {
	img, err := Raster(square("box"), Options{DPI: 72, Margin: 10, Fill: red})
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Fatalf("bounds = %v", b)
	}
	if c := img.RGBAAt(60, 60); c != red {
		t.Fatalf("centre = %v", c)
	}
	if c := img.RGBAAt(2, 2); c != white {
		t.Fatalf("margin = %v", c)
	}
	if c := img.RGBAAt(9, 60); c == white {
		t.Fatalf("left edge not stroked")
	}
}

func TestRasterFlipsYUp(t *testing.T) {
	tri := vector.Path{Name: "tri", SubPaths: []vector.SubPath{{
		Closed: true,
		Points: []vector.AnchorPoint{
			vector.CornerAt(pt(0, 0)),
			vector.CornerAt(pt(100, 0)),
			vector.CornerAt(pt(0, 100)),
		},
	}}}
	down, err := Raster(tri, Options{DPI: 72, Margin: 10, Fill: red})
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	up, err := Raster(tri, Options{DPI: 72, Margin: 10, Fill: red, YAxis: vector.YUp})
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	if down.RGBAAt(90, 15) != red || up.RGBAAt(90, 15) != white {
		t.Fatalf("top right: down=%v up=%v", down.RGBAAt(90, 15), up.RGBAAt(90, 15))
	}
	if up.RGBAAt(20, 100) != red {
		t.Fatalf("bottom left: up=%v", up.RGBAAt(20, 100))
	}
}

func TestPNGEncodesWithLabel(t *testing.T) {
	var plain, labelled bytes.Buffer
	if err := PNG(&plain, square("box"), Options{DPI: 96}); err != nil {
		t.Fatalf("png: %v", err)
	}
	if err := PNG(&labelled, square("box"), Options{DPI: 96, Label: true, ShowAnchors: true}); err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(labelled.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// (100 + 2*18) pt at 96 dpi
	if b := img.Bounds(); b.Dx() != 181 || b.Dy() != 181 {
		t.Fatalf("bounds = %v", b)
	}
	if bytes.Equal(plain.Bytes(), labelled.Bytes()) {
		t.Fatalf("label and anchors left no trace")
	}
}

func TestLabelWithFontFile(t *testing.T) {
	fontPath := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	if err := os.WriteFile(fontPath, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	bitmap, err := Raster(square("box"), Options{DPI: 96, Label: true})
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	ttf, err := Raster(square("box"), Options{DPI: 96, Label: true, LabelFont: fontPath})
	if err != nil {
		t.Fatalf("raster with font: %v", err)
	}
	if bytes.Equal(bitmap.Pix, ttf.Pix) {
		t.Fatalf("font file made no difference")
	}

	_, err = Raster(square("box"), Options{Label: true, LabelFont: filepath.Join(t.TempDir(), "missing.ttf")})
	if err == nil || !strings.Contains(err.Error(), "read font") {
		t.Fatalf("missing font: err = %v", err)
	}
	// the font only matters when a label is drawn
	if _, err := Raster(square("box"), Options{LabelFont: "missing.ttf"}); err != nil {
		t.Fatalf("unlabelled raster: %v", err)
	}
}

func TestFlattenStaysOnCurve(t *testing.T) {
	// quarter circle of radius 100 around the origin
	const k = 0.5523
	arc := vector.Path{SubPaths: []vector.SubPath{{
		Points: []vector.AnchorPoint{
			{Anchor: pt(100, 0), Left: pt(100, 0), Right: pt(100, 100*k), Kind: vector.Smooth},
			{Anchor: pt(0, 100), Left: pt(100*k, 100), Right: pt(0, 100), Kind: vector.Smooth},
		},
	}}}
	pls := flatten(arc.Outline(), flattenTolerance)
	if len(pls) != 1 || pls[0].closed {
		t.Fatalf("polylines = %+v", pls)
	}
	if len(pls[0].pts) < 10 {
		t.Fatalf("only %d points", len(pls[0].pts))
	}
	for _, v := range pls[0].pts {
		if d := math.Abs(v.Length() - 100); d > 0.1 {
			t.Fatalf("point %v is %.3f off the circle", v, d)
		}
	}
}
