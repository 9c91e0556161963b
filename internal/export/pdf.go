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
	"image/color"
	"io"

	"github.com/jung-kurt/gofpdf"
	"seehuhn.de/go/geom/path"

	"shaperounder/internal/vector"
)

// PDF writes p as a single-page vector PDF. Units are points, so the page has the same
// size as the SVG viewBox. DPI is ignored.
func PDF(w io.Writer, p vector.Path, opt Options) error {
	opt = opt.withDefaults()
	pg, err := layout(p, opt)
	if err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pg.W, Ht: pg.H},
	})
	pdf.SetTitle(p.Name, true)
	pdf.SetAuthor("Shape Rounder", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: pg.W, Ht: pg.H})

	setDrawColor(pdf, opt.Stroke)
	pdf.SetLineWidth(opt.StrokeWidth)
	pdf.SetLineJoinStyle("round")
	style := "D"
	if opt.Fill.A > 0 {
		setFillColor(pdf, opt.Fill)
		style = "FD"
	}
	drawOutline(pdf, outline(p, pg.m))
	pdf.DrawPath(style)

	if opt.ShowAnchors {
		setDrawColor(pdf, anchorBlue)
		setFillColor(pdf, white)
		pdf.SetLineWidth(0.5)
		h := anchorSize / 2.0
		for _, mk := range anchors(p, pg.m) {
			if mk.smooth {
				pdf.Circle(mk.at.X, mk.at.Y, h, "FD")
			} else {
				pdf.Rect(mk.at.X-h, mk.at.Y-h, anchorSize, anchorSize, "FD")
			}
		}
	}
	if opt.Label {
		// Built-in Helvetica keeps text vector without embedding
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(4, 12, p.Name)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawOutline(pdf *gofpdf.Fpdf, o path.Path) {
	for cmd, pts := range o {
		switch cmd {
		case path.CmdMoveTo:
			pdf.MoveTo(pts[0].X, pts[0].Y)
		case path.CmdLineTo:
			pdf.LineTo(pts[0].X, pts[0].Y)
		case path.CmdQuadTo:
			pdf.CurveTo(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y)
		case path.CmdCubeTo:
			pdf.CurveBezierCubicTo(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y, pts[2].X, pts[2].Y)
		case path.CmdClose:
			pdf.ClosePath()
		}
	}
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
