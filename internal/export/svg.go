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
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"seehuhn.de/go/geom/path"

	"shaperounder/internal/vector"
)

// SVG writes p as a standalone SVG document. The viewBox is in points; width and height
// are in pixels at opt.DPI.
func SVG(w io.Writer, p vector.Path, opt Options) error {
	opt = opt.withDefaults()
	pg, err := layout(p, opt)
	if err != nil {
		return err
	}
	scale := float64(opt.DPI) / 72.0
	pxW := int(math.Round(pg.W * scale))
	pxH := int(math.Round(pg.H * scale))

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %s %s\">\n", pxW, pxH, num(pg.W), num(pg.H))
	wf("  <title>%s</title>\n", escText(p.Name))
	wf("  <rect x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" fill=\"#ffffff\"/>\n", num(pg.W), num(pg.H))

	fill := "none"
	if opt.Fill.A > 0 {
		fill = svgColor(opt.Fill)
	}
	wf("  <path d=\"%s\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%s\" stroke-linejoin=\"round\"/>\n",
		pathData(outline(p, pg.m)), fill, svgColor(opt.Stroke), num(opt.StrokeWidth))

	if opt.ShowAnchors {
		ac := svgColor(anchorBlue)
		h := anchorSize / 2.0
		for _, mk := range anchors(p, pg.m) {
			if mk.smooth {
				wf("  <circle cx=\"%s\" cy=\"%s\" r=\"%s\" fill=\"#ffffff\" stroke=\"%s\" stroke-width=\"0.5\"/>\n", num(mk.at.X), num(mk.at.Y), num(h), ac)
			} else {
				wf("  <rect x=\"%s\" y=\"%s\" width=\"%d\" height=\"%d\" fill=\"#ffffff\" stroke=\"%s\" stroke-width=\"0.5\"/>\n", num(mk.at.X-h), num(mk.at.Y-h), anchorSize, anchorSize, ac)
			}
		}
	}
	if opt.Label {
		wf("  <text x=\"4\" y=\"12\" font-family=\"%s\" font-size=\"9\" fill=\"#000\">%s</text>\n", escAttr("Helvetica, Arial, sans-serif"), escText(p.Name))
	}
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// pathData renders drawing commands in SVG path syntax.
func pathData(o path.Path) string {
	var sb strings.Builder
	for cmd, pts := range o {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		switch cmd {
		case path.CmdMoveTo:
			sb.WriteString("M")
		case path.CmdLineTo:
			sb.WriteString("L")
		case path.CmdQuadTo:
			sb.WriteString("Q")
		case path.CmdCubeTo:
			sb.WriteString("C")
		case path.CmdClose:
			sb.WriteString("Z")
		}
		for _, v := range pts {
			sb.WriteByte(' ')
			sb.WriteString(num(v.X))
			sb.WriteByte(' ')
			sb.WriteString(num(v.Y))
		}
	}
	return sb.String()
}

// num formats v with at most three decimals and no trailing zeros.
func num(v float64) string {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	// naive escaping sufficient for our simple usage
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
