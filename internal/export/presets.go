/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"shaperounder/internal/vector"
)

// Format is an output file type.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// ParseFormat accepts a format name or a file extension with or without the dot.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatSVG, FormatPDF, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// Write renders p in the given format.
func Write(w io.Writer, f Format, p vector.Path, opt Options) error {
	switch f {
	case FormatSVG:
		return SVG(w, p, opt)
	case FormatPDF:
		return PDF(w, p, opt)
	case FormatPNG:
		return PNG(w, p, opt)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// WriteFile renders p into outPath, choosing the format from the extension. Missing
// directories are created. Nothing is written when rendering fails.
func WriteFile(outPath string, p vector.Path, opt Options) error {
	f, err := ParseFormat(filepath.Ext(outPath))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, f, p, opt); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f, err)
	}
	return nil
}

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetPreview is for checking a rounding on screen: anchors and name are shown.
	PresetPreview PresetName = "preview"
	// PresetPrint produces clean high-resolution output.
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of several paths in several formats.
//
// Files are written to <OutDir>/<format>/<name>.<format>, where name is the path name
// reduced to a file-system friendly slug.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset      PresetName
	Formats     []string // allowed: svg, pdf, png; empty means preset defaults
	DPIOverride int      // when > 0 overrides the preset DPI
	ShowAnchors *bool    // when set, overrides the preset's default
	YAxis       vector.YAxis
	OutDir      string // defaults to the preset name in the working directory
	LabelFont   string
}

// BatchExport writes every path in every requested format and returns the files created.
func BatchExport(paths []vector.Path, opt BatchOptions) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to export")
	}
	names := opt.Formats
	if len(names) == 0 {
		names = presetDefaultFormats(opt.Preset)
	}
	formats := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	eo := presetOptions(opt.Preset)
	eo.YAxis = opt.YAxis
	eo.LabelFont = opt.LabelFont
	if opt.DPIOverride > 0 {
		eo.DPI = opt.DPIOverride
	}
	if opt.ShowAnchors != nil {
		eo.ShowAnchors = *opt.ShowAnchors
	}

	var written []string
	for _, p := range paths {
		for _, f := range formats {
			out := filepath.Join(baseOut, string(f), Slug(p.Name)+"."+string(f))
			if err := WriteFile(out, p, eo); err != nil {
				return written, fmt.Errorf("%s %q: %w", f, p.Name, err)
			}
			written = append(written, out)
		}
	}
	return written, nil
}

var slugRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug turns a path name into a file name stem, e.g. "box (Rounded)" becomes "box-Rounded".
func Slug(name string) string {
	s := strings.Trim(slugRE.ReplaceAllString(name, "-"), "-.")
	if s == "" {
		return "path"
	}
	return s
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetPreview:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"svg"}
	}
}

func presetOptions(p PresetName) Options {
	switch p {
	case PresetPreview:
		return Options{DPI: 96, ShowAnchors: true, Label: true}
	case PresetPrint:
		return Options{DPI: 300}
	default:
		return Options{}
	}
}
