/*
 * Copyright (c) 2025
 */
package export

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shaperounder/internal/vector"
)

func checkFiles(t *testing.T, files []string) {
	t.Helper()
	for _, p := range files {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_PreviewPreset(t *testing.T) {
	root := t.TempDir()
	got, err := BatchExport([]vector.Path{square("box (Rounded)"), roundedEdge()}, BatchOptions{Preset: PresetPreview, OutDir: root})
	if err != nil {
		t.Fatalf("batch export preview: %v", err)
	}
	want := []string{
		filepath.Join(root, "png", "arc.png"),
		filepath.Join(root, "png", "box-Rounded.png"),
		filepath.Join(root, "svg", "arc.svg"),
		filepath.Join(root, "svg", "box-Rounded.svg"),
	}
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	checkFiles(t, got)
}

func TestBatchExport_PrintPreset(t *testing.T) {
	root := t.TempDir()
	anchors := true
	got, err := BatchExport([]vector.Path{square("box")}, BatchOptions{Preset: PresetPrint, OutDir: root, DPIOverride: 72, ShowAnchors: &anchors})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	want := []string{filepath.Join(root, "pdf", "box.pdf"), filepath.Join(root, "png", "box.png")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	checkFiles(t, got)
}

func TestBatchExport_Errors(t *testing.T) {
	if _, err := BatchExport(nil, BatchOptions{}); err == nil {
		t.Fatalf("no paths accepted")
	}
	root := t.TempDir()
	if _, err := BatchExport([]vector.Path{square("box")}, BatchOptions{Formats: []string{"svg", "tiff"}, OutDir: root}); err == nil {
		t.Fatalf("unknown format accepted")
	}
	if entries, _ := os.ReadDir(root); len(entries) != 0 {
		t.Fatalf("files written before format check: %v", entries)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"svg": FormatSVG, ".PNG": FormatPNG, " pdf ": FormatPDF} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("cbz"); err == nil {
		t.Fatalf("cbz accepted")
	}
	out := filepath.Join(t.TempDir(), "box.gif")
	if err := WriteFile(out, square("box"), Options{}); err == nil {
		t.Fatalf("gif accepted")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("file written for unknown format")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"box", "box"},
		{"box (Rounded)", "box-Rounded"},
		{"box (Rounded) (20250102-030405)", "box-Rounded-20250102-030405"},
		{"../etc/passwd", "etc-passwd"},
		{"  ", "path"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
