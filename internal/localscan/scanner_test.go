package localscan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

func TestInferFromTokens(t *testing.T) {
	cases := []struct {
		stem   string
		weight int
		style  font.Style
		ok     bool
	}{
		{"Barlow-Thin", 100, font.StyleNormal, true},
		{"Barlow-Regular", 400, font.StyleNormal, true},
		{"Barlow-Italic", 400, font.StyleItalic, true},
		{"Barlow-BoldItalic", 700, font.StyleItalic, true},
		{"Barlow_Semi_Bold", 600, font.StyleNormal, true},
		{"Barlow-ExtraBold-Oblique", 800, font.StyleItalic, true},
		{"barlow-700", 700, font.StyleNormal, true},
		{"barlow 400italic", 400, font.StyleItalic, true},
		{"Barlow-Black", 900, font.StyleNormal, true},
		{"Barlow", 400, font.StyleNormal, false},
		{"Barlow-Condensed", 400, font.StyleNormal, false},
	}
	for _, tc := range cases {
		got := inferFromTokens(splitStem(tc.stem))
		if got.weight != tc.weight || got.style != tc.style || got.confident != tc.ok {
			t.Fatalf("%s: got %+v, want %d %s confident=%v", tc.stem, got, tc.weight, tc.style, tc.ok)
		}
	}
}

func TestScanInfersFamilyAndVariants(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "Open Sans-Regular.ttf", goregular.TTF)
	writeFont(t, dir, "Open Sans-Bold.ttf", gobold.TTF)
	writeFont(t, dir, "Open Sans-BoldItalic.woff2", []byte("wOF2"))
	writeFont(t, dir, "readme.txt", []byte("ignored"))

	result, err := newScanner(t).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Family != "Open-Sans" || result.DisplayName != "Open Sans" {
		t.Fatalf("unexpected family %q / %q", result.Family, result.DisplayName)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %+v", result.Items)
	}
	want := []font.Descriptor{
		{Family: "Open-Sans", Weight: 400, Style: font.StyleNormal, Format: font.FormatTTF},
		{Family: "Open-Sans", Weight: 700, Style: font.StyleItalic, Format: font.FormatWOFF2},
		{Family: "Open-Sans", Weight: 700, Style: font.StyleNormal, Format: font.FormatTTF},
	}
	for i, d := range want {
		if result.Items[i].Descriptor != d {
			t.Fatalf("item %d: got %+v want %+v", i, result.Items[i].Descriptor, d)
		}
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", result.Warnings)
	}
}

func TestScanExplicitFamilyAndUnknownNames(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "mystery.woff", []byte("wOFF"))

	result, err := newScanner(t).Scan(context.Background(), dir, "  My   Brand ")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Family != "My Brand" {
		t.Fatalf("explicit family should be used, got %q", result.Family)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %+v", result.Items)
	}
	d := result.Items[0].Descriptor
	if d.Weight != 400 || d.Style != font.StyleNormal || d.Format != font.FormatWOFF {
		t.Fatalf("unknown name should default to 400 normal, got %+v", d)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0].Path, "mystery.woff") {
		t.Fatalf("expected one warning for mystery.woff, got %+v", result.Warnings)
	}
}

func TestScanUsesFontTablesWhenNameIsUnhelpful(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "a.ttf", gobolditalic.TTF)
	writeFont(t, dir, "b.ttf", goregular.TTF)

	result, err := newScanner(t).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if !strings.HasPrefix(result.Family, "Go") {
		t.Fatalf("family should come from the embedded name table, got %q", result.Family)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", result.Items)
	}
	if d := result.Items[0].Descriptor; d.Weight != 400 || d.Style != font.StyleNormal {
		t.Fatalf("regular metadata mismatch: %+v", d)
	}
	if d := result.Items[1].Descriptor; d.Weight != 700 || d.Style != font.StyleItalic {
		t.Fatalf("bold italic metadata mismatch: %+v", d)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("metadata inference should not warn: %+v", result.Warnings)
	}
}

func TestScanWarnsOnDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "Inter-Bold.ttf", gobold.TTF)
	writeFont(t, dir, "Inter-700.ttf", gobold.TTF)

	result, err := newScanner(t).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Family != "Inter" {
		t.Fatalf("unexpected family %q", result.Family)
	}
	if len(result.Items) != 1 || len(result.Warnings) != 1 {
		t.Fatalf("duplicate should be skipped with a warning: %+v / %+v", result.Items, result.Warnings)
	}
	if !strings.HasSuffix(result.Items[0].SourcePath, "Inter-700.ttf") {
		t.Fatalf("first file in name order should win, got %s", result.Items[0].SourcePath)
	}
}

func TestScanEmptyAndMissingFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Empty Fonts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	result, err := newScanner(t).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("empty folder should not error: %v", err)
	}
	if len(result.Items) != 0 || result.Family != "Empty-Fonts" {
		t.Fatalf("unexpected result %+v", result)
	}

	_, err = newScanner(t).Scan(context.Background(), filepath.Join(dir, "missing"), "")
	var fsErr *font.FilesystemError
	if !errors.As(err, &fsErr) || fsErr.Kind != font.FilesystemNotFound {
		t.Fatalf("expected not_found filesystem error, got %v", err)
	}
}

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	return NewScanner(store)
}

func writeFont(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestScanInfersFamilyFromCommonPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "MyFont-Bold.ttf", gobold.TTF)
	writeFont(t, dir, "MyFont-Regular.ttf", goregular.TTF)

	result, err := newScanner(t).Scan(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Family != "MyFont" {
		t.Fatalf("expected MyFont, got %q", result.Family)
	}
	want := []font.Descriptor{
		{Family: "MyFont", Weight: 400, Style: font.StyleNormal, Format: font.FormatTTF},
		{Family: "MyFont", Weight: 700, Style: font.StyleNormal, Format: font.FormatTTF},
	}
	if len(result.Items) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), result.Items)
	}
	for i, d := range want {
		if result.Items[i].Descriptor != d {
			t.Fatalf("item %d: got %+v want %+v", i, result.Items[i].Descriptor, d)
		}
	}
}
