package catalog

import (
	"errors"
	"testing"

	"github.com/font-hub/font-hub/internal/font"
)

const googleStyle = `/* cyrillic */
@font-face {
  font-family: 'Barlow';
  font-style: normal;
  font-weight: 400;
  font-display: swap;
  src: url(https://fonts.gstatic.com/s/barlow/v12/cyr.woff2) format('woff2');
  unicode-range: U+0400-045F, U+0490-0491;
}
/* latin */
@font-face {
  font-family: 'Barlow';
  font-style: normal;
  font-weight: 400;
  font-display: swap;
  src: url(https://fonts.gstatic.com/s/barlow/v12/latin.woff2) format('woff2');
  unicode-range: U+0000-00FF, U+0131, U+0152-0153;
}
@font-face {
  font-family: "Barlow";
  font-style: italic;
  font-weight: bold;
  src: local('Barlow Bold Italic'),
       url("https://cdn.test/barlow-700i.ttf") format("truetype"),
       url("https://cdn.test/barlow-700i.woff") format("woff");
}
`

func TestParsePrefersLatinSubsetAndBestFormat(t *testing.T) {
	variants, err := Parse(googleStyle)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d: %+v", len(variants), variants)
	}

	regular := variants[0]
	if regular.Descriptor.Weight != 400 || regular.Descriptor.Style != font.StyleNormal {
		t.Fatalf("unexpected first variant %+v", regular.Descriptor)
	}
	if regular.SourceURL != "https://fonts.gstatic.com/s/barlow/v12/latin.woff2" {
		t.Fatalf("latin subset should win, got %s", regular.SourceURL)
	}

	boldItalic := variants[1]
	if boldItalic.Descriptor.Weight != 700 || boldItalic.Descriptor.Style != font.StyleItalic {
		t.Fatalf("unexpected second variant %+v", boldItalic.Descriptor)
	}
	if boldItalic.Descriptor.Format != font.FormatWOFF || boldItalic.SourceURL != "https://cdn.test/barlow-700i.woff" {
		t.Fatalf("woff should beat ttf, got %+v", boldItalic)
	}
	if boldItalic.Descriptor.Family != "Barlow" {
		t.Fatalf("family should be unquoted, got %q", boldItalic.Descriptor.Family)
	}
}

func TestParseWeightAndStyleForms(t *testing.T) {
	css := `@charset "utf-8";
body { font-family: serif; }
@media print { .x { color: red } }
@font-face { font-family: Inter; font-weight: 100 900; font-style: oblique 10deg; src: url(/fonts/inter.woff2); }
@font-face { font-family: Inter; font-weight: normal; src: url(/fonts/inter-regular.otf?v=2) }
@font-face { font-family: Inter; src: local(Inter) }
`
	variants, err := Parse(css)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %+v", variants)
	}
	if d := variants[0].Descriptor; d.Weight != 100 || d.Style != font.StyleItalic || d.Format != font.FormatWOFF2 {
		t.Fatalf("unexpected variable variant %+v", d)
	}
	if d := variants[1].Descriptor; d.Weight != 400 || d.Style != font.StyleNormal || d.Format != font.FormatOTF {
		t.Fatalf("unexpected regular variant %+v", d)
	}
}

func TestParseEmptyIsNotAnError(t *testing.T) {
	variants, err := Parse("/* nothing here */ body { margin: 0 }")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(variants) != 0 {
		t.Fatalf("expected no variants, got %d", len(variants))
	}
}

func TestParseMalformedInput(t *testing.T) {
	cases := map[string]string{
		"unterminated comment": "/* open",
		"unterminated block":   "@font-face { font-family: X; src: url(a.woff2)",
		"missing colon":        "@font-face { font-family X; }",
		"unterminated url":     "@font-face { src: url(https://a.test/x.woff2 }",
		"unterminated string":  "@font-face { font-family: 'Broken\n; }",
		"stray brace":          "}",
		"bad weight":           "@font-face { font-family: X; font-weight: heavy; src: url(a.woff2) }",
		"missing brace":        "@font-face font-family: X;",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			var parseErr *font.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Offset < 0 || parseErr.Offset > len(input) {
				t.Fatalf("offset out of range: %d", parseErr.Offset)
			}
		})
	}
}

func TestCoversRune(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"U+0000-00FF", true},
		{"U+00??", true},
		{"U+0041", true},
		{"U+0400-045F, U+0490", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		if got := coversRune(tc.value, 'A'); got != tc.want {
			t.Fatalf("coversRune(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParseSelectsWOFF2OverWOFF(t *testing.T) {
	text := `@font-face {
  font-family: 'Barlow';
  font-weight: 400;
  src: url(https://cdn.test/barlow-400.woff2) format('woff2'), url(https://cdn.test/barlow-400.woff) format('woff');
}
@font-face {
  font-family: 'Barlow';
  font-weight: 700;
  src: url(https://cdn.test/barlow-700.woff2) format('woff2');
}`
	variants, err := Parse(text)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(variants))
	}
	for i, weight := range []int{400, 700} {
		d := variants[i].Descriptor
		if d.Weight != weight || d.Style != font.StyleNormal || d.Format != font.FormatWOFF2 {
			t.Fatalf("variant %d: unexpected descriptor %+v", i, d)
		}
	}
}
