package rtf

import (
	"strings"
	"testing"
)

func conv(t *testing.T, src string) string {
	t.Helper()
	return ToHTML(src, Options{})
}

func TestBasicFormatting(t *testing.T) {
	got := conv(t, `{\rtf1\ansi {\b bold} plain\par}`)
	want := `<p><b>bold</b> plain</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestItalicUnderlineStrike(t *testing.T) {
	got := conv(t, `{\rtf1 {\i it}{\ul un}{\strike st}\par}`)
	if !strings.Contains(got, "<i>it</i>") ||
		!strings.Contains(got, "<u>un</u>") ||
		!strings.Contains(got, "<s>st</s>") {
		t.Errorf("got %q", got)
	}
}

func TestGroupRestoresStyle(t *testing.T) {
	got := conv(t, `{\rtf1 a{\b b}c\par}`)
	want := `<p>a<b>b</b>c</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPlainResetsStyle(t *testing.T) {
	got := conv(t, `{\rtf1 {\b bold \plain normal}\par}`)
	want := `<p><b>bold </b>normal</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBoldOffWithZeroParam(t *testing.T) {
	got := conv(t, `{\rtf1 \b on\b0 off\par}`)
	want := `<p><b>on</b>off</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRunCoalescing(t *testing.T) {
	// Adjacent characters with identical style must land in one run.
	got := conv(t, `{\rtf1 \b abc\par}`)
	if strings.Count(got, "<b>") != 1 {
		t.Errorf("runs not coalesced: %q", got)
	}
}

func TestLineBreak(t *testing.T) {
	got := conv(t, `{\rtf1 a\line b\par}`)
	want := `<p>a<br>b</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEscapedBraces(t *testing.T) {
	got := conv(t, `{\rtf1 \{literal\}\par}`)
	want := `<p>{literal}</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnicodeEscapeWithFallback(t *testing.T) {
	// 8212 is an em dash; the following "?" is the ANSI fallback and must
	// be skipped.
	got := conv(t, "{\\rtf1 A\\u8212?B\\par}")
	if !strings.Contains(got, "A—B") {
		t.Errorf("got %q", got)
	}
}

func TestNegativeUnicodeParam(t *testing.T) {
	// \u-10179 wraps to 0x10000-10179 per the signed 16-bit convention.
	got := conv(t, `{\rtf1 \u-100?\par}`)
	if !strings.Contains(got, string(rune(-100+0x10000))) {
		t.Errorf("got %q", got)
	}
}

func TestHexEscapeLatin1(t *testing.T) {
	got := conv(t, `{\rtf1 caf\'e9\par}`)
	if !strings.Contains(got, "café") {
		t.Errorf("got %q", got)
	}
}

func TestHexEscapeCP1252(t *testing.T) {
	got := conv(t, `{\rtf1 \'93quoted\'94\par}`)
	if !strings.Contains(got, "“quoted”") {
		t.Errorf("got %q", got)
	}
}

func TestSymbolWords(t *testing.T) {
	got := conv(t, `{\rtf1 a\emdash b\endash c\bullet d\par}`)
	if !strings.Contains(got, "a—b–c•d") {
		t.Errorf("got %q", got)
	}
}

func TestTextEscapedForHTML(t *testing.T) {
	got := conv(t, `{\rtf1 a<b> & c\par}`)
	if strings.Contains(got, "<b>") {
		t.Errorf("markup leaked: %q", got)
	}
	if !strings.Contains(got, "a&lt;b&gt; &amp; c") {
		t.Errorf("got %q", got)
	}
}

func TestHeadingPromotion(t *testing.T) {
	opts := Options{HeadingSizes: map[int]int{48: 2}}
	got := ToHTML(`{\rtf1 \fs48 Big Title\par\fs24 body text\par}`, opts)
	if !strings.Contains(got, "<h2>Big Title</h2>") {
		t.Errorf("heading not promoted: %q", got)
	}
	if !strings.Contains(got, "<p>body text</p>") {
		t.Errorf("body demoted: %q", got)
	}
}

func TestHeadingPromotion_MixedSizesStayParagraph(t *testing.T) {
	opts := Options{HeadingSizes: map[int]int{48: 2}}
	got := ToHTML(`{\rtf1 \fs48 Part{\fs24 small}\par}`, opts)
	if strings.Contains(got, "<h2>") {
		t.Errorf("mixed-size paragraph promoted: %q", got)
	}
}

func TestBulletList(t *testing.T) {
	src := `{\rtf1{\*\listtext \bullet }\ls1 first\par{\*\listtext \bullet }\ls1 second\par\pard after\par}`
	got := conv(t, src)
	want := `<ul><li>first</li><li>second</li></ul><p>after</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOrderedListFromMarker(t *testing.T) {
	src := `{\rtf1{\*\listtext 1. }\ls1 one\par{\*\listtext 2. }\ls1 two\par}`
	got := conv(t, src)
	want := `<ol><li>one</li><li>two</li></ol>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNestedList(t *testing.T) {
	src := `{\rtf1` +
		`{\*\listtext \bullet }\ls1\ilvl0 parent\par` +
		`{\*\listtext \bullet }\ls1\ilvl1 child\par` +
		`{\*\listtext \bullet }\ls1\ilvl0 sibling\par}`
	got := conv(t, src)
	// The nested level attaches inside the parent item.
	want := `<ul><li>parent<ul><li>child</li></ul></li><li>sibling</li></ul>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTable(t *testing.T) {
	src := `{\rtf1\trowd\intbl A\cell B\cell\row\trowd\intbl C\cell D\cell\row}`
	got := conv(t, src)
	if strings.Count(got, "<table>") != 1 {
		t.Fatalf("tables = %d in %q", strings.Count(got, "<table>"), got)
	}
	if strings.Count(got, "<tr>") != 2 || strings.Count(got, "<td>") != 4 {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "<td>A</td><td>B</td>") {
		t.Errorf("cell order wrong: %q", got)
	}
}

func TestHyperlinkField(t *testing.T) {
	src := `{\rtf1{\field{\*\fldinst HYPERLINK "https://example.com/x"}{\fldrslt link text}}\par}`
	got := conv(t, src)
	if !strings.Contains(got, `<a href="https://example.com/x">link text</a>`) {
		t.Errorf("got %q", got)
	}
}

func TestHyperlinkAnchor(t *testing.T) {
	src := `{\rtf1{\field{\*\fldinst HYPERLINK \\l "sec2"}{\fldrslt see below}}\par}`
	got := conv(t, src)
	if !strings.Contains(got, `href="#sec2"`) {
		t.Errorf("got %q", got)
	}
}

func TestMonospaceFontBecomesPre(t *testing.T) {
	src := `{\rtf1{\fonttbl{\f0 Courier New;}}\f0 code here\par}`
	got := conv(t, src)
	if !strings.Contains(got, "<pre>code here</pre>") {
		t.Errorf("got %q", got)
	}
}

func TestColorTable(t *testing.T) {
	src := `{\rtf1{\colortbl;\red255\green0\blue0;}{\cf1 red text}\par}`
	got := conv(t, src)
	if !strings.Contains(got, `color: rgb(255, 0, 0)`) {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "red text") {
		t.Errorf("got %q", got)
	}
}

func TestSkipDestinations(t *testing.T) {
	src := `{\rtf1{\pict 89504e47}{\info junk}visible\par}`
	got := conv(t, src)
	want := `<p>visible</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnknownStarDestinationSkipped(t *testing.T) {
	got := conv(t, `{\rtf1{\*\themedata abc}keep\par}`)
	want := `<p>keep</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStrayClosingBraceIgnored(t *testing.T) {
	got := conv(t, `}{\rtf1 text\par}`)
	want := `<p>text</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestImplicitCloseAtEOF(t *testing.T) {
	// No trailing \par or closing braces: the open paragraph still renders.
	got := conv(t, `{\rtf1 dangling`)
	want := `<p>dangling</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmptyParagraphsDropped(t *testing.T) {
	got := conv(t, `{\rtf1 \par\par a\par\par}`)
	want := `<p>a</p>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSuperscriptSubscript(t *testing.T) {
	got := conv(t, `{\rtf1 x{\super 2} and H{\sub 2}O\par}`)
	if !strings.Contains(got, "<sup>2</sup>") || !strings.Contains(got, "<sub>2</sub>") {
		t.Errorf("got %q", got)
	}
}
