package parser

import (
	"strings"
	"testing"
)

func TestParse_TitleAndBody(t *testing.T) {
	input := []byte(`<div data-schema-version="3"><h1>Hello</h1><p>Body text.</p></div>`)
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if !strings.Contains(r.Body, "Body text.") {
		t.Errorf("body = %q", r.Body)
	}
	if r.SchemaVersion != 3 {
		t.Errorf("schema version = %d, want 3", r.SchemaVersion)
	}
}

func TestParse_NoHeadingFallsBackToFirstBlock(t *testing.T) {
	input := []byte(`<p>Just a paragraph.</p><p>More text.</p>`)
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Just a paragraph." {
		t.Errorf("title = %q", r.Title)
	}
}

func TestParse_LaterHeadingWins(t *testing.T) {
	input := []byte(`<p>intro</p><h2>My Heading</h2><p>more</p>`)
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "My Heading" {
		t.Errorf("title = %q, want %q", r.Title, "My Heading")
	}
}

func TestParse_TitleTruncated(t *testing.T) {
	long := strings.Repeat("x", 300)
	r, err := Parse([]byte("<h1>" + long + "</h1>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len([]rune(r.Title)) != maxDerivedTitle {
		t.Errorf("title length = %d, want %d", len([]rune(r.Title)), maxDerivedTitle)
	}
}

func TestParse_CitationURIs(t *testing.T) {
	input := []byte(`<p>See <span class="citation" data-citation="` +
		`{&quot;citationItems&quot;:[{&quot;uris&quot;:[&quot;http://zotero.org/users/1/items/AAAA&quot;]}]}` +
		`">(Doe 2020)</span> and <span class="citation" data-citation="` +
		`{&quot;citationItems&quot;:[{&quot;uris&quot;:[&quot;http://zotero.org/users/1/items/AAAA&quot;]}]}` +
		`">(Doe 2020)</span>.</p>`)
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Citations) != 1 {
		t.Fatalf("citations = %v, want 1 deduplicated uri", r.Citations)
	}
	if r.Citations[0] != "http://zotero.org/users/1/items/AAAA" {
		t.Errorf("uri = %q", r.Citations[0])
	}
}

func TestFlattenURIs_PreservesOrder(t *testing.T) {
	got := flattenURIs([][]string{{"b", "a"}, {"a", "c"}})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
