package htmlcodec

import (
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/schema"
)

var (
	testSchema = schema.Default()
	testParser = NewParser(testSchema)
)

func TestParseDocument_Container(t *testing.T) {
	input := `<div data-schema-version="3"><h2>Title</h2><p>Body</p></div>`
	doc, store, err := testParser.ParseDocument(input)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if store.SchemaVersion != 3 {
		t.Errorf("schema version = %d", store.SchemaVersion)
	}
	if len(doc.Content) != 2 {
		t.Fatalf("blocks = %d", len(doc.Content))
	}
	h := doc.Content[0]
	if h.Type.Name != "heading" || h.AttrInt("level", 0) != 2 {
		t.Errorf("first block = %s level %d", h.Type.Name, h.AttrInt("level", 0))
	}
	if doc.Content[1].TextContent() != "Body" {
		t.Errorf("body = %q", doc.Content[1].TextContent())
	}
}

func TestParseDocument_BareFragment(t *testing.T) {
	doc, store, err := testParser.ParseDocument(`<p>loose</p>`)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	// No container: an empty store at the current schema version.
	if store.SchemaVersion != schema.Version {
		t.Errorf("bare fragment version = %d, want %d", store.SchemaVersion, schema.Version)
	}
	if len(doc.Content) != 1 || doc.Content[0].TextContent() != "loose" {
		t.Errorf("doc = %+v", doc.Content)
	}
}

func TestParseDocument_StrayInlineWrappedInParagraph(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`just text, no tags`)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(doc.Content) != 1 || doc.Content[0].Type.Name != "paragraph" {
		t.Fatalf("doc = %+v", doc.Content)
	}
	if doc.Content[0].TextContent() != "just text, no tags" {
		t.Errorf("text = %q", doc.Content[0].TextContent())
	}
}

func TestParseDocument_Marks(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<p><strong>bold</strong> and <em>italic</em></p>`)
	if err != nil {
		t.Fatal(err)
	}
	inline := doc.Content[0].Content
	if len(inline) != 3 {
		t.Fatalf("inline runs = %d", len(inline))
	}
	if !inline[0].HasMark("strong") {
		t.Error("first run should carry strong")
	}
	if inline[1].HasMark("strong") || inline[1].HasMark("em") {
		t.Error("plain run should carry no marks")
	}
	if !inline[2].HasMark("em") {
		t.Error("last run should carry em")
	}
}

func TestParseDocument_BoldViaBTag(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<p><b>x</b></p>`)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Content[0].Content[0].HasMark("strong") {
		t.Error("b tag should map to the strong mark")
	}
}

func TestParseDocument_CodeBlockPreservesWhitespace(t *testing.T) {
	doc, _, err := testParser.ParseDocument("<pre>line one\n  indented</pre>")
	if err != nil {
		t.Fatal(err)
	}
	cb := doc.Content[0]
	if cb.Type.Name != "codeBlock" {
		t.Fatalf("block = %s", cb.Type.Name)
	}
	if cb.TextContent() != "line one\n  indented" {
		t.Errorf("text = %q", cb.TextContent())
	}
}

func TestParseDocument_List(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<ul><li>one</li><li>two</li></ul>`)
	if err != nil {
		t.Fatal(err)
	}
	ul := doc.Content[0]
	if ul.Type.Name != "bulletList" || len(ul.Content) != 2 {
		t.Fatalf("list = %s with %d items", ul.Type.Name, len(ul.Content))
	}
	li := ul.Content[0]
	// listItem requires a leading paragraph; bare text must be wrapped.
	if li.Content[0].Type.Name != "paragraph" {
		t.Errorf("item child = %s", li.Content[0].Type.Name)
	}
}

func TestParseDocument_OrderedListStart(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<ol start="4"><li>four</li></ol>`)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content[0].AttrInt("order", 1) != 4 {
		t.Errorf("order = %d", doc.Content[0].AttrInt("order", 1))
	}
}

func TestParseDocument_Table(t *testing.T) {
	doc, _, err := testParser.ParseDocument(
		`<table><tr><td>a</td><td colspan="2">b</td></tr></table>`)
	if err != nil {
		t.Fatal(err)
	}
	table := doc.Content[0]
	if table.Type.Name != "table" {
		t.Fatalf("block = %s", table.Type.Name)
	}
	row := table.Content[0]
	if len(row.Content) != 2 {
		t.Fatalf("cells = %d", len(row.Content))
	}
	if row.Content[1].AttrInt("colspan", 1) != 2 {
		t.Errorf("colspan = %d", row.Content[1].AttrInt("colspan", 1))
	}
}

func TestParseDocument_UnknownElementIsTransparent(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<p><font color="red">styled</font></p>`)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content[0].TextContent() != "styled" {
		t.Errorf("text = %q", doc.Content[0].TextContent())
	}
}

func TestParseDocument_ScriptDropped(t *testing.T) {
	doc, _, err := testParser.ParseDocument(`<p>keep</p><script>alert(1)</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Content) != 1 || doc.Content[0].TextContent() != "keep" {
		t.Errorf("doc = %+v", doc.Content)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	input := `<div data-schema-version="3"><h1>T</h1><p>a <strong>b</strong></p><ul><li><p>i</p></li></ul></div>`
	doc, store, err := testParser.ParseDocument(input)
	if err != nil {
		t.Fatal(err)
	}
	out := Serialize(doc, store)

	doc2, store2, err := testParser.ParseDocument(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !doc.Eq(doc2) {
		t.Errorf("round trip changed tree:\n  out: %s", out)
	}
	if store2.SchemaVersion != store.SchemaVersion {
		t.Errorf("version %d != %d", store2.SchemaVersion, store.SchemaVersion)
	}
}

func TestSerialize_ContainerAttributes(t *testing.T) {
	store := metadata.NewStore(3)
	doc := document.NewNode(testSchema.Node("doc"), nil, []*document.Node{
		document.NewNode(testSchema.Node("paragraph"), nil, []*document.Node{
			document.NewText(testSchema, "x"),
		}),
	})
	out := Serialize(doc, store)
	if !strings.HasPrefix(out, `<div data-schema-version="3">`) {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "</div>") {
		t.Errorf("output = %q", out)
	}
}

func TestSerialize_EscapesText(t *testing.T) {
	doc := document.NewNode(testSchema.Node("doc"), nil, []*document.Node{
		document.NewNode(testSchema.Node("paragraph"), nil, []*document.Node{
			document.NewText(testSchema, `<script> & "quotes"`),
		}),
	})
	out := SerializeFragment(doc.Content)
	if strings.Contains(out, "<script>") {
		t.Errorf("unescaped markup in %q", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected escaped text in %q", out)
	}
}

func TestSerialize_CitationRendersFormattedText(t *testing.T) {
	cite := document.NewNode(testSchema.Node("citation"), map[string]any{
		"citation":          map[string]any{"citationItems": []any{map[string]any{"uris": []any{"u"}}}},
		"formattedCitation": "(Doe 2020)",
	}, nil)
	doc := document.NewNode(testSchema.Node("doc"), nil, []*document.Node{
		document.NewNode(testSchema.Node("paragraph"), nil, []*document.Node{cite}),
	})
	out := SerializeFragment(doc.Content)
	if !strings.Contains(out, `class="citation"`) {
		t.Errorf("missing citation class in %q", out)
	}
	if !strings.Contains(out, "(Doe 2020)") {
		t.Errorf("missing display text in %q", out)
	}
	if !strings.Contains(out, "data-citation=") {
		t.Errorf("missing data payload in %q", out)
	}
}

func TestParseFragment(t *testing.T) {
	blocks, err := testParser.ParseFragment(`<p>a</p><p>b</p>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
}

func TestParseFragment_ContentFreeInputIsEmpty(t *testing.T) {
	for _, input := range []string{"", "   \n\t  ", "<div></div>", SanitizePaste("<script>bad()</script>")} {
		blocks, err := testParser.ParseFragment(input)
		if err != nil {
			t.Fatal(err)
		}
		if len(blocks) != 0 {
			t.Errorf("ParseFragment(%q) = %d blocks, want none", input, len(blocks))
		}
	}
}

func TestSanitizePaste(t *testing.T) {
	out := SanitizePaste(`<p onclick="evil()">ok</p><script>bad()</script>`)
	if strings.Contains(out, "onclick") || strings.Contains(out, "script") {
		t.Errorf("sanitize left unsafe markup: %q", out)
	}
	if !strings.Contains(out, "<p") || !strings.Contains(out, "ok") {
		t.Errorf("sanitize dropped safe markup: %q", out)
	}

	// Style and data attributes the schema round-trips must survive.
	kept := SanitizePaste(`<p style="text-align: center">c</p><span data-citation="x">y</span>`)
	if !strings.Contains(kept, "text-align") {
		t.Errorf("style stripped: %q", kept)
	}
	if !strings.Contains(kept, "data-citation") {
		t.Errorf("data-citation stripped: %q", kept)
	}
}
