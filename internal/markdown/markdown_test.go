package markdown

import (
	"testing"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
)

var testSchema = schema.Default()

func detect(t *testing.T, text string) ([]*document.Node, bool) {
	t.Helper()
	return Detect(testSchema, text)
}

func TestDetect_PlainTextRejected(t *testing.T) {
	for _, text := range []string{
		"just a plain sentence.",
		"two lines of text\nwith nothing special",
		"",
		"   ",
	} {
		if _, ok := detect(t, text); ok {
			t.Errorf("plain text misclassified as Markdown: %q", text)
		}
	}
}

func TestDetect_BareURLRejected(t *testing.T) {
	for _, text := range []string{
		"https://example.com/path?q=1",
		"http://example.com",
		"someone@example.com",
		"mailto:someone@example.com",
	} {
		if _, ok := detect(t, text); ok {
			t.Errorf("bare URL or address misclassified as Markdown: %q", text)
		}
	}
}

func TestDetect_CoincidentalPunctuationRejected(t *testing.T) {
	// Punctuation that resembles syntax but yields no parsed construct.
	for _, text := range []string{
		"price range 10-20 dollars",
		"a*b equals c",
		"the file_name has one underscore",
	} {
		if _, ok := detect(t, text); ok {
			t.Errorf("coincidental punctuation misclassified: %q", text)
		}
	}
}

func TestDetect_Heading(t *testing.T) {
	blocks, ok := detect(t, "# Title\n\nBody paragraph.")
	if !ok {
		t.Fatal("heading text should be detected")
	}
	if blocks[0].Type.Name != "heading" || blocks[0].AttrInt("level", 0) != 1 {
		t.Errorf("first block = %s", blocks[0].Type.Name)
	}
	if blocks[0].TextContent() != "Title" {
		t.Errorf("heading text = %q", blocks[0].TextContent())
	}
}

func TestDetect_List(t *testing.T) {
	blocks, ok := detect(t, "- first\n- second\n- third")
	if !ok {
		t.Fatal("bullet list should be detected")
	}
	if blocks[0].Type.Name != "bulletList" || len(blocks[0].Content) != 3 {
		t.Fatalf("list = %s with %d items", blocks[0].Type.Name, len(blocks[0].Content))
	}
}

func TestDetect_InlineOnly(t *testing.T) {
	blocks, ok := detect(t, "this has **bold** and `code` in it")
	if !ok {
		t.Fatal("inline syntax should be detected")
	}
	inline := blocks[0].Content
	var sawStrong, sawCode bool
	for _, n := range inline {
		if n.HasMark("strong") {
			sawStrong = true
		}
		if n.HasMark("code") {
			sawCode = true
		}
	}
	if !sawStrong || !sawCode {
		t.Errorf("marks: strong=%v code=%v", sawStrong, sawCode)
	}
}

func TestParse_HeadingLevels(t *testing.T) {
	blocks := Parse(testSchema, "## Two\n\n#### Four")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if blocks[0].AttrInt("level", 0) != 2 || blocks[1].AttrInt("level", 0) != 4 {
		t.Errorf("levels = %d, %d", blocks[0].AttrInt("level", 0), blocks[1].AttrInt("level", 0))
	}
}

func TestParse_FencedCodeBlock(t *testing.T) {
	blocks := Parse(testSchema, "```go\nfunc main() {}\n\tdone\n```\nafter")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	cb := blocks[0]
	if cb.Type.Name != "codeBlock" {
		t.Fatalf("block = %s", cb.Type.Name)
	}
	if cb.TextContent() != "func main() {}\n\tdone" {
		t.Errorf("code = %q", cb.TextContent())
	}
	if blocks[1].TextContent() != "after" {
		t.Errorf("trailing paragraph = %q", blocks[1].TextContent())
	}
}

func TestParse_UnclosedFenceRunsToEnd(t *testing.T) {
	blocks := Parse(testSchema, "```\ncode forever")
	if len(blocks) != 1 || blocks[0].Type.Name != "codeBlock" {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].TextContent() != "code forever" {
		t.Errorf("code = %q", blocks[0].TextContent())
	}
}

func TestParse_ThematicBreakBeforeList(t *testing.T) {
	// "* * *" matches the bullet pattern too; the break must win.
	blocks := Parse(testSchema, "* * *")
	if len(blocks) != 1 || blocks[0].Type.Name != "horizontalRule" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestParse_ThematicBreakMarkers(t *testing.T) {
	for _, src := range []string{"---", "***", "___", "- - -", "*  *  *"} {
		blocks := Parse(testSchema, src)
		if len(blocks) != 1 || blocks[0].Type.Name != "horizontalRule" {
			t.Errorf("Parse(%q) = %+v, want one horizontalRule", src, blocks)
		}
	}
	// Mixed markers are not a thematic break.
	blocks := Parse(testSchema, "- * -")
	if len(blocks) != 1 || blocks[0].Type.Name == "horizontalRule" {
		t.Errorf("Parse(%q) = %+v, want no horizontalRule", "- * -", blocks)
	}
}

func TestDetect_ThematicBreak(t *testing.T) {
	if _, ok := detect(t, "above\n\n---\n\nbelow"); !ok {
		t.Error("thematic break between paragraphs not detected")
	}
}

func TestParse_Blockquote(t *testing.T) {
	blocks := Parse(testSchema, "> quoted line\n> second line")
	if len(blocks) != 1 || blocks[0].Type.Name != "blockquote" {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].TextContent() != "quoted line second line" {
		t.Errorf("quote = %q", blocks[0].TextContent())
	}
}

func TestParse_NestedBlockquote(t *testing.T) {
	blocks := Parse(testSchema, "> outer\n> > inner")
	outer := blocks[0]
	if outer.Type.Name != "blockquote" {
		t.Fatalf("outer = %s", outer.Type.Name)
	}
	var sawInner bool
	outer.Walk(func(n *document.Node, _ document.Path) bool {
		if n != outer && n.Type.Name == "blockquote" {
			sawInner = true
		}
		return true
	})
	if !sawInner {
		t.Error("nested blockquote not parsed")
	}
}

func TestParse_OrderedListStart(t *testing.T) {
	blocks := Parse(testSchema, "3. three\n4. four")
	if len(blocks) != 1 || blocks[0].Type.Name != "orderedList" {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].AttrInt("order", 1) != 3 {
		t.Errorf("order = %d", blocks[0].AttrInt("order", 1))
	}
	if len(blocks[0].Content) != 2 {
		t.Errorf("items = %d", len(blocks[0].Content))
	}
}

func TestParse_NestedList(t *testing.T) {
	blocks := Parse(testSchema, "- parent\n  - child one\n  - child two")
	list := blocks[0]
	if len(list.Content) != 1 {
		t.Fatalf("top-level items = %d, want 1", len(list.Content))
	}
	item := list.Content[0]
	var nested *document.Node
	for _, c := range item.Content {
		if c.Type.Name == "bulletList" {
			nested = c
		}
	}
	if nested == nil || len(nested.Content) != 2 {
		t.Fatalf("nested list not attached to parent item: %+v", item.Content)
	}
}

func TestParse_Table(t *testing.T) {
	src := "| Name | Age |\n| --- | --- |\n| Ada | 36 |\n| Alan | 41 |"
	blocks := Parse(testSchema, src)
	if len(blocks) != 1 || blocks[0].Type.Name != "table" {
		t.Fatalf("blocks = %+v", blocks)
	}
	table := blocks[0]
	if len(table.Content) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2)", len(table.Content))
	}
	if got := table.Content[1].Content[0].TextContent(); got != "Ada" {
		t.Errorf("cell = %q", got)
	}
}

func TestParse_TableWithoutDelimiterIsParagraph(t *testing.T) {
	blocks := Parse(testSchema, "| not | a table |")
	if len(blocks) != 1 || blocks[0].Type.Name != "paragraph" {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestParse_Link(t *testing.T) {
	blocks := Parse(testSchema, "see [the docs](https://example.com/docs) here")
	inline := blocks[0].Content
	var link *document.Node
	for _, n := range inline {
		if n.HasMark("link") {
			link = n
		}
	}
	if link == nil {
		t.Fatal("no link mark")
	}
	if link.Text != "the docs" {
		t.Errorf("label = %q", link.Text)
	}
	href := ""
	for _, m := range link.Marks {
		if m.Type.Name == "link" {
			href, _ = m.Attrs["href"].(string)
		}
	}
	if href != "https://example.com/docs" {
		t.Errorf("href = %q", href)
	}
}

func TestParse_Autolink(t *testing.T) {
	blocks := Parse(testSchema, "visit <https://example.com> now")
	var found bool
	for _, n := range blocks[0].Content {
		if n.HasMark("link") && n.Text == "https://example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("autolink not parsed: %+v", blocks[0].Content)
	}
}

func TestParse_EmailAutolinkGetsMailto(t *testing.T) {
	blocks := Parse(testSchema, "mail <ada@example.com> please")
	for _, n := range blocks[0].Content {
		for _, m := range n.Marks {
			if m.Type.Name == "link" {
				if href, _ := m.Attrs["href"].(string); href != "mailto:ada@example.com" {
					t.Errorf("href = %q", href)
				}
				return
			}
		}
	}
	t.Fatal("no link mark found")
}

func TestParse_NestedEmphasis(t *testing.T) {
	blocks := Parse(testSchema, "**bold with *nested* inside**")
	var both bool
	for _, n := range blocks[0].Content {
		if n.HasMark("strong") && n.HasMark("em") {
			both = true
		}
	}
	if !both {
		t.Errorf("nested emphasis lost: %+v", blocks[0].Content)
	}
}

func TestParse_EscapedPunctuation(t *testing.T) {
	blocks := Parse(testSchema, `\*not emphasis\*`)
	inline := blocks[0].Content
	if len(inline) != 1 || inline[0].Text != "*not emphasis*" {
		t.Errorf("inline = %+v", inline)
	}
	if len(inline[0].Marks) != 0 {
		t.Error("escaped asterisks should not produce marks")
	}
}

func TestParse_CodeSpanSuppressesInnerSyntax(t *testing.T) {
	blocks := Parse(testSchema, "run `cmd --flag *glob*` now")
	var code *document.Node
	for _, n := range blocks[0].Content {
		if n.HasMark("code") {
			code = n
		}
	}
	if code == nil || code.Text != "cmd --flag *glob*" {
		t.Fatalf("code span = %+v", code)
	}
}

func TestParse_Strikethrough(t *testing.T) {
	blocks := Parse(testSchema, "~~gone~~ stays")
	if !blocks[0].Content[0].HasMark("strike") {
		t.Errorf("inline = %+v", blocks[0].Content)
	}
}

func TestParse_MathKeptAsLiteral(t *testing.T) {
	blocks := Parse(testSchema, "energy $E = mc^2$ famously")
	text := blocks[0].TextContent()
	if text != "energy $E = mc^2$ famously" {
		t.Errorf("text = %q", text)
	}
}

func TestParse_ParagraphJoinsLines(t *testing.T) {
	blocks := Parse(testSchema, "first line\nsecond line\n\nnew paragraph")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if blocks[0].TextContent() != "first line second line" {
		t.Errorf("paragraph = %q", blocks[0].TextContent())
	}
}

func TestParse_ProducesValidDocuments(t *testing.T) {
	srcs := []string{
		"# H\n\n- a\n- b\n\n> q\n\n| a | b |\n| - | - |\n| 1 | 2 |",
		"```\ncode\n```",
		"just a paragraph",
	}
	docType := testSchema.Node("doc")
	for _, src := range srcs {
		blocks := Parse(testSchema, src)
		doc := document.NewNode(docType, nil, blocks)
		if err := doc.Validate(); err != nil {
			t.Errorf("parse of %q produced invalid document: %v", src, err)
		}
	}
}
