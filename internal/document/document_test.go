package document

import (
	"testing"

	"github.com/starford/ansuz/internal/schema"
)

var testSchema = schema.Default()

func para(text string) *Node {
	return NewNode(testSchema.Node("paragraph"), nil, []*Node{NewText(testSchema, text)})
}

func heading(level int, text string) *Node {
	return NewNode(testSchema.Node("heading"), map[string]any{"level": level}, []*Node{NewText(testSchema, text)})
}

func doc(blocks ...*Node) *Node {
	return NewNode(testSchema.Node("doc"), nil, blocks)
}

func TestTextContent(t *testing.T) {
	d := doc(heading(1, "Title"), para("Hello world"))
	if got := d.TextContent(); got != "TitleHello world" {
		t.Errorf("TextContent = %q", got)
	}
	if got := d.Content[1].TextContent(); got != "Hello world" {
		t.Errorf("paragraph TextContent = %q", got)
	}
}

func TestWalk_Order(t *testing.T) {
	d := doc(para("a"), para("b"))
	var types []string
	d.Walk(func(n *Node, _ Path) bool {
		types = append(types, n.Type.Name)
		return true
	})
	want := []string{"doc", "paragraph", "text", "paragraph", "text"}
	if len(types) != len(want) {
		t.Fatalf("visited %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("visited %v, want %v", types, want)
		}
	}
}

func TestWalk_ReturningFalseStopsEntireWalk(t *testing.T) {
	d := doc(para("a"), para("b"), para("c"))
	visited := 0
	d.Walk(func(n *Node, _ Path) bool {
		visited++
		// Stop at the first paragraph. Nothing after it may be visited,
		// including later siblings.
		return n.Type.Name != "paragraph"
	})
	if visited != 2 {
		t.Errorf("visited %d nodes, want 2 (doc + first paragraph)", visited)
	}
}

func TestWalk_PathsAreStable(t *testing.T) {
	d := doc(para("a"), para("b"))
	var paths []Path
	d.Walk(func(n *Node, p Path) bool {
		if n.Type.Name == "text" {
			paths = append(paths, p.Clone())
		}
		return true
	})
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if !paths[0].equal(Path{0, 0}) || !paths[1].equal(Path{1, 0}) {
		t.Errorf("paths = %v, want [[0 0] [1 0]]", paths)
	}
}

func TestTransform_SharesUnchangedSubtrees(t *testing.T) {
	d := doc(para("keep"), para("change"))
	out := d.Transform(func(n *Node) *Node {
		if n.IsText() && n.Text == "change" {
			return NewText(testSchema, "changed")
		}
		return n
	})
	if out == d {
		t.Fatal("expected a new root")
	}
	if out.Content[0] != d.Content[0] {
		t.Error("unchanged subtree should be shared")
	}
	if out.Content[1].TextContent() != "changed" {
		t.Errorf("text = %q", out.Content[1].TextContent())
	}
	// Original untouched.
	if d.Content[1].TextContent() != "change" {
		t.Error("transform mutated the original tree")
	}
}

func TestTransform_NilDropsNode(t *testing.T) {
	d := doc(para("a"), para("b"), para("c"))
	out := d.Transform(func(n *Node) *Node {
		if n.Type.Name == "paragraph" && n.TextContent() == "b" {
			return nil
		}
		return n
	})
	if len(out.Content) != 2 {
		t.Fatalf("blocks = %d, want 2", len(out.Content))
	}
	if out.Content[0].TextContent() != "a" || out.Content[1].TextContent() != "c" {
		t.Errorf("remaining = %q, %q", out.Content[0].TextContent(), out.Content[1].TextContent())
	}
}

func TestCloneAndEq(t *testing.T) {
	d := doc(heading(2, "H"), para("body"))
	c := d.Clone()
	if !d.Eq(c) {
		t.Fatal("clone should be equal")
	}
	c.Content[1].Content[0].Text = "other"
	if d.Eq(c) {
		t.Error("modified clone should differ")
	}
	if d.Content[1].TextContent() != "body" {
		t.Error("clone mutation leaked into original")
	}
}

func TestWithAttr_DoesNotMutate(t *testing.T) {
	h := heading(1, "x")
	h2 := h.WithAttr("level", 3)
	if h.AttrInt("level", 0) != 1 {
		t.Error("WithAttr mutated original")
	}
	if h2.AttrInt("level", 0) != 3 {
		t.Errorf("level = %d", h2.AttrInt("level", 0))
	}
}

func TestWithoutAttr_RestoresDefault(t *testing.T) {
	h := heading(4, "x")
	h2 := h.WithoutAttr("level")
	if h2.AttrInt("level", 0) != 1 {
		t.Errorf("level = %d, want declared default 1", h2.AttrInt("level", 0))
	}
}

func TestNodeAtAndReplaceAt(t *testing.T) {
	d := doc(para("a"), para("b"))
	if n := d.NodeAt(Path{1, 0}); n == nil || n.Text != "b" {
		t.Fatalf("NodeAt = %+v", n)
	}
	if n := d.NodeAt(Path{5}); n != nil {
		t.Error("out-of-range path should resolve to nil")
	}

	out := d.ReplaceAt(Path{0}, para("replaced"))
	if out.Content[0].TextContent() != "replaced" {
		t.Errorf("replaced = %q", out.Content[0].TextContent())
	}
	// nil replacement removes.
	out = d.ReplaceAt(Path{0}, nil)
	if len(out.Content) != 1 || out.Content[0].TextContent() != "b" {
		t.Errorf("after removal: %d blocks", len(out.Content))
	}
}

func TestInsertAt_ClampsIndex(t *testing.T) {
	d := doc(para("a"))
	out := d.InsertAt(nil, 99, para("end"))
	if len(out.Content) != 2 || out.Content[1].TextContent() != "end" {
		t.Fatalf("insert past end failed: %d blocks", len(out.Content))
	}
	out = d.InsertAt(nil, -5, para("start"))
	if out.Content[0].TextContent() != "start" {
		t.Error("negative index should clamp to 0")
	}
}

func TestFindByNodeID(t *testing.T) {
	img := NewNode(testSchema.Node("image"), map[string]any{"nodeID": "abc123"}, nil)
	d := doc(para("x"), NewNode(testSchema.Node("paragraph"), nil, []*Node{img}))

	n, p := d.FindByNodeID("abc123")
	if n == nil || !p.equal(Path{1, 0}) {
		t.Fatalf("found %+v at %v", n, p)
	}
	if n, _ := d.FindByNodeID("missing"); n != nil {
		t.Error("missing id should return nil")
	}
	if n, _ := d.FindByNodeID(""); n != nil {
		t.Error("empty id should return nil")
	}
}

func TestComparePositionsAndReversed(t *testing.T) {
	a := Position{Path: Path{0}, Offset: 2}
	b := Position{Path: Path{1}, Offset: 0}
	if ComparePositions(a, b) != -1 || ComparePositions(b, a) != 1 {
		t.Error("path order broken")
	}
	c := Position{Path: Path{0}, Offset: 5}
	if ComparePositions(a, c) != -1 {
		t.Error("offset order broken")
	}
	// Parent precedes its descendants.
	parent := Position{Path: Path{0}}
	child := Position{Path: Path{0, 1}}
	if ComparePositions(parent, child) != -1 {
		t.Error("parent should precede child")
	}

	sel := Selection{Anchor: b, Head: a}
	if !sel.Reversed() {
		t.Error("head before anchor should be reversed")
	}
	from, to := sel.Ordered()
	if ComparePositions(from, to) > 0 {
		t.Error("Ordered should return endpoints in document order")
	}
}

func TestSelectionCollapsed(t *testing.T) {
	p := Position{Path: Path{0}, Offset: 3}
	if !(Selection{Anchor: p, Head: p}).Collapsed() {
		t.Error("identical endpoints should be collapsed")
	}
	q := Position{Path: Path{0}, Offset: 4}
	if (Selection{Anchor: p, Head: q}).Collapsed() {
		t.Error("distinct offsets should not be collapsed")
	}
}

func TestResolvePosition_ClampsAgainstNewDocument(t *testing.T) {
	d := doc(para("short"))
	// Position recorded against a longer document.
	pos := Position{Path: Path{4}, Offset: 100}
	got, ok := ResolvePosition(d, pos)
	if !ok {
		t.Fatal("expected resolution")
	}
	if !got.Path.equal(Path{0}) {
		t.Errorf("path = %v, want [0]", got.Path)
	}
	if got.Offset != len("short") {
		t.Errorf("offset = %d, want %d", got.Offset, len("short"))
	}
}

func TestResolveSelection_EmptyDocument(t *testing.T) {
	empty := doc()
	_, ok := ResolveSelection(empty, Selection{})
	if ok {
		t.Error("selection against empty document should not resolve")
	}
}

func TestCursorAtStart(t *testing.T) {
	d := doc(para("hello"))
	sel := CursorAtStart(d)
	if !sel.Collapsed() {
		t.Error("cursor should be collapsed")
	}
	if !sel.Anchor.Path.equal(Path{0}) || sel.Anchor.Offset != 0 {
		t.Errorf("cursor = %+v", sel.Anchor)
	}
}

func TestIsPrefixOf(t *testing.T) {
	if !(Path{0}).IsPrefixOf(Path{0, 2, 1}) {
		t.Error("prefix not detected")
	}
	if (Path{0, 1}).IsPrefixOf(Path{0}) {
		t.Error("longer path cannot be prefix of shorter")
	}
	if (Path{1}).IsPrefixOf(Path{0, 1}) {
		t.Error("diverging path is not a prefix")
	}
}

func TestValidate(t *testing.T) {
	good := doc(para("ok"), heading(1, "h"))
	if err := good.Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	// doc requires block+; an inline child violates the content expression.
	bad := NewNode(testSchema.Node("doc"), nil, []*Node{NewText(testSchema, "loose text")})
	if err := bad.Validate(); err == nil {
		t.Error("inline child of doc should fail validation")
	}

	// Mutually exclusive marks on one text node.
	sub := Mark{Type: testSchema.Mark("subscript")}
	sup := Mark{Type: testSchema.Mark("superscript")}
	conflicted := doc(NewNode(testSchema.Node("paragraph"), nil, []*Node{
		NewText(testSchema, "x", sub, sup),
	}))
	if err := conflicted.Validate(); err == nil {
		t.Error("excluding marks should fail validation")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	strong := Mark{Type: testSchema.Mark("strong")}
	d := doc(
		heading(2, "Title"),
		NewNode(testSchema.Node("paragraph"), map[string]any{"align": "center"}, []*Node{
			NewText(testSchema, "bold", strong),
			NewText(testSchema, " plain"),
		}),
	)
	data, err := d.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := FromJSON(testSchema, data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	// JSON decoding widens int attrs to float64, so compare the re-encoded
	// form rather than the trees.
	data2, err := back.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("round trip changed encoding:\n  in:  %s\n  out: %s", data, data2)
	}
}

func TestFromJSON_UnknownType(t *testing.T) {
	_, err := FromJSON(testSchema, []byte(`{"type":"widget"}`))
	if err == nil {
		t.Error("unknown node type should error")
	}
}
