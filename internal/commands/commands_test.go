package commands

import (
	"testing"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/state"
)

var testSchema = schema.Default()

func para(text string) *document.Node {
	var content []*document.Node
	if text != "" {
		content = []*document.Node{document.NewText(testSchema, text)}
	}
	return document.NewNode(testSchema.Node("paragraph"), nil, content)
}

func cell(text string) *document.Node {
	return document.NewNode(testSchema.Node("tableCell"), nil, []*document.Node{para(text)})
}

func row(cells ...*document.Node) *document.Node {
	return document.NewNode(testSchema.Node("tableRow"), nil, cells)
}

func table(rows ...*document.Node) *document.Node {
	return document.NewNode(testSchema.Node("table"), nil, rows)
}

func makeDoc(blocks ...*document.Node) *document.Node {
	return document.NewNode(testSchema.Node("doc"), nil, blocks)
}

func cursor(path ...int) *document.Selection {
	pos := document.Position{Path: document.Path(path)}
	return &document.Selection{Anchor: pos, Head: pos}
}

func stateWith(t *testing.T, doc *document.Node, sel *document.Selection) *state.EditorState {
	t.Helper()
	s, err := state.New(state.Config{Schema: testSchema, Doc: doc, Selection: sel})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return s
}

// twoByTwo builds a document whose first block is a 2x2 table.
func twoByTwo(t *testing.T, sel *document.Selection) *state.EditorState {
	t.Helper()
	doc := makeDoc(table(
		row(cell("a"), cell("b")),
		row(cell("c"), cell("d")),
	))
	return stateWith(t, doc, sel)
}

func applied(t *testing.T, s *state.EditorState, tr *state.Transaction) *state.EditorState {
	t.Helper()
	next, err := s.Apply(tr)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return next
}

func headPath(s *state.EditorState) document.Path {
	return s.Selection.Head.Path
}

func TestTabInTable_Forward(t *testing.T) {
	// Cursor in cell (0,0); table at block 0; paragraph is child 0 of cell.
	s := twoByTwo(t, cursor(0, 0, 0, 0))
	tr, ok := TabInTable(s, false)
	if !ok {
		t.Fatal("tab did not apply")
	}
	next := applied(t, s, tr)
	assertPath(t, headPath(next), document.Path{0, 0, 1, 0})
}

func assertPath(t *testing.T, got, want document.Path) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("path = %v, want %v", got, want)
		}
	}
}

func TestTabInTable_ForwardWrapsToNextRow(t *testing.T) {
	s := twoByTwo(t, cursor(0, 0, 1, 0))
	tr, ok := TabInTable(s, false)
	if !ok {
		t.Fatal("tab did not apply")
	}
	next := applied(t, s, tr)
	got := headPath(next)
	if got[1] != 1 || got[2] != 0 {
		t.Errorf("head = %v, want row 1 cell 0", got)
	}
}

func TestTabInTable_AppendsRowPastLastCell(t *testing.T) {
	s := twoByTwo(t, cursor(0, 1, 1, 0))
	tr, ok := TabInTable(s, false)
	if !ok {
		t.Fatal("tab did not apply")
	}
	if !tr.DocChanged() {
		t.Fatal("expected a document change")
	}
	next := applied(t, s, tr)
	tbl := next.Doc.Content[0]
	if len(tbl.Content) != 3 {
		t.Fatalf("rows = %d, want 3", len(tbl.Content))
	}
	newRow := tbl.Content[2]
	if len(newRow.Content) != 2 {
		t.Errorf("new row cells = %d, want 2", len(newRow.Content))
	}
	if newRow.TextContent() != "" {
		t.Errorf("new row not empty: %q", newRow.TextContent())
	}
	got := headPath(next)
	if got[1] != 2 || got[2] != 0 {
		t.Errorf("head = %v, want new row cell 0", got)
	}
}

func TestTabInTable_Backward(t *testing.T) {
	s := twoByTwo(t, cursor(0, 1, 0, 0))
	tr, ok := TabInTable(s, true)
	if !ok {
		t.Fatal("backward tab did not apply")
	}
	next := applied(t, s, tr)
	got := headPath(next)
	if got[1] != 0 || got[2] != 1 {
		t.Errorf("head = %v, want last cell of previous row", got)
	}
}

func TestTabInTable_BackwardFromFirstCellDoesNotApply(t *testing.T) {
	s := twoByTwo(t, cursor(0, 0, 0, 0))
	if _, ok := TabInTable(s, true); ok {
		t.Error("backward tab from the first cell should not apply")
	}
}

func TestTabInTable_OutsideTableDoesNotApply(t *testing.T) {
	s := stateWith(t, makeDoc(para("plain")), cursor(0))
	if _, ok := TabInTable(s, false); ok {
		t.Error("tab outside a table should not apply")
	}
}

func TestSetAlignment(t *testing.T) {
	s := stateWith(t, makeDoc(para("x")), cursor(0))
	tr, ok := SetAlignment(s, "center")
	if !ok {
		t.Fatal("alignment did not apply")
	}
	next := applied(t, s, tr)
	if got := next.Doc.Content[0].AttrString("align"); got != "center" {
		t.Fatalf("align = %q", got)
	}

	// Same value again clears back to the default.
	tr, ok = SetAlignment(next, "center")
	if !ok {
		t.Fatal("toggle did not apply")
	}
	next = applied(t, next, tr)
	if got := next.Doc.Content[0].AttrString("align"); got != "" {
		t.Errorf("align after toggle = %q", got)
	}
}

func TestSetAlignment_LimitedToSelection(t *testing.T) {
	doc := makeDoc(para("one"), para("two"), para("three"))
	sel := &document.Selection{
		Anchor: document.Position{Path: document.Path{0}},
		Head:   document.Position{Path: document.Path{1}},
	}
	s := stateWith(t, doc, sel)

	tr, ok := SetAlignment(s, "right")
	if !ok {
		t.Fatal("alignment did not apply")
	}
	next := applied(t, s, tr)
	if next.Doc.Content[0].AttrString("align") != "right" {
		t.Error("first block missed")
	}
	if next.Doc.Content[1].AttrString("align") != "right" {
		t.Error("second block missed")
	}
	if next.Doc.Content[2].AttrString("align") != "" {
		t.Error("block outside the selection was changed")
	}
}

func TestChangeIndent(t *testing.T) {
	s := stateWith(t, makeDoc(para("x")), cursor(0))
	tr, ok := ChangeIndent(s, 1)
	if !ok {
		t.Fatal("indent did not apply")
	}
	next := applied(t, s, tr)
	if got := next.Doc.Content[0].AttrInt("indent", 0); got != 1 {
		t.Fatalf("indent = %d", got)
	}

	tr, ok = ChangeIndent(next, 1)
	if !ok {
		t.Fatal("second indent did not apply")
	}
	next = applied(t, next, tr)
	if got := next.Doc.Content[0].AttrInt("indent", 0); got != 2 {
		t.Errorf("indent = %d", got)
	}
}

func TestChangeIndent_ClampsAtZero(t *testing.T) {
	s := stateWith(t, makeDoc(para("x")), cursor(0))
	if _, ok := ChangeIndent(s, -1); ok {
		t.Error("outdenting an unindented block should not apply")
	}
}
