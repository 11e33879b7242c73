package plugins

import (
	"testing"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/state"
)

var testSchema = schema.Default()

func para(inline ...*document.Node) *document.Node {
	return document.NewNode(testSchema.Node("paragraph"), nil, inline)
}

func makeDoc(blocks ...*document.Node) *document.Node {
	return document.NewNode(testSchema.Node("doc"), nil, blocks)
}

func citation(id string, attrs map[string]any) *document.Node {
	all := map[string]any{"nodeID": id}
	for k, v := range attrs {
		all[k] = v
	}
	return document.NewNode(testSchema.Node("citation"), all, nil)
}

func citationValue(uris ...string) map[string]any {
	items := make([]any, 0, len(uris))
	for _, u := range uris {
		items = append(items, map[string]any{"uris": []any{u}})
	}
	return map[string]any{"citationItems": items}
}

func newTestState(t *testing.T, doc *document.Node, ps []state.Plugin) *state.EditorState {
	t.Helper()
	s, err := state.New(state.Config{Schema: testSchema, Doc: doc, Plugins: ps})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return s
}

func collectIDs(t *testing.T, doc *document.Node) []string {
	t.Helper()
	var ids []string
	doc.Walk(func(n *document.Node, _ document.Path) bool {
		if n.Type.HasAttr("nodeID") {
			ids = append(ids, n.AttrString("nodeID"))
		}
		return true
	})
	return ids
}

func TestReconcileIDs_FillsAndDeduplicates(t *testing.T) {
	doc := makeDoc(para(
		citation("dup", nil),
		citation("dup", nil),
		citation("", nil),
	))

	fixed := ReconcileIDs(doc)
	ids := collectIDs(t, fixed)
	if len(ids) != 3 {
		t.Fatalf("ids = %d", len(ids))
	}
	// First occurrence keeps its ID; the copy is the one rewritten.
	if ids[0] != "dup" {
		t.Errorf("first id = %q, want dup", ids[0])
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" {
			t.Error("empty id survived reconciliation")
		}
		if seen[id] {
			t.Errorf("duplicate id %q survived", id)
		}
		seen[id] = true
	}
	// Original tree untouched.
	if got := collectIDs(t, doc); got[1] != "dup" {
		t.Error("reconcile mutated the input document")
	}
}

func TestReconcileIDs_Idempotent(t *testing.T) {
	doc := makeDoc(para(citation("", nil), citation("", nil)))
	once := ReconcileIDs(doc)
	twice := ReconcileIDs(once)
	if twice != once {
		t.Error("second pass should return the same document pointer")
	}
}

func TestNodeID_RunsOnlyOnDocChange(t *testing.T) {
	s := newTestState(t, makeDoc(para(citation("", nil))), []state.Plugin{&NodeID{}})

	// Non-document transaction leaves the missing ID alone.
	s2, err := s.Apply(s.NewTransaction())
	if err != nil {
		t.Fatal(err)
	}
	if ids := collectIDs(t, s2.Doc); ids[0] != "" {
		t.Errorf("id assigned without a document change: %q", ids[0])
	}

	// A document change triggers the corrective pass.
	s3, err := s2.Apply(s2.NewTransaction().SetDoc(makeDoc(para(citation("", nil), citation("", nil)))))
	if err != nil {
		t.Fatal(err)
	}
	ids := collectIDs(t, s3.Doc)
	if len(ids) != 2 || ids[0] == "" || ids[1] == "" || ids[0] == ids[1] {
		t.Errorf("ids after change = %v", ids)
	}
	if s3.Version != s2.Version+1 {
		t.Errorf("correction must not add a version step: %d -> %d", s2.Version, s3.Version)
	}
}

func TestNewToken_Shape(t *testing.T) {
	a, b := NewToken(), NewToken()
	if len(a) != 26 {
		t.Errorf("token length = %d", len(a))
	}
	if a == b {
		t.Error("tokens must be unique")
	}
}

func TestClean_StripsImageMarks(t *testing.T) {
	img := document.NewNode(testSchema.Node("image"), map[string]any{"src": "x.png"}, nil)
	img = img.WithMarks([]document.Mark{{Type: testSchema.Mark("strong")}})
	doc := makeDoc(para(img))

	cleaned := Clean(doc)
	if cleaned == doc {
		t.Fatal("expected a repaired tree")
	}
	if got := cleaned.Content[0].Content[0]; len(got.Marks) != 0 {
		t.Errorf("image still carries %d marks", len(got.Marks))
	}
}

func TestClean_RemovesCodeMarkFromNonText(t *testing.T) {
	cite := citation("n1", nil).WithMarks([]document.Mark{
		{Type: testSchema.Mark("strong")},
		{Type: testSchema.Mark("code")},
	})
	doc := makeDoc(para(cite))

	cleaned := Clean(doc)
	got := cleaned.Content[0].Content[0]
	if got.HasMark("code") {
		t.Error("code mark survived on a non-text node")
	}
	if !got.HasMark("strong") {
		t.Error("unrelated mark was dropped")
	}
}

func TestClean_TextKeepsCodeMark(t *testing.T) {
	text := document.NewText(testSchema, "x", document.Mark{Type: testSchema.Mark("code")})
	doc := makeDoc(para(text))
	if cleaned := Clean(doc); cleaned != doc {
		t.Error("clean tree should come back as the same pointer")
	}
}

func TestCitation_RequestsFormattingForNewNodes(t *testing.T) {
	var batches [][]FormatRequest
	ctx := &Context{RequestFormatting: func(rs []FormatRequest) { batches = append(batches, rs) }}

	doc := makeDoc(para(citation("n1", map[string]any{"citation": citationValue("u1")})))
	newTestState(t, doc, []state.Plugin{NewCitation(ctx)})

	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("batches = %+v", batches)
	}
	if batches[0][0].ID != "n1" {
		t.Errorf("request id = %q", batches[0][0].ID)
	}
}

func TestCitation_UnchangedNodeNotRerequested(t *testing.T) {
	var count int
	ctx := &Context{RequestFormatting: func(rs []FormatRequest) { count += len(rs) }}

	cite := citation("n1", map[string]any{
		"citation":          citationValue("u1"),
		"formattedCitation": "(Doe 2020)",
	})
	// Init always refreshes against an empty cache, so the node is
	// requested once on load.
	s := newTestState(t, makeDoc(para(cite)), []state.Plugin{NewCitation(ctx)})
	base := count

	// An unrelated document change must not re-request the unchanged node.
	s2, err := s.Apply(s.NewTransaction().SetDoc(makeDoc(
		para(cite),
		para(document.NewText(testSchema, "new paragraph")),
	)))
	if err != nil {
		t.Fatal(err)
	}
	if count != base {
		t.Errorf("unchanged citation re-requested: %d", count-base)
	}

	// Changing the citation content invalidates the cache entry.
	changed := citation("n1", map[string]any{
		"citation":          citationValue("u1", "u2"),
		"formattedCitation": "(Doe 2020)",
	})
	if _, err := s2.Apply(s2.NewTransaction().SetDoc(makeDoc(para(changed)))); err != nil {
		t.Fatal(err)
	}
	if count != base+1 {
		t.Errorf("changed citation requests = %d, want 1", count-base)
	}
}

func TestCitation_ForceRerender(t *testing.T) {
	var count int
	ctx := &Context{RequestFormatting: func(rs []FormatRequest) { count += len(rs) }}

	cite := citation("n1", map[string]any{
		"citation":          citationValue("u1"),
		"formattedCitation": "(Doe 2020)",
	})
	s := newTestState(t, makeDoc(para(cite)), []state.Plugin{NewCitation(ctx)})
	base := count

	s2, err := s.Apply(ForceRerender(s))
	if err != nil {
		t.Fatal(err)
	}
	if count != base+1 {
		t.Errorf("force rerender requests = %d, want 1", count-base)
	}
	if s2.Version != s.Version {
		t.Error("force rerender must not bump the document version")
	}
}

func TestApplyFormattedCitations(t *testing.T) {
	cite := citation("n1", map[string]any{"citation": citationValue("u1")})
	s := newTestState(t, makeDoc(para(cite)), nil)

	tr := ApplyFormattedCitations(s, map[string]string{"n1": "(Doe 2020)"})
	if tr == nil {
		t.Fatal("expected a transaction")
	}
	if tr.AddToHistory() {
		t.Error("formatted-citation write must skip undo history")
	}
	if tr.Origin() != state.OriginSystem {
		t.Errorf("origin = %q", tr.Origin())
	}
	s2, err := s.Apply(tr)
	if err != nil {
		t.Fatal(err)
	}
	got := s2.Doc.Content[0].Content[0].AttrString("formattedCitation")
	if got != "(Doe 2020)" {
		t.Errorf("formattedCitation = %q", got)
	}
}

func TestApplyFormattedCitations_NoMatchIsNil(t *testing.T) {
	cite := citation("n1", map[string]any{"citation": citationValue("u1")})
	s := newTestState(t, makeDoc(para(cite)), nil)

	if tr := ApplyFormattedCitations(s, map[string]string{"other": "(X)"}); tr != nil {
		t.Error("unmatched results should yield nil")
	}
	if tr := ApplyFormattedCitations(s, nil); tr != nil {
		t.Error("empty results should yield nil")
	}

	// Writing the text already present is a no-op too.
	formatted := citation("n1", map[string]any{
		"citation":          citationValue("u1"),
		"formattedCitation": "(Doe 2020)",
	})
	s2 := newTestState(t, makeDoc(para(formatted)), nil)
	if tr := ApplyFormattedCitations(s2, map[string]string{"n1": "(Doe 2020)"}); tr != nil {
		t.Error("identical display text should yield nil")
	}
}

func TestPullItemData_StripsEmbeddedSnapshots(t *testing.T) {
	store := metadata.NewStore(schema.Version)
	ctx := &Context{Store: store}

	embedded := map[string]any{
		"citationItems": []any{map[string]any{
			"uris":     []any{"u1"},
			"itemData": map[string]any{"title": "Embedded"},
		}},
	}
	s := newTestState(t, makeDoc(para(document.NewText(testSchema, "x"))),
		[]state.Plugin{NewPullItemData(ctx)})

	next := makeDoc(para(citation("n1", map[string]any{"citation": embedded})))
	s2, err := s.Apply(s.NewTransaction().SetDoc(next))
	if err != nil {
		t.Fatal(err)
	}

	// The snapshot moved into the store.
	items := store.Items()
	if len(items) != 1 || items[0].URIs[0] != "u1" {
		t.Fatalf("store items = %+v", items)
	}
	if len(items[0].ItemData) == 0 {
		t.Error("pulled item lost its data")
	}

	// The document keeps only the lean reference.
	lean := s2.Doc.Content[0].Content[0].Attr("citation")
	leanItems := lean.(map[string]any)["citationItems"].([]any)
	if _, has := leanItems[0].(map[string]any)["itemData"]; has {
		t.Error("document still carries embedded itemData")
	}
}

func TestPullItemData_LeanDocumentIsNoop(t *testing.T) {
	store := metadata.NewStore(schema.Version)
	s := newTestState(t, makeDoc(para(document.NewText(testSchema, "x"))),
		[]state.Plugin{NewPullItemData(&Context{Store: store})})

	lean := makeDoc(para(citation("n1", map[string]any{"citation": citationValue("u1")})))
	if _, err := s.Apply(s.NewTransaction().SetDoc(lean)); err != nil {
		t.Fatal(err)
	}
	if len(store.Items()) != 0 {
		t.Errorf("lean document added %d items", len(store.Items()))
	}
}

func TestMarkdownPaste(t *testing.T) {
	s := newTestState(t, makeDoc(para(document.NewText(testSchema, "x"))),
		[]state.Plugin{&MarkdownPaste{}})

	nodes, handled := s.HandlePaste("# Title\n\n- one\n- two")
	if !handled {
		t.Fatal("markdown paste not detected")
	}
	if nodes[0].Type.Name != "heading" {
		t.Errorf("first block = %s", nodes[0].Type.Name)
	}

	if _, handled := s.HandlePaste("nothing special here"); handled {
		t.Error("plain text should stay plain")
	}
}

func TestDefaultSet_Pipeline(t *testing.T) {
	store := metadata.NewStore(schema.Version)
	var requests []FormatRequest
	ctx := &Context{
		Store:             store,
		RequestFormatting: func(rs []FormatRequest) { requests = append(requests, rs...) },
	}

	s := newTestState(t, makeDoc(para(document.NewText(testSchema, "start"))), DefaultSet(ctx))

	// One edit inserting a citation with embedded data and no identity:
	// the chain assigns an ID, strips the snapshot, and requests formatting.
	embedded := map[string]any{
		"citationItems": []any{map[string]any{
			"uris":     []any{"u1"},
			"itemData": map[string]any{"title": "T"},
		}},
	}
	next := makeDoc(para(citation("", map[string]any{"citation": embedded})))
	s2, err := s.Apply(s.NewTransaction().SetDoc(next))
	if err != nil {
		t.Fatal(err)
	}

	cite := s2.Doc.Content[0].Content[0]
	id := cite.AttrString("nodeID")
	if id == "" {
		t.Fatal("citation did not receive an identity")
	}
	if len(store.Items()) != 1 {
		t.Errorf("store items = %d", len(store.Items()))
	}
	if len(requests) != 1 || requests[0].ID != id {
		t.Errorf("requests = %+v", requests)
	}
	if s2.Version != 1 {
		t.Errorf("version = %d, want one logical edit", s2.Version)
	}
}
