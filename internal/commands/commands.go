// Package commands implements editing commands that build transactions from
// the current editor state: table cell navigation and the block attribute
// toggles (alignment, indent). Commands return the transaction and whether
// they applied; a command that does not apply returns (nil, false) and the
// caller leaves the state untouched.
package commands

import (
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/state"
)

// TabInTable moves the cursor to the next table cell, or the previous one
// when backward is set. Tabbing forward past the last cell appends a new
// empty row; tabbing backward from the first cell does not apply.
func TabInTable(s *state.EditorState, backward bool) (*state.Transaction, bool) {
	loc, ok := findCell(s.Doc, s.Selection.Head.Path)
	if !ok {
		return nil, false
	}
	table := s.Doc.NodeAt(loc.tablePath)

	row, cell := loc.row, loc.cell
	if backward {
		cell--
		if cell < 0 {
			row--
			if row < 0 {
				return nil, false
			}
			cell = len(table.Content[row].Content) - 1
		}
		return cursorIntoCell(s, s.NewTransaction(), loc.tablePath, row, cell), true
	}

	cell++
	if cell >= len(table.Content[row].Content) {
		row++
		cell = 0
	}
	if row < len(table.Content) {
		return cursorIntoCell(s, s.NewTransaction(), loc.tablePath, row, cell), true
	}

	// Past the last cell: append a row shaped like the one being left.
	newRow := emptyRowLike(s, table.Content[loc.row])
	newDoc := s.Doc.InsertAt(loc.tablePath, len(table.Content), newRow)
	tr := s.NewTransaction().SetDoc(newDoc)
	return cursorIntoCell(s, tr, loc.tablePath, row, 0), true
}

type cellLocation struct {
	tablePath document.Path
	row       int
	cell      int
}

// findCell walks the path from the root and reports the innermost table the
// position sits in, with the row and cell indices taken inside it.
func findCell(doc *document.Node, path document.Path) (cellLocation, bool) {
	cur := doc
	var loc cellLocation
	found := false
	for i, idx := range path {
		if idx < 0 || idx >= len(cur.Content) {
			break
		}
		if cur.Type.Name == "table" && i+1 < len(path) {
			loc = cellLocation{
				tablePath: path[:i].Clone(),
				row:       idx,
				cell:      path[i+1],
			}
			found = true
		}
		cur = cur.Content[idx]
	}
	if !found {
		return cellLocation{}, false
	}
	table := doc.NodeAt(loc.tablePath)
	if table == nil || loc.row >= len(table.Content) ||
		loc.cell >= len(table.Content[loc.row].Content) {
		return cellLocation{}, false
	}
	return loc, true
}

func cursorIntoCell(s *state.EditorState, tr *state.Transaction, tablePath document.Path, row, cell int) *state.Transaction {
	path := append(tablePath.Clone(), row, cell, 0)
	pos := document.Position{Path: path}
	return tr.SetSelection(document.Selection{Anchor: pos, Head: pos})
}

// emptyRowLike builds a table row with the same cell count and cell attrs
// as the template, each cell holding one empty paragraph.
func emptyRowLike(s *state.EditorState, template *document.Node) *document.Node {
	para := s.Schema.Node("paragraph")
	cells := make([]*document.Node, 0, len(template.Content))
	for _, c := range template.Content {
		cells = append(cells, document.NewNode(c.Type, c.Attrs,
			[]*document.Node{document.NewNode(para, nil, nil)}))
	}
	return document.NewNode(template.Type, nil, cells)
}

// SetAlignment sets the align attribute on every node in the selection
// range whose type declares it. Passing the value a node already has clears
// it back to the default, so repeated invocations toggle.
func SetAlignment(s *state.EditorState, align string) (*state.Transaction, bool) {
	return setBlockAttr(s, "align", func(cur any) any {
		if cur == align {
			return ""
		}
		return align
	})
}

// ChangeIndent adjusts the indent attribute by delta on every node in the
// selection range whose type declares it, clamping at zero.
func ChangeIndent(s *state.EditorState, delta int) (*state.Transaction, bool) {
	return setBlockAttr(s, "indent", func(cur any) any {
		n, _ := cur.(int)
		if f, ok := cur.(float64); ok {
			n = int(f)
		}
		n += delta
		if n < 0 {
			n = 0
		}
		return n
	})
}

// setBlockAttr applies an attribute update uniformly across every node type
// declaring attr, limited to nodes touched by the selection.
func setBlockAttr(s *state.EditorState, attr string, update func(cur any) any) (*state.Transaction, bool) {
	types := map[string]bool{}
	for _, t := range s.Schema.NodeTypesWithAttr(attr) {
		types[t.Name] = true
	}
	if len(types) == 0 {
		return nil, false
	}
	from, to := s.Selection.Ordered()

	type target struct {
		path  document.Path
		value any
	}
	var targets []target
	s.Doc.Walk(func(n *document.Node, path document.Path) bool {
		if len(path) > 0 && !pathInRange(path, from, to) {
			return true
		}
		if types[n.Type.Name] {
			next := update(n.Attr(attr))
			if next != n.Attr(attr) {
				targets = append(targets, target{path: path.Clone(), value: next})
			}
		}
		return true
	})
	if len(targets) == 0 {
		return nil, false
	}

	doc := s.Doc
	for _, t := range targets {
		node := doc.NodeAt(t.path)
		if node == nil {
			continue
		}
		doc = doc.ReplaceAt(t.path, node.WithAttr(attr, t.value))
	}
	return s.NewTransaction().SetDoc(doc), true
}

// pathInRange reports whether the node at path is touched by the ordered
// position range [from, to].
func pathInRange(path document.Path, from, to document.Position) bool {
	start := document.Position{Path: path}
	if document.ComparePositions(start, to) > 0 {
		return false
	}
	if document.ComparePositions(start, from) < 0 && !path.IsPrefixOf(from.Path) {
		return false
	}
	return true
}
