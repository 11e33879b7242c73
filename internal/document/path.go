package document

// Path is a structural address: the child index taken at each depth from the
// document root down to a node. Unlike absolute token offsets it survives a
// wholesale document replacement well enough to re-resolve a cursor.
type Path []int

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Position addresses a point inside a document: the path of the containing
// block plus a rune offset into that block's text content.
type Position struct {
	Path   Path `json:"path"`
	Offset int  `json:"offset"`
}

// Selection is an anchor/head pair of positions. Anchor is the fixed side,
// head the moving side; Head before Anchor in document order means the
// selection was made backwards.
type Selection struct {
	Anchor Position `json:"anchor"`
	Head   Position `json:"head"`
}

// Collapsed reports whether the selection is a bare cursor.
func (s Selection) Collapsed() bool {
	return s.Anchor.Offset == s.Head.Offset && s.Anchor.Path.equal(s.Head.Path)
}

func (p Path) equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// CursorAtStart returns a collapsed selection at the start of the first
// textblock of the document, or at the root when the document is empty.
func CursorAtStart(doc *Node) Selection {
	var path Path
	cur := doc
	for len(cur.Content) > 0 && !cur.Content[0].IsText() {
		path = append(path, 0)
		cur = cur.Content[0]
		if cur.Type.IsAtom() || cur.Type.IsLeaf() {
			break
		}
	}
	pos := Position{Path: path}
	return Selection{Anchor: pos, Head: pos}
}

// CursorAtEnd returns a collapsed selection after the last text of the final
// textblock, or at the root when the document is empty.
func CursorAtEnd(doc *Node) Selection {
	var path Path
	cur := doc
	for len(cur.Content) > 0 && !cur.Content[len(cur.Content)-1].IsText() {
		idx := len(cur.Content) - 1
		path = append(path, idx)
		cur = cur.Content[idx]
		if cur.Type.IsAtom() || cur.Type.IsLeaf() {
			break
		}
	}
	pos := Position{Path: path, Offset: cur.TextLen()}
	return Selection{Anchor: pos, Head: pos}
}

// ResolvePosition re-resolves a position recorded against another document.
// Each path segment is clamped against the actual child counts; if a segment
// addresses a depth that no longer exists the walk stops there. The final
// offset is clamped to the resolved node's text length. The second return is
// false when the path could not be followed at all (document empty).
func ResolvePosition(doc *Node, pos Position) (Position, bool) {
	cur := doc
	resolved := Position{}
	for _, idx := range pos.Path {
		if len(cur.Content) == 0 {
			break
		}
		if idx >= len(cur.Content) {
			idx = len(cur.Content) - 1
		}
		if idx < 0 {
			idx = 0
		}
		resolved.Path = append(resolved.Path, idx)
		cur = cur.Content[idx]
	}
	resolved.Offset = pos.Offset
	if max := cur.TextLen(); resolved.Offset > max {
		resolved.Offset = max
	}
	if resolved.Offset < 0 {
		resolved.Offset = 0
	}
	return resolved, true
}

// ResolveSelection re-resolves a recorded selection against a new document,
// preserving direction. Returns false when restoration should be abandoned
// (the selection's block structure is entirely gone).
func ResolveSelection(doc *Node, sel Selection) (Selection, bool) {
	if len(doc.Content) == 0 {
		return Selection{}, false
	}
	anchor, okA := ResolvePosition(doc, sel.Anchor)
	head, okH := ResolvePosition(doc, sel.Head)
	if !okA || !okH {
		return Selection{}, false
	}
	return Selection{Anchor: anchor, Head: head}, true
}

// IsPrefixOf reports whether p is a prefix of other, meaning other
// addresses a node inside p's subtree (or p itself).
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ComparePositions orders two positions in document order.
func ComparePositions(a, b Position) int { return comparePositions(a, b) }

// Ordered returns the selection's endpoints in document order.
func (s Selection) Ordered() (from, to Position) {
	if s.Reversed() {
		return s.Head, s.Anchor
	}
	return s.Anchor, s.Head
}

// comparePositions orders two positions in document order.
func comparePositions(a, b Position) int {
	for i := 0; i < len(a.Path) && i < len(b.Path); i++ {
		if a.Path[i] != b.Path[i] {
			if a.Path[i] < b.Path[i] {
				return -1
			}
			return 1
		}
	}
	if len(a.Path) != len(b.Path) {
		if len(a.Path) < len(b.Path) {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// Reversed reports whether the selection head precedes its anchor.
func (s Selection) Reversed() bool {
	return comparePositions(s.Head, s.Anchor) < 0
}
