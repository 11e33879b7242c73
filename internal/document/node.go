// Package document implements the note document tree: typed nodes with
// attributes, ordered children constrained by the schema, and inline marks.
//
// Nodes are treated as immutable by convention: mutation helpers return new
// trees sharing unchanged subtrees, so transaction application stays a pure
// fold over document states.
package document

import (
	"reflect"
	"strings"

	"github.com/starford/ansuz/internal/schema"
)

// Mark is an inline style annotation attached to a node.
type Mark struct {
	Type  *schema.MarkType
	Attrs map[string]any
}

// Node is a single element of the document tree. Text nodes carry Text and
// no Content; all other nodes carry Content and no Text.
type Node struct {
	Type    *schema.NodeType
	Attrs   map[string]any
	Content []*Node
	Marks   []Mark
	Text    string
}

// NewNode builds a node of the given type, filling attribute defaults.
func NewNode(t *schema.NodeType, attrs map[string]any, content []*Node) *Node {
	return &Node{Type: t, Attrs: t.FillAttrs(attrs), Content: content}
}

// NewText builds a text node with the given marks.
func NewText(s *schema.Schema, text string, marks ...Mark) *Node {
	return &Node{Type: s.Node("text"), Text: text, Marks: marks}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Type.IsText() }

// Attr returns the named attribute value, or nil.
func (n *Node) Attr(name string) any {
	if n.Attrs == nil {
		return nil
	}
	return n.Attrs[name]
}

// AttrString returns the named attribute as a string, or "".
func (n *Node) AttrString(name string) string {
	if s, ok := n.Attr(name).(string); ok {
		return s
	}
	return ""
}

// AttrInt returns the named attribute as an int, or fallback. JSON decoding
// yields float64 for numbers, so both int and float64 are accepted.
func (n *Node) AttrInt(name string, fallback int) int {
	switch v := n.Attr(name).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// WithAttr returns a shallow copy of n with the attribute set.
func (n *Node) WithAttr(name string, value any) *Node {
	out := *n
	out.Attrs = make(map[string]any, len(n.Attrs)+1)
	for k, v := range n.Attrs {
		out.Attrs[k] = v
	}
	out.Attrs[name] = value
	return &out
}

// WithoutAttr returns a shallow copy of n with the attribute reset to its
// declared default (or removed when the type declares no default).
func (n *Node) WithoutAttr(name string) *Node {
	out := *n
	out.Attrs = make(map[string]any, len(n.Attrs))
	for k, v := range n.Attrs {
		if k != name {
			out.Attrs[k] = v
		}
	}
	if spec, ok := n.Type.Spec.Attrs[name]; ok && spec.HasDefault {
		out.Attrs[name] = spec.Default
	}
	return &out
}

// WithContent returns a shallow copy of n with replaced children.
func (n *Node) WithContent(content []*Node) *Node {
	out := *n
	out.Content = content
	return &out
}

// WithMarks returns a shallow copy of n with replaced marks.
func (n *Node) WithMarks(marks []Mark) *Node {
	out := *n
	out.Marks = marks
	return &out
}

// HasMark reports whether a mark of the given type is present.
func (n *Node) HasMark(name string) bool {
	for _, m := range n.Marks {
		if m.Type.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	out := *n
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		copy(out.Marks, n.Marks)
	}
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	return &out
}

// Eq reports deep structural equality of two subtrees.
func (n *Node) Eq(other *Node) bool {
	if n == other {
		return true
	}
	if n == nil || other == nil {
		return false
	}
	if n.Type != other.Type || n.Text != other.Text {
		return false
	}
	if !attrsEqual(n.Attrs, other.Attrs) || !marksEqual(n.Marks, other.Marks) {
		return false
	}
	if len(n.Content) != len(other.Content) {
		return false
	}
	for i := range n.Content {
		if !n.Content[i].Eq(other.Content[i]) {
			return false
		}
	}
	return true
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func marksEqual(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !attrsEqual(a[i].Attrs, b[i].Attrs) {
			return false
		}
	}
	return true
}

// TextContent concatenates the text of every text node in the subtree.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// TextLen returns the rune length of the subtree's text content.
func (n *Node) TextLen() int {
	if n.IsText() {
		return len([]rune(n.Text))
	}
	total := 0
	for _, c := range n.Content {
		total += c.TextLen()
	}
	return total
}

// Walk visits every node of the subtree in document (depth-first, preorder)
// order, including n itself. Returning false from fn stops the walk.
func (n *Node) Walk(fn func(node *Node, path Path) bool) {
	n.walk(nil, fn)
}

func (n *Node) walk(path Path, fn func(node *Node, path Path) bool) bool {
	if !fn(n, path) {
		return false
	}
	for i, c := range n.Content {
		if !c.walk(append(path[:len(path):len(path)], i), fn) {
			return false
		}
	}
	return true
}

// Transform rebuilds the subtree bottom-up, calling fn on every node after
// its children have been transformed. fn may return the node unchanged (the
// original pointer), a replacement, or nil to drop the node from its parent.
// Unchanged subtrees are shared, not copied.
func (n *Node) Transform(fn func(node *Node) *Node) *Node {
	cur := n
	if len(n.Content) > 0 {
		var newContent []*Node
		changed := false
		for i, c := range n.Content {
			tc := c.Transform(fn)
			if tc != c && !changed {
				changed = true
				newContent = make([]*Node, 0, len(n.Content))
				newContent = append(newContent, n.Content[:i]...)
			}
			if changed && tc != nil {
				newContent = append(newContent, tc)
			}
		}
		if changed {
			cur = n.WithContent(newContent)
		}
	}
	return fn(cur)
}

// FindByNodeID returns the first node in document order whose nodeID
// attribute equals id, with its path, or nil.
func (n *Node) FindByNodeID(id string) (*Node, Path) {
	if id == "" {
		return nil, nil
	}
	var found *Node
	var foundPath Path
	n.Walk(func(node *Node, path Path) bool {
		if node.AttrString("nodeID") == id {
			found = node
			foundPath = path
			return false
		}
		return true
	})
	return found, foundPath
}

// NodeAt resolves a structural path to a node, or nil when any segment is
// out of range.
func (n *Node) NodeAt(path Path) *Node {
	cur := n
	for _, idx := range path {
		if idx < 0 || idx >= len(cur.Content) {
			return nil
		}
		cur = cur.Content[idx]
	}
	return cur
}

// ReplaceAt returns a new tree with the node at path replaced. A nil
// replacement removes the node. Replacing the root (empty path) returns the
// replacement itself.
func (n *Node) ReplaceAt(path Path, replacement *Node) *Node {
	if len(path) == 0 {
		return replacement
	}
	idx := path[0]
	if idx < 0 || idx >= len(n.Content) {
		return n
	}
	child := n.Content[idx].ReplaceAt(path[1:], replacement)

	content := make([]*Node, 0, len(n.Content))
	content = append(content, n.Content[:idx]...)
	if child != nil {
		content = append(content, child)
	}
	content = append(content, n.Content[idx+1:]...)
	return n.WithContent(content)
}

// InsertAt returns a new tree with nodes inserted into the children of the
// node at parentPath, before index. The index is clamped to the valid range.
func (n *Node) InsertAt(parentPath Path, index int, nodes ...*Node) *Node {
	if len(parentPath) == 0 {
		if index < 0 {
			index = 0
		}
		if index > len(n.Content) {
			index = len(n.Content)
		}
		content := make([]*Node, 0, len(n.Content)+len(nodes))
		content = append(content, n.Content[:index]...)
		content = append(content, nodes...)
		content = append(content, n.Content[index:]...)
		return n.WithContent(content)
	}
	idx := parentPath[0]
	if idx < 0 || idx >= len(n.Content) {
		return n
	}
	child := n.Content[idx].InsertAt(parentPath[1:], index, nodes...)
	content := make([]*Node, len(n.Content))
	copy(content, n.Content)
	content[idx] = child
	return n.WithContent(content)
}
