package document

import (
	"fmt"

	"github.com/starford/ansuz/internal/schema"
)

// Validate checks the subtree against its schema: every node's children must
// satisfy its type's content expression, and marks must be permitted where
// they appear and honour exclusivity rules. The first violation is returned.
func (n *Node) Validate() error {
	return n.validate(nil)
}

func (n *Node) validate(parent *Node) error {
	if n.IsText() {
		if len(n.Content) > 0 {
			return fmt.Errorf("document: text node with children")
		}
	} else {
		types := make([]*schema.NodeType, len(n.Content))
		for i, c := range n.Content {
			types[i] = c.Type
		}
		if !n.Type.ValidContent(types) {
			return fmt.Errorf("document: invalid content for %s (%s)", n.Type.Name, n.Type.Spec.Content)
		}
	}

	if len(n.Marks) > 0 {
		if !n.Type.IsInline() {
			return fmt.Errorf("document: marks on block node %s", n.Type.Name)
		}
		for i, m := range n.Marks {
			if parent != nil && !parent.Type.AllowsMark(m.Type) {
				return fmt.Errorf("document: mark %s not allowed in %s", m.Type.Name, parent.Type.Name)
			}
			for _, other := range n.Marks[i+1:] {
				if m.Type.ExcludesMark(other.Type) || other.Type.ExcludesMark(m.Type) {
					return fmt.Errorf("document: marks %s and %s exclude each other", m.Type.Name, other.Type.Name)
				}
			}
		}
	}

	for _, c := range n.Content {
		if err := c.validate(n); err != nil {
			return err
		}
	}
	return nil
}
