package plugins

import (
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/state"
)

// SchemaTransform enforces structural invariants the content grammar alone
// cannot express: image nodes carry no marks, and the code mark never sits
// on a non-text node. Runs after every transaction and after initial load.
type SchemaTransform struct{}

// Name implements state.Plugin.
func (*SchemaTransform) Name() string { return "schematransform" }

// AppendTransaction implements state.Appender.
func (*SchemaTransform) AppendTransaction(trs []*state.Transaction, _, next *state.EditorState) *state.Transaction {
	if !anyDocChanged(trs) {
		return nil
	}
	newDoc := Clean(next.Doc)
	if newDoc == next.Doc {
		return nil
	}
	return next.NewTransaction().SetDoc(newDoc).SetOrigin(state.OriginPlugin)
}

// Clean applies the structural clean-up pass to a document and returns the
// repaired tree, or the original pointer when nothing needed fixing.
func Clean(doc *document.Node) *document.Node {
	return doc.Transform(func(n *document.Node) *document.Node {
		if len(n.Marks) == 0 {
			return n
		}
		if n.Type.Name == "image" {
			return n.WithMarks(nil)
		}
		if !n.IsText() && n.HasMark("code") {
			var kept []document.Mark
			for _, m := range n.Marks {
				if m.Type.Name != "code" {
					kept = append(kept, m)
				}
			}
			return n.WithMarks(kept)
		}
		return n
	})
}
