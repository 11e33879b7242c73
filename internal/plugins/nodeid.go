package plugins

import (
	"github.com/oklog/ulid/v2"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/state"
)

// NewToken generates a node identity token: a 26-character Crockford
// base32 ULID. Node identity must survive structural edits, so it is a
// random token rather than a positional address; ULIDs are collision
// resistant without needing cryptographic strength.
func NewToken() string {
	return ulid.Make().String()
}

// NodeID reconciles node identity after every document change: any node
// declaring a nodeID attribute that is missing one, or that shares an ID
// already seen earlier in document order, gets a fresh token. The first
// occurrence in document order keeps its ID, so a copy-pasted duplicate is
// the one rewritten. The pass is idempotent.
type NodeID struct{}

// Name implements state.Plugin.
func (*NodeID) Name() string { return "nodeid" }

// AppendTransaction implements state.Appender.
func (*NodeID) AppendTransaction(trs []*state.Transaction, _, next *state.EditorState) *state.Transaction {
	if !anyDocChanged(trs) {
		return nil
	}
	seen := make(map[string]struct{})
	newDoc, changed := reconcileIDs(next.Doc, seen)
	if !changed {
		return nil
	}
	return next.NewTransaction().SetDoc(newDoc).SetOrigin(state.OriginPlugin)
}

// ReconcileIDs runs the identity pass directly on a document, outside the
// transaction pipeline. Sessions use it to repair freshly loaded content
// before the first state exists.
func ReconcileIDs(doc *document.Node) *document.Node {
	newDoc, changed := reconcileIDs(doc, make(map[string]struct{}))
	if !changed {
		return doc
	}
	return newDoc
}

// reconcileIDs rewrites the subtree in document (preorder) order.
func reconcileIDs(n *document.Node, seen map[string]struct{}) (*document.Node, bool) {
	cur := n
	changed := false

	if n.Type.HasAttr("nodeID") {
		id := n.AttrString("nodeID")
		_, dup := seen[id]
		if id == "" || dup {
			id = NewToken()
			cur = n.WithAttr("nodeID", id)
			changed = true
		}
		seen[id] = struct{}{}
	}

	var newContent []*document.Node
	for i, c := range cur.Content {
		nc, childChanged := reconcileIDs(c, seen)
		if childChanged && newContent == nil {
			newContent = make([]*document.Node, 0, len(cur.Content))
			newContent = append(newContent, cur.Content[:i]...)
		}
		if newContent != nil {
			newContent = append(newContent, nc)
		}
	}
	if newContent != nil {
		cur = cur.WithContent(newContent)
		changed = true
	}
	return cur, changed
}

func anyDocChanged(trs []*state.Transaction) bool {
	for _, tr := range trs {
		if tr.DocChanged() {
			return true
		}
	}
	return false
}
