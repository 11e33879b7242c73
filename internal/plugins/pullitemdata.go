package plugins

import (
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/state"
)

// PullItemData keeps the document lean: whenever a transaction changes the
// document, any citation, highlight, or image node carrying an embedded
// itemData snapshot has it stripped into the metadata store, which remains
// the source of truth during editing. The snapshot is re-inflated only for
// serialization and clipboard purposes.
type PullItemData struct {
	ctx *Context
}

// NewPullItemData builds the item-data extraction plugin.
func NewPullItemData(ctx *Context) *PullItemData {
	return &PullItemData{ctx: ctx}
}

// Name implements state.Plugin.
func (*PullItemData) Name() string { return "pullitemdata" }

// AppendTransaction implements state.Appender.
func (p *PullItemData) AppendTransaction(trs []*state.Transaction, _, next *state.EditorState) *state.Transaction {
	if !anyDocChanged(trs) || p.ctx == nil || p.ctx.Store == nil {
		return nil
	}

	var pulled []metadata.CitationItem
	newDoc := next.Doc.Transform(func(n *document.Node) *document.Node {
		switch n.Type.Name {
		case "citation":
			lean, items, changed := metadata.PullEmbeddedItemData("citation", n.Attr("citation"))
			if !changed {
				return n
			}
			pulled = append(pulled, items...)
			return n.WithAttr("citation", lean)
		case "highlight", "image":
			lean, items, changed := metadata.PullEmbeddedItemData(n.Type.Name, n.Attr("annotation"))
			if !changed {
				return n
			}
			pulled = append(pulled, items...)
			return n.WithAttr("annotation", lean)
		}
		return n
	})

	if newDoc == next.Doc {
		return nil
	}
	p.ctx.Store.AddPulledCitationItems(pulled)
	return next.NewTransaction().SetDoc(newDoc).SetOrigin(state.OriginPlugin)
}
