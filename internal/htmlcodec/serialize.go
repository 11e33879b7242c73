// Package htmlcodec converts between document trees and the persisted HTML
// form: a fragment wrapped in a container element that carries the schema
// version and citation item data as URL-encoded JSON attributes.
package htmlcodec

import (
	"html"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
)

// Serialize renders the document and its metadata store as the persisted
// HTML fragment.
func Serialize(doc *document.Node, store *metadata.Store) string {
	var b strings.Builder
	b.WriteString("<div")
	writeAttrs(&b, store.SerializeAttributes())
	b.WriteString(">")
	for _, child := range doc.Content {
		serializeNode(&b, child)
	}
	b.WriteString("</div>")
	return b.String()
}

// SerializeFragment renders nodes without the container wrapper.
func SerializeFragment(nodes []*document.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		serializeNode(&b, n)
	}
	return b.String()
}

func serializeNode(b *strings.Builder, n *document.Node) {
	// Marks wrap the node outermost-first in their slice order.
	for _, m := range n.Marks {
		out := m.Type.Spec.ToDOM(m.Attrs)
		b.WriteString("<")
		b.WriteString(out.Tag)
		writeAttrs(b, out.Attrs)
		b.WriteString(">")
	}

	switch {
	case n.IsText():
		b.WriteString(html.EscapeString(n.Text))
	default:
		out := n.Type.Spec.ToDOM(n.Attrs)
		b.WriteString("<")
		b.WriteString(out.Tag)
		writeAttrs(b, out.Attrs)
		if out.SelfClose {
			b.WriteString("/>")
		} else {
			b.WriteString(">")
			if n.Type.Name == "citation" {
				// Atomic citation nodes render their cached display text.
				b.WriteString(html.EscapeString(n.AttrString("formattedCitation")))
			}
			for _, child := range n.Content {
				serializeNode(b, child)
			}
			b.WriteString("</")
			b.WriteString(out.Tag)
			b.WriteString(">")
		}
	}

	for i := len(n.Marks) - 1; i >= 0; i-- {
		out := n.Marks[i].Type.Spec.ToDOM(n.Marks[i].Attrs)
		b.WriteString("</")
		b.WriteString(out.Tag)
		b.WriteString(">")
	}
}

func writeAttrs(b *strings.Builder, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attrs[name]))
		b.WriteString(`"`)
	}
}
