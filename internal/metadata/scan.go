package metadata

import (
	"encoding/json"

	"github.com/starford/ansuz/internal/document"
)

// Citation and annotation attribute values are generic decoded JSON
// (map[string]any). The helpers below read and rewrite them without
// imposing a rigid schema: one corrupt payload never aborts a scan.

// ReferencedURISets scans the whole document and returns the URI set of
// every citation item referenced by a citation, highlight, or image node.
func ReferencedURISets(doc *document.Node) [][]string {
	var out [][]string
	doc.Walk(func(n *document.Node, _ document.Path) bool {
		switch n.Type.Name {
		case "citation":
			for _, item := range citationItems(n.Attr("citation")) {
				if uris := itemURIs(item); len(uris) > 0 {
					out = append(out, uris)
				}
			}
		case "highlight", "image":
			if item := annotationCitationItem(n.Attr("annotation")); item != nil {
				if uris := itemURIs(item); len(uris) > 0 {
					out = append(out, uris)
				}
			}
		}
		return true
	})
	return out
}

// citationItems returns the citationItems array of a citation attr value.
func citationItems(v any) []map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := obj["citationItems"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// annotationCitationItem returns the citationItem of an annotation attr
// value, or nil.
func annotationCitationItem(v any) map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	item, ok := obj["citationItem"].(map[string]any)
	if !ok {
		return nil
	}
	return item
}

func itemURIs(item map[string]any) []string {
	raw, ok := item["uris"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, u := range raw {
		if s, ok := u.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PullEmbeddedItemData removes inline itemData payloads from a citation or
// annotation attr value, returning the lean value and the pulled items. The
// boolean reports whether anything was stripped; when false the original
// value is returned unmodified.
func PullEmbeddedItemData(nodeType string, v any) (any, []CitationItem, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return v, nil, false
	}

	var pulled []CitationItem
	stripped := false

	strip := func(item map[string]any) map[string]any {
		raw, has := item["itemData"]
		if !has {
			return item
		}
		uris := itemURIs(item)
		if data, err := json.Marshal(raw); err == nil && len(uris) > 0 {
			pulled = append(pulled, CitationItem{URIs: uris, ItemData: data})
		}
		lean := make(map[string]any, len(item))
		for k, val := range item {
			if k != "itemData" {
				lean[k] = val
			}
		}
		stripped = true
		return lean
	}

	out := make(map[string]any, len(obj))
	for k, val := range obj {
		out[k] = val
	}

	if nodeType == "citation" {
		raw, ok := obj["citationItems"].([]any)
		if ok {
			items := make([]any, len(raw))
			for i, it := range raw {
				if m, ok := it.(map[string]any); ok {
					items[i] = strip(m)
				} else {
					items[i] = it
				}
			}
			out["citationItems"] = items
		}
	} else {
		if item, ok := obj["citationItem"].(map[string]any); ok {
			out["citationItem"] = strip(item)
		}
	}

	if !stripped {
		return v, nil, false
	}
	return out, pulled, true
}

// CitationItemCount returns how many citation items a citation attr value
// carries. Used to decide between replacing and deleting a citation node.
func CitationItemCount(v any) int {
	return len(citationItems(v))
}
