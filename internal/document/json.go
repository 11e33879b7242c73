package document

import (
	"encoding/json"
	"fmt"

	"github.com/starford/ansuz/internal/schema"
)

type nodeJSON struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []nodeJSON     `json:"content,omitempty"`
	Marks   []markJSON     `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
}

type markJSON struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// FromJSON decodes a document tree from its persisted JSON form. Unknown
// node or mark types are an error: the caller decides whether that means a
// newer schema (read-only fallback) or corrupt input.
func FromJSON(s *schema.Schema, data []byte) (*Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: decode json: %w", err)
	}
	return fromJSONNode(s, raw)
}

func fromJSONNode(s *schema.Schema, raw nodeJSON) (*Node, error) {
	t := s.Node(raw.Type)
	if t == nil {
		return nil, fmt.Errorf("document: unknown node type %q", raw.Type)
	}

	var marks []Mark
	for _, m := range raw.Marks {
		mt := s.Mark(m.Type)
		if mt == nil {
			return nil, fmt.Errorf("document: unknown mark type %q", m.Type)
		}
		marks = append(marks, Mark{Type: mt, Attrs: m.Attrs})
	}

	if t.IsText() {
		return &Node{Type: t, Text: raw.Text, Marks: marks}, nil
	}

	var content []*Node
	for _, c := range raw.Content {
		child, err := fromJSONNode(s, c)
		if err != nil {
			return nil, err
		}
		content = append(content, child)
	}
	return &Node{Type: t, Attrs: t.FillAttrs(raw.Attrs), Content: content, Marks: marks}, nil
}

// ToJSON encodes the subtree as persisted JSON.
func (n *Node) ToJSON() ([]byte, error) {
	return json.Marshal(n.toJSONNode())
}

func (n *Node) toJSONNode() nodeJSON {
	out := nodeJSON{Type: n.Type.Name, Text: n.Text}
	if len(n.Attrs) > 0 {
		out.Attrs = n.Attrs
	}
	for _, m := range n.Marks {
		out.Marks = append(out.Marks, markJSON{Type: m.Type.Name, Attrs: m.Attrs})
	}
	for _, c := range n.Content {
		out.Content = append(out.Content, c.toJSONNode())
	}
	return out
}
