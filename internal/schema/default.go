package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Version is the document format version this build understands. Documents
// persisted with a higher version are opened read-only.
const Version = 3

var noMarks = ""

// Default builds the note schema: the node and mark types every session uses.
func Default() *Schema {
	s, err := New(Version, defaultNodes(), defaultMarks())
	if err != nil {
		// The built-in specs are static; a compile failure is a programming
		// error, not a runtime condition.
		panic(err)
	}
	return s
}

func defaultNodes() []NodeSpec {
	return []NodeSpec{
		{Name: "doc", Content: "block+"},

		{
			Name: "paragraph", Content: "inline*", Group: "block",
			Attrs: map[string]AttrSpec{
				"align":  {Default: "", HasDefault: true},
				"indent": {Default: 0, HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "p", GetAttrs: blockStyleAttrs}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				return DOMOutput{Tag: "p", Attrs: blockStyleDOM(attrs)}
			},
		},

		{
			Name: "heading", Content: "inline*", Group: "block",
			Attrs: map[string]AttrSpec{
				"level": {Default: 1, HasDefault: true},
			},
			ParseRules: headingParseRules(),
			ToDOM: func(attrs map[string]any) DOMOutput {
				return DOMOutput{Tag: fmt.Sprintf("h%d", clampHeadingLevel(attrs["level"]))}
			},
		},

		{
			Name: "blockquote", Content: "block+", Group: "block",
			ParseRules: []ParseRule{{Tag: "blockquote"}},
			ToDOM:      staticDOM("blockquote"),
		},

		{
			Name: "codeBlock", Content: "text*", Group: "block", Marks: &noMarks,
			ParseRules: []ParseRule{{Tag: "pre"}},
			ToDOM:      staticDOM("pre"),
		},

		{
			Name: "bulletList", Content: "listItem+", Group: "block",
			ParseRules: []ParseRule{{Tag: "ul"}},
			ToDOM:      staticDOM("ul"),
		},

		{
			Name: "orderedList", Content: "listItem+", Group: "block",
			Attrs: map[string]AttrSpec{
				"order": {Default: 1, HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "ol", GetAttrs: func(dom map[string]string) (map[string]any, bool) {
				if start, err := strconv.Atoi(dom["start"]); err == nil && start > 0 {
					return map[string]any{"order": start}, true
				}
				return nil, true
			}}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				out := DOMOutput{Tag: "ol"}
				if order := attrInt(attrs, "order", 1); order != 1 {
					out.Attrs = map[string]string{"start": strconv.Itoa(order)}
				}
				return out
			},
		},

		{
			Name: "listItem", Content: "paragraph block*",
			ParseRules: []ParseRule{{Tag: "li"}},
			ToDOM:      staticDOM("li"),
		},

		{
			Name: "table", Content: "tableRow+", Group: "block",
			ParseRules: []ParseRule{{Tag: "table"}},
			ToDOM:      staticDOM("table"),
		},

		{
			Name: "tableRow", Content: "tableCell+",
			ParseRules: []ParseRule{{Tag: "tr"}},
			ToDOM:      staticDOM("tr"),
		},

		{
			Name: "tableCell", Content: "block+",
			Attrs: map[string]AttrSpec{
				"colspan": {Default: 1, HasDefault: true},
				"rowspan": {Default: 1, HasDefault: true},
				"align":   {Default: "", HasDefault: true},
			},
			ParseRules: []ParseRule{
				{Tag: "td", GetAttrs: cellAttrs},
				{Tag: "th", GetAttrs: cellAttrs},
			},
			ToDOM: func(attrs map[string]any) DOMOutput {
				dom := map[string]string{}
				if v := attrInt(attrs, "colspan", 1); v > 1 {
					dom["colspan"] = strconv.Itoa(v)
				}
				if v := attrInt(attrs, "rowspan", 1); v > 1 {
					dom["rowspan"] = strconv.Itoa(v)
				}
				if len(dom) == 0 {
					dom = nil
				}
				return DOMOutput{Tag: "td", Attrs: dom}
			},
		},

		{
			Name: "horizontalRule", Group: "block",
			ParseRules: []ParseRule{{Tag: "hr"}},
			ToDOM: func(map[string]any) DOMOutput {
				return DOMOutput{Tag: "hr", SelfClose: true}
			},
		},

		{
			Name: "hardBreak", Group: "inline", Inline: true,
			ParseRules: []ParseRule{{Tag: "br"}},
			ToDOM: func(map[string]any) DOMOutput {
				return DOMOutput{Tag: "br", SelfClose: true}
			},
		},

		{Name: "text", Group: "inline"},

		{
			Name: "image", Group: "inline", Inline: true, Atom: true, Marks: &noMarks,
			Attrs: map[string]AttrSpec{
				"nodeID":        {Default: "", HasDefault: true},
				"src":           {Default: "", HasDefault: true},
				"attachmentKey": {Default: "", HasDefault: true},
				"width":         {Default: nil, HasDefault: true},
				"height":        {Default: nil, HasDefault: true},
				"annotation":    {Default: nil, HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "img", GetAttrs: func(dom map[string]string) (map[string]any, bool) {
				attrs := map[string]any{"src": dom["src"]}
				if key := dom["data-attachment-key"]; key != "" {
					attrs["attachmentKey"] = key
				}
				if ann, ok := decodeDataAttr(dom["data-annotation"]); ok {
					attrs["annotation"] = ann
				}
				if w, err := strconv.Atoi(dom["width"]); err == nil {
					attrs["width"] = w
				}
				if h, err := strconv.Atoi(dom["height"]); err == nil {
					attrs["height"] = h
				}
				return attrs, true
			}}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				dom := map[string]string{}
				if src := attrString(attrs, "src"); src != "" {
					dom["src"] = src
				}
				if key := attrString(attrs, "attachmentKey"); key != "" {
					dom["data-attachment-key"] = key
				}
				if enc, ok := encodeDataAttr(attrs["annotation"]); ok {
					dom["data-annotation"] = enc
				}
				if w := attrInt(attrs, "width", 0); w > 0 {
					dom["width"] = strconv.Itoa(w)
				}
				if h := attrInt(attrs, "height", 0); h > 0 {
					dom["height"] = strconv.Itoa(h)
				}
				return DOMOutput{Tag: "img", Attrs: dom, SelfClose: true}
			},
		},

		{
			Name: "citation", Group: "inline", Inline: true, Atom: true,
			Attrs: map[string]AttrSpec{
				"nodeID":            {Default: "", HasDefault: true},
				"citation":          {Default: nil, HasDefault: true},
				"formattedCitation": {Default: "", HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "span", Priority: 60, GetAttrs: func(dom map[string]string) (map[string]any, bool) {
				raw, present := dom["data-citation"]
				if !present {
					return nil, false
				}
				attrs := map[string]any{}
				if cit, ok := decodeDataAttr(raw); ok {
					attrs["citation"] = cit
				}
				return attrs, true
			}}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				dom := map[string]string{"class": "citation"}
				if enc, ok := encodeDataAttr(attrs["citation"]); ok {
					dom["data-citation"] = enc
				}
				return DOMOutput{Tag: "span", Attrs: dom}
			},
		},

		{
			Name: "highlight", Content: "inline*", Group: "inline", Inline: true,
			Attrs: map[string]AttrSpec{
				"annotation": {Default: nil, HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "span", Priority: 50, GetAttrs: func(dom map[string]string) (map[string]any, bool) {
				raw, present := dom["data-annotation"]
				if !present {
					return nil, false
				}
				attrs := map[string]any{}
				if ann, ok := decodeDataAttr(raw); ok {
					attrs["annotation"] = ann
				}
				return attrs, true
			}}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				dom := map[string]string{"class": "highlight"}
				if enc, ok := encodeDataAttr(attrs["annotation"]); ok {
					dom["data-annotation"] = enc
				}
				return DOMOutput{Tag: "span", Attrs: dom}
			},
		},
	}
}

func defaultMarks() []MarkSpec {
	return []MarkSpec{
		{
			Name:       "strong",
			ParseRules: []ParseRule{{Tag: "strong"}, {Tag: "b"}},
			ToDOM:      markDOM("strong"),
		},
		{
			Name:       "em",
			ParseRules: []ParseRule{{Tag: "em"}, {Tag: "i"}},
			ToDOM:      markDOM("em"),
		},
		{
			Name:       "underline",
			ParseRules: []ParseRule{{Tag: "u"}},
			ToDOM:      markDOM("u"),
		},
		{
			Name:       "strike",
			ParseRules: []ParseRule{{Tag: "s"}, {Tag: "del"}, {Tag: "strike"}},
			ToDOM:      markDOM("s"),
		},
		{
			Name: "subscript", Excludes: "superscript",
			ParseRules: []ParseRule{{Tag: "sub"}},
			ToDOM:      markDOM("sub"),
		},
		{
			Name: "superscript", Excludes: "subscript",
			ParseRules: []ParseRule{{Tag: "sup"}},
			ToDOM:      markDOM("sup"),
		},
		{
			// Code excludes every other mark on the same span.
			Name: "code", Excludes: "_",
			ParseRules: []ParseRule{{Tag: "code"}},
			ToDOM:      markDOM("code"),
		},
		{
			Name: "link",
			Attrs: map[string]AttrSpec{
				"href": {Default: "", HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "a", GetAttrs: func(dom map[string]string) (map[string]any, bool) {
				href, present := dom["href"]
				if !present {
					return nil, false
				}
				return map[string]any{"href": href}, true
			}}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				return DOMOutput{Tag: "a", Attrs: map[string]string{
					"href": attrString(attrs, "href"),
					"rel":  "noopener noreferrer nofollow",
				}}
			},
		},
		{
			Name: "textColor",
			Attrs: map[string]AttrSpec{
				"color": {Default: "", HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "span", Priority: 10, GetAttrs: styleColorAttrs("color")}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				return DOMOutput{Tag: "span", Attrs: map[string]string{
					"style": "color: " + attrString(attrs, "color"),
				}}
			},
		},
		{
			Name: "backgroundColor",
			Attrs: map[string]AttrSpec{
				"color": {Default: "", HasDefault: true},
			},
			ParseRules: []ParseRule{{Tag: "span", Priority: 10, GetAttrs: styleColorAttrs("background-color")}},
			ToDOM: func(attrs map[string]any) DOMOutput {
				return DOMOutput{Tag: "span", Attrs: map[string]string{
					"style": "background-color: " + attrString(attrs, "color"),
				}}
			},
		},
	}
}

func staticDOM(tag string) func(map[string]any) DOMOutput {
	return func(map[string]any) DOMOutput { return DOMOutput{Tag: tag} }
}

func markDOM(tag string) func(map[string]any) DOMOutput {
	return func(map[string]any) DOMOutput { return DOMOutput{Tag: tag} }
}

func headingParseRules() []ParseRule {
	rules := make([]ParseRule, 0, 6)
	for level := 1; level <= 6; level++ {
		l := level
		rules = append(rules, ParseRule{
			Tag: fmt.Sprintf("h%d", l),
			GetAttrs: func(map[string]string) (map[string]any, bool) {
				return map[string]any{"level": l}, true
			},
		})
	}
	return rules
}

func clampHeadingLevel(v any) int {
	level := 1
	switch n := v.(type) {
	case int:
		level = n
	case float64:
		level = int(n)
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return level
}

func blockStyleAttrs(dom map[string]string) (map[string]any, bool) {
	attrs := map[string]any{}
	styles := ParseStyle(dom["style"])
	switch styles["text-align"] {
	case "left", "right", "center", "justify":
		attrs["align"] = styles["text-align"]
	}
	if pad, ok := styles["padding-left"]; ok {
		if px, err := strconv.Atoi(strings.TrimSuffix(pad, "px")); err == nil && px > 0 {
			attrs["indent"] = px / 40
		}
	}
	return attrs, true
}

func blockStyleDOM(attrs map[string]any) map[string]string {
	var parts []string
	if align := attrString(attrs, "align"); align != "" {
		parts = append(parts, "text-align: "+align)
	}
	if indent := attrInt(attrs, "indent", 0); indent > 0 {
		parts = append(parts, fmt.Sprintf("padding-left: %dpx", indent*40))
	}
	if len(parts) == 0 {
		return nil
	}
	return map[string]string{"style": strings.Join(parts, "; ")}
}

func cellAttrs(dom map[string]string) (map[string]any, bool) {
	attrs := map[string]any{}
	if v, err := strconv.Atoi(dom["colspan"]); err == nil && v > 0 {
		attrs["colspan"] = v
	}
	if v, err := strconv.Atoi(dom["rowspan"]); err == nil && v > 0 {
		attrs["rowspan"] = v
	}
	return attrs, true
}

func styleColorAttrs(property string) func(map[string]string) (map[string]any, bool) {
	return func(dom map[string]string) (map[string]any, bool) {
		styles := ParseStyle(dom["style"])
		color, ok := styles[property]
		if !ok || color == "" {
			return nil, false
		}
		return map[string]any{"color": color}, true
	}
}

// ParseStyle splits an inline CSS declaration list into a property map.
// Malformed declarations are skipped.
func ParseStyle(style string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(style, ";") {
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

// decodeDataAttr decodes a URL-encoded JSON data-* attribute value.
// Malformed input is treated as absent, never as an error.
func decodeDataAttr(raw string) (any, bool) {
	if raw == "" {
		return nil, false
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(unescaped), &v); err != nil {
		return nil, false
	}
	return v, true
}

// encodeDataAttr encodes a value as URL-encoded JSON for a data-* attribute.
func encodeDataAttr(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return url.QueryEscape(string(data)), true
}

func attrString(attrs map[string]any, name string) string {
	if s, ok := attrs[name].(string); ok {
		return s
	}
	return ""
}

func attrInt(attrs map[string]any, name string, fallback int) int {
	switch n := attrs[name].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return fallback
}
