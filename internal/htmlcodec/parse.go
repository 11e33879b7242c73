package htmlcodec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/schema"
)

// Parser parses HTML into document trees using the schema's parse rules.
type Parser struct {
	schema    *schema.Schema
	nodeRules map[string][]nodeRule
	markRules map[string][]markRule
}

type nodeRule struct {
	typ  *schema.NodeType
	rule schema.ParseRule
}

type markRule struct {
	typ  *schema.MarkType
	rule schema.ParseRule
}

// NewParser compiles the schema's DOM parse rules into a tag-indexed table.
func NewParser(s *schema.Schema) *Parser {
	p := &Parser{
		schema:    s,
		nodeRules: map[string][]nodeRule{},
		markRules: map[string][]markRule{},
	}
	for _, nt := range s.Nodes() {
		for _, r := range nt.Spec.ParseRules {
			p.nodeRules[r.Tag] = append(p.nodeRules[r.Tag], nodeRule{typ: nt, rule: r})
		}
	}
	for _, mt := range s.Marks() {
		for _, r := range mt.Spec.ParseRules {
			p.markRules[r.Tag] = append(p.markRules[r.Tag], markRule{typ: mt, rule: r})
		}
	}
	for tag := range p.nodeRules {
		rules := p.nodeRules[tag]
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].rule.Priority > rules[j].rule.Priority })
	}
	for tag := range p.markRules {
		rules := p.markRules[tag]
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].rule.Priority > rules[j].rule.Priority })
	}
	return p
}

// ParseDocument parses a persisted HTML fragment into a full document plus
// its metadata store. The container element's attributes feed the store; a
// fragment without a container is parsed as bare content with an empty
// store at the current schema version.
func (p *Parser) ParseDocument(input string) (*document.Node, *metadata.Store, error) {
	root, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return nil, nil, fmt.Errorf("htmlcodec: parse: %w", err)
	}

	body := findBody(root)
	if body == nil {
		return nil, nil, fmt.Errorf("htmlcodec: no document body")
	}

	store := metadata.NewStore(p.schema.Version)
	contentRoot := body
	if container := findContainer(body); container != nil {
		store.ParseAttributes(attrMap(container))
		contentRoot = container
	}

	blocks := p.parseBlockChildren(contentRoot, nil, false)
	docType := p.schema.Node("doc")
	content := p.fitContent(docType, blocks)
	doc := document.NewNode(docType, nil, content)
	if err := doc.Validate(); err != nil {
		return nil, nil, fmt.Errorf("htmlcodec: parsed document invalid: %w", err)
	}
	return doc, store, nil
}

// ParseFragment parses arbitrary HTML into a list of block nodes suitable
// for insertion into a document.
func (p *Parser) ParseFragment(input string) ([]*document.Node, error) {
	root, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("htmlcodec: parse fragment: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, nil
	}
	blocks := p.parseBlockChildren(body, nil, false)
	if len(blocks) == 0 {
		// Content-free input must not become a phantom empty paragraph.
		return nil, nil
	}
	return p.fitContent(p.schema.Node("doc"), blocks), nil
}

// parseBlockChildren parses the children of an element into a mixed list of
// block and inline document nodes. Fitting into a valid content sequence is
// the caller's job.
func (p *Parser) parseBlockChildren(parent *html.Node, marks []document.Mark, pre bool) []*document.Node {
	var out []*document.Node
	for el := parent.FirstChild; el != nil; el = el.NextSibling {
		out = append(out, p.parseAny(el, marks, pre)...)
	}
	return out
}

var wsRe = regexp.MustCompile(`[ \t\r\n]+`)

func (p *Parser) parseAny(el *html.Node, marks []document.Mark, pre bool) []*document.Node {
	switch el.Type {
	case html.TextNode:
		text := el.Data
		if !pre {
			text = wsRe.ReplaceAllString(text, " ")
			if strings.TrimSpace(text) == "" {
				// Whitespace-only runs between elements carry no content.
				return nil
			}
		}
		if text == "" {
			return nil
		}
		return []*document.Node{textNode(p.schema, text, marks)}
	case html.ElementNode:
		// fall through
	default:
		return nil
	}

	tag := el.Data
	switch tag {
	case "script", "style", "head", "title", "meta", "link", "iframe", "object":
		return nil
	}

	dom := attrMap(el)

	// Node rules beat mark rules at equal tag; both lists are already in
	// descending priority order.
	for _, nr := range p.nodeRules[tag] {
		attrs, ok := applyRule(nr.rule, dom)
		if !ok {
			continue
		}
		return []*document.Node{p.buildNode(nr.typ, attrs, el, marks, pre)}
	}

	for _, mr := range p.markRules[tag] {
		attrs, ok := applyRule(mr.rule, dom)
		if !ok {
			continue
		}
		withMark := appendMark(marks, document.Mark{Type: mr.typ, Attrs: attrs})
		return p.parseBlockChildren(el, withMark, pre)
	}

	// Unknown element: transparent, recurse into children.
	return p.parseBlockChildren(el, marks, pre)
}

func applyRule(rule schema.ParseRule, dom map[string]string) (map[string]any, bool) {
	if rule.GetAttrs == nil {
		return nil, true
	}
	return rule.GetAttrs(dom)
}

// appendMark adds a mark, dropping any existing mark the new one excludes
// (and skipping the new one if an existing mark excludes it).
func appendMark(marks []document.Mark, m document.Mark) []document.Mark {
	out := make([]document.Mark, 0, len(marks)+1)
	for _, existing := range marks {
		if existing.Type.ExcludesMark(m.Type) {
			// An outer exclusive mark wins over the inner one.
			return marks
		}
		if m.Type.ExcludesMark(existing.Type) {
			continue
		}
		out = append(out, existing)
	}
	return append(out, m)
}

func (p *Parser) buildNode(t *schema.NodeType, attrs map[string]any, el *html.Node, marks []document.Mark, pre bool) *document.Node {
	if t.IsLeaf() {
		n := document.NewNode(t, attrs, nil)
		if t.IsInline() && t.Name != "image" {
			n.Marks = marks
		}
		return n
	}
	childPre := pre || t.Name == "codeBlock"
	kids := p.parseBlockChildren(el, marksForChildren(t, marks), childPre)
	content := p.fitContent(t, kids)
	n := document.NewNode(t, attrs, content)
	if t.IsInline() {
		n.Marks = marks
	}
	return n
}

// marksForChildren drops active marks that the parent type forbids.
func marksForChildren(t *schema.NodeType, marks []document.Mark) []document.Mark {
	var out []document.Mark
	for _, m := range marks {
		if t.AllowsMark(m.Type) {
			out = append(out, m)
		}
	}
	return out
}

// fitContent coerces a mixed child list into a sequence valid for the
// parent type: inline runs are wrapped in paragraphs where the parent needs
// blocks, block children are flattened to text where the parent is a
// textblock, and children that can never fit are dropped.
func (p *Parser) fitContent(parent *schema.NodeType, kids []*document.Node) []*document.Node {
	textType := p.schema.Node("text")
	paraType := p.schema.Node("paragraph")

	if parent.AllowsChildType(textType) {
		// Textblock: keep inline children, flatten anything else to text.
		var out []*document.Node
		for _, k := range kids {
			switch {
			case k.Type.IsInline() && parent.AllowsChildType(k.Type):
				out = append(out, k)
			case k.Type.IsInline():
				// Inline node the parent cannot hold (e.g. image in code
				// block): keep its text content.
				if text := k.TextContent(); text != "" {
					out = append(out, textNode(p.schema, text, nil))
				}
			default:
				if text := k.TextContent(); text != "" {
					out = append(out, textNode(p.schema, text, nil))
				}
			}
		}
		return out
	}

	// Block container: wrap stray inline runs into paragraphs.
	var out []*document.Node
	var run []*document.Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		if parent.AllowsChildType(paraType) {
			out = append(out, document.NewNode(paraType, nil, run))
		}
		run = nil
	}
	for _, k := range kids {
		if k.Type.IsInline() {
			if len(run) == 0 && k.IsText() && strings.TrimSpace(k.Text) == "" {
				continue
			}
			run = append(run, k)
			continue
		}
		flush()
		if parent.AllowsChildType(k.Type) {
			out = append(out, k)
		} else {
			// A block the parent cannot hold: splice its children through
			// another fitting pass.
			out = append(out, p.fitContent(parent, k.Content)...)
		}
	}
	flush()

	if p.contentValid(parent, out) {
		return out
	}
	// Last resort: an empty-but-required container gets an empty paragraph.
	if len(out) == 0 && parent.AllowsChildType(paraType) {
		return []*document.Node{document.NewNode(paraType, nil, nil)}
	}
	return out
}

func (p *Parser) contentValid(parent *schema.NodeType, kids []*document.Node) bool {
	types := make([]*schema.NodeType, len(kids))
	for i, k := range kids {
		types[i] = k.Type
	}
	return parent.ValidContent(types)
}

func textNode(s *schema.Schema, text string, marks []document.Mark) *document.Node {
	n := document.NewText(s, text)
	n.Marks = marks
	return n
}

func attrMap(el *html.Node) map[string]string {
	out := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func findBody(root *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
	return body
}

// findContainer locates the persisted-format wrapper: the first element
// carrying a data-schema-version attribute.
func findContainer(body *html.Node) *html.Node {
	var container *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "data-schema-version" {
					container = n
					return false
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(body)
	return container
}
