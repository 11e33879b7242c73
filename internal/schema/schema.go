// Package schema defines the note document schema: the registry of node and
// mark types with their attributes, content constraints, and bidirectional
// DOM mapping rules.
package schema

import (
	"fmt"
	"strings"
)

// AttrSpec describes a single named attribute of a node or mark type.
type AttrSpec struct {
	// Default is applied when the attribute is not given. A nil Default with
	// HasDefault false marks the attribute as required.
	Default    any
	HasDefault bool
}

// ParseRule maps a DOM tag onto a node or mark type. Rules are matched in
// descending Priority order; the first rule whose GetAttrs accepts the
// element wins.
type ParseRule struct {
	Tag      string
	Priority int
	// GetAttrs derives typed attrs from the element's DOM attributes. A false
	// return rejects the element for this rule. A nil GetAttrs accepts the
	// element with no attrs.
	GetAttrs func(dom map[string]string) (map[string]any, bool)
}

// DOMOutput describes how a node or mark renders to the DOM.
type DOMOutput struct {
	Tag       string
	Attrs     map[string]string
	SelfClose bool
}

// NodeSpec declares a node type for Schema construction.
type NodeSpec struct {
	Name    string
	Content string // content expression over child names/groups
	Group   string // space-separated group memberships
	Inline  bool
	Atom    bool
	// Marks restricts which marks may apply: nil means the default (any mark
	// for inline content, none otherwise), a pointer to "" forbids all marks.
	Marks      *string
	Attrs      map[string]AttrSpec
	ParseRules []ParseRule
	ToDOM      func(attrs map[string]any) DOMOutput
}

// MarkSpec declares a mark type for Schema construction.
type MarkSpec struct {
	Name string
	// Excludes lists mark names this mark cannot coexist with. The special
	// value "_" excludes every other mark.
	Excludes   string
	Attrs      map[string]AttrSpec
	ParseRules []ParseRule
	ToDOM      func(attrs map[string]any) DOMOutput
}

// NodeType is a compiled node type within a Schema.
type NodeType struct {
	Name   string
	Spec   NodeSpec
	groups map[string]struct{}
	expr   *contentExpr
	schema *Schema
}

// MarkType is a compiled mark type within a Schema.
type MarkType struct {
	Name   string
	Spec   MarkSpec
	schema *Schema
}

// Schema is the compiled node/mark type registry. It also carries the
// monotonic document format version used to gate read-only fallback.
type Schema struct {
	Version   int
	nodes     map[string]*NodeType
	marks     map[string]*MarkType
	nodeOrder []string
	markOrder []string
}

// New compiles node and mark specs into a Schema. Spec order is preserved
// and matters for DOM parsing rule precedence ties.
func New(version int, nodes []NodeSpec, marks []MarkSpec) (*Schema, error) {
	s := &Schema{
		Version: version,
		nodes:   make(map[string]*NodeType, len(nodes)),
		marks:   make(map[string]*MarkType, len(marks)),
	}

	for _, spec := range nodes {
		if spec.Name == "" {
			return nil, fmt.Errorf("schema: node spec without a name")
		}
		if _, dup := s.nodes[spec.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate node type %q", spec.Name)
		}
		nt := &NodeType{Name: spec.Name, Spec: spec, schema: s, groups: map[string]struct{}{}}
		for _, g := range strings.Fields(spec.Group) {
			nt.groups[g] = struct{}{}
		}
		expr, err := compileContentExpr(spec.Content)
		if err != nil {
			return nil, err
		}
		nt.expr = expr
		s.nodes[spec.Name] = nt
		s.nodeOrder = append(s.nodeOrder, spec.Name)
	}

	for _, spec := range marks {
		if spec.Name == "" {
			return nil, fmt.Errorf("schema: mark spec without a name")
		}
		if _, dup := s.marks[spec.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate mark type %q", spec.Name)
		}
		s.marks[spec.Name] = &MarkType{Name: spec.Name, Spec: spec, schema: s}
		s.markOrder = append(s.markOrder, spec.Name)
	}

	if _, ok := s.nodes["doc"]; !ok {
		return nil, fmt.Errorf("schema: missing required %q node type", "doc")
	}
	if _, ok := s.nodes["text"]; !ok {
		return nil, fmt.Errorf("schema: missing required %q node type", "text")
	}

	return s, nil
}

// Node returns the node type by name, or nil.
func (s *Schema) Node(name string) *NodeType { return s.nodes[name] }

// Mark returns the mark type by name, or nil.
func (s *Schema) Mark(name string) *MarkType { return s.marks[name] }

// Nodes returns all node types in declaration order.
func (s *Schema) Nodes() []*NodeType {
	out := make([]*NodeType, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		out = append(out, s.nodes[name])
	}
	return out
}

// Marks returns all mark types in declaration order.
func (s *Schema) Marks() []*MarkType {
	out := make([]*MarkType, 0, len(s.markOrder))
	for _, name := range s.markOrder {
		out = append(out, s.marks[name])
	}
	return out
}

// NodeTypesWithAttr returns every node type declaring the named attribute,
// in declaration order. Plugins and commands use this to operate uniformly
// over e.g. all nodeID-capable or align-capable types.
func (s *Schema) NodeTypesWithAttr(attr string) []*NodeType {
	var out []*NodeType
	for _, name := range s.nodeOrder {
		nt := s.nodes[name]
		if nt.HasAttr(attr) {
			out = append(out, nt)
		}
	}
	return out
}

func (t *NodeType) inGroup(g string) bool {
	_, ok := t.groups[g]
	return ok
}

// IsInline reports whether nodes of this type live in inline content.
func (t *NodeType) IsInline() bool { return t.Spec.Inline || t.Name == "text" }

// IsBlock reports whether nodes of this type are block-level.
func (t *NodeType) IsBlock() bool { return !t.IsInline() }

// IsText reports whether this is the text type.
func (t *NodeType) IsText() bool { return t.Name == "text" }

// IsAtom reports whether nodes of this type have no directly editable content.
func (t *NodeType) IsAtom() bool { return t.Spec.Atom }

// IsLeaf reports whether nodes of this type may not have children.
func (t *NodeType) IsLeaf() bool { return t.Spec.Content == "" }

// HasAttr reports whether the type declares the named attribute.
func (t *NodeType) HasAttr(name string) bool {
	_, ok := t.Spec.Attrs[name]
	return ok
}

// DefaultAttrs returns a fresh attrs map holding every declared default.
func (t *NodeType) DefaultAttrs() map[string]any {
	if len(t.Spec.Attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(t.Spec.Attrs))
	for name, spec := range t.Spec.Attrs {
		if spec.HasDefault {
			out[name] = spec.Default
		}
	}
	return out
}

// FillAttrs merges given attrs over the declared defaults.
func (t *NodeType) FillAttrs(given map[string]any) map[string]any {
	out := t.DefaultAttrs()
	if len(given) == 0 {
		return out
	}
	if out == nil {
		out = make(map[string]any, len(given))
	}
	for k, v := range given {
		if t.HasAttr(k) {
			out[k] = v
		}
	}
	return out
}

// ValidContent reports whether the given child types satisfy this type's
// content expression.
func (t *NodeType) ValidContent(children []*NodeType) bool {
	return t.expr.matches(children)
}

// AllowsChildType reports whether children of the given type may ever occur
// under this type.
func (t *NodeType) AllowsChildType(child *NodeType) bool {
	return t.expr.matchableBy(child)
}

// AllowsMark reports whether the mark may be applied to inline content of
// this type's children.
func (t *NodeType) AllowsMark(m *MarkType) bool {
	if t.Spec.Marks == nil {
		return true
	}
	if *t.Spec.Marks == "" {
		return false
	}
	for _, name := range strings.Fields(*t.Spec.Marks) {
		if name == m.Name || name == "_" {
			return true
		}
	}
	return false
}

// ExcludesMark reports whether this mark cannot coexist with other on the
// same text span.
func (t *MarkType) ExcludesMark(other *MarkType) bool {
	if t.Spec.Excludes == "_" {
		return t != other
	}
	for _, name := range strings.Fields(t.Spec.Excludes) {
		if name == other.Name {
			return true
		}
	}
	return false
}
