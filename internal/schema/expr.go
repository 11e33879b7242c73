package schema

import (
	"fmt"
	"strings"
)

// contentExpr is a compiled content expression: an ordered sequence of terms,
// each matching a node type name or group with a repetition range.
//
// The grammar is deliberately small: a sequence of terms, where a term is a
// single name or a parenthesised alternation, optionally followed by one of
// the quantifiers ?, * or +:
//
//	"block+"
//	"paragraph"
//	"(text | hardBreak | image | citation | highlight)*"
//	"tableRow+"
type contentExpr struct {
	source string
	terms  []exprTerm
}

type exprTerm struct {
	options []string // type names or group names
	min     int
	max     int // -1 means unbounded
}

// compileContentExpr parses source into a contentExpr. An empty source
// compiles to an expression matching only empty content.
func compileContentExpr(source string) (*contentExpr, error) {
	expr := &contentExpr{source: source}
	rest := strings.TrimSpace(source)

	for rest != "" {
		var options []string
		if strings.HasPrefix(rest, "(") {
			end := strings.Index(rest, ")")
			if end < 0 {
				return nil, fmt.Errorf("schema: unclosed group in content expression %q", source)
			}
			for _, opt := range strings.Split(rest[1:end], "|") {
				opt = strings.TrimSpace(opt)
				if opt == "" {
					return nil, fmt.Errorf("schema: empty alternative in content expression %q", source)
				}
				options = append(options, opt)
			}
			rest = rest[end+1:]
		} else {
			i := 0
			for i < len(rest) && !strings.ContainsRune(" ?*+", rune(rest[i])) {
				i++
			}
			options = []string{rest[:i]}
			rest = rest[i:]
		}

		term := exprTerm{options: options, min: 1, max: 1}
		if rest != "" {
			switch rest[0] {
			case '?':
				term.min, term.max = 0, 1
				rest = rest[1:]
			case '*':
				term.min, term.max = 0, -1
				rest = rest[1:]
			case '+':
				term.min, term.max = 1, -1
				rest = rest[1:]
			}
		}
		expr.terms = append(expr.terms, term)
		rest = strings.TrimSpace(rest)
	}

	return expr, nil
}

// matches reports whether the given child types satisfy the expression.
// Terms are matched in order with backtracking so optional terms do not
// swallow children needed by later ones.
func (e *contentExpr) matches(children []*NodeType) bool {
	return e.matchFrom(children, 0, 0)
}

func (e *contentExpr) matchFrom(children []*NodeType, term, child int) bool {
	if term == len(e.terms) {
		return child == len(children)
	}

	t := e.terms[term]

	// Count how many consecutive children this term could consume.
	limit := len(children) - child
	if t.max >= 0 && t.max < limit {
		limit = t.max
	}
	matched := 0
	for matched < limit && t.matchesType(children[child+matched]) {
		matched++
	}

	// Try the longest match first, backing off to the minimum.
	for n := matched; n >= t.min; n-- {
		if e.matchFrom(children, term+1, child+n) {
			return true
		}
	}
	return false
}

func (t exprTerm) matchesType(nt *NodeType) bool {
	for _, opt := range t.options {
		if nt.Name == opt || nt.inGroup(opt) {
			return true
		}
	}
	return false
}

// matchableBy reports whether the expression can ever contain the given type
// anywhere, regardless of position. Used by the document layer to answer
// "may this parent hold this child at all" before attempting a full match.
func (e *contentExpr) matchableBy(nt *NodeType) bool {
	for _, t := range e.terms {
		if t.matchesType(nt) {
			return true
		}
	}
	return false
}
