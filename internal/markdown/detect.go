// Package markdown implements the practical Markdown subset used for paste
// detection: a layered heuristic deciding whether pasted plain text is
// Markdown, and a parser producing schema document nodes when it is.
//
// Full CommonMark/GFM compliance is a non-goal; the subset covers what the
// paste path needs.
package markdown

import (
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
)

var (
	bareURLRe   = regexp.MustCompile(`^(https?|ftp)://\S+$`)
	bareEmailRe = regexp.MustCompile(`^(mailto:)?[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Explicit syntax evidence, keyed by feature name. A feature found here
	// must be corroborated by the structural parse before the text is
	// classified as Markdown.
	evidenceRes = map[string]*regexp.Regexp{
		"heading":    regexp.MustCompile(`(?m)^#{1,6}\s+\S`),
		"list":       regexp.MustCompile(`(?m)^\s{0,3}([-*+]|\d{1,9}[.)])\s+\S`),
		"blockquote": regexp.MustCompile(`(?m)^\s{0,3}>\s?\S`),
		"codeBlock":  regexp.MustCompile("(?m)^\\s{0,3}(```|~~~)"),
		"hr":         regexp.MustCompile(`(?m)^\s{0,3}((-\s*){3,}|(\*\s*){3,}|(_\s*){3,})$`),
		"table":      regexp.MustCompile(`(?m)^\s{0,3}\|.*\|\s*$`),
		"strong":     regexp.MustCompile(`(\*\*|__)\S[^*_]*\S?(\*\*|__)`),
		"em":         regexp.MustCompile(`(^|[^*_])(\*|_)\S[^*_]*(\*|_)($|[^*_])`),
		"code":       regexp.MustCompile("`[^`\n]+`"),
		"link":       regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),
		"strike":     regexp.MustCompile(`~~\S[^~]*~~`),
		"math":       regexp.MustCompile(`\$\$[^$]+\$\$|\$[^$\s][^$]*\$`),
	}
)

// Detect applies the layered paste heuristic. When all layers agree that
// text is Markdown, it returns the parsed block nodes and true; otherwise
// the paste falls through to plain-text handling.
//
// The layers, in order:
//  1. a bare URL or email address is never Markdown, even though it
//     superficially resembles a link;
//  2. the text must contain at least one explicit Markdown syntax pattern;
//  3. the structural parse must produce at least one real block or inline
//     construct (not just paragraphs of plain text);
//  4. a construct found by the parse must correlate with the raw-text
//     evidence, so coincidental punctuation does not misclassify.
func Detect(s *schema.Schema, text string) ([]*document.Node, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	if bareURLRe.MatchString(trimmed) || bareEmailRe.MatchString(trimmed) {
		return nil, false
	}

	evidence := map[string]bool{}
	for feature, re := range evidenceRes {
		if re.MatchString(text) {
			evidence[feature] = true
		}
	}
	if len(evidence) == 0 {
		return nil, false
	}

	blocks, features := parseBlocks(s, text)
	if len(blocks) == 0 || len(features) == 0 {
		return nil, false
	}

	for feature := range features {
		if evidence[feature] {
			return blocks, true
		}
	}
	return nil, false
}

// Parse converts Markdown text into block nodes without the detection
// gate. Callers that already know the input is Markdown use this directly.
func Parse(s *schema.Schema, text string) []*document.Node {
	blocks, _ := parseBlocks(s, text)
	return blocks
}
