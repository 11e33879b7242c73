// Package parser extracts index fields from stored note content: the
// title, the plain text used for full-text search, and the citation URIs
// the note references.
package parser

import (
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/htmlcodec"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/schema"
)

// Result holds the output of analyzing a stored note.
type Result struct {
	Title         string
	Body          string
	Citations     []string
	SchemaVersion int
}

const maxDerivedTitle = 120

var htmlParser = htmlcodec.NewParser(schema.Default())

// Parse analyzes raw note bytes. Content that fails to parse as a note
// document yields an error; the caller decides whether to skip indexing.
func Parse(data []byte) (*Result, error) {
	doc, store, err := htmlParser.ParseDocument(string(data))
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:         deriveTitle(doc),
		Body:          plainText(doc),
		Citations:     flattenURIs(metadata.ReferencedURISets(doc)),
		SchemaVersion: store.SchemaVersion,
	}, nil
}

// deriveTitle returns the first heading's text, falling back to the first
// block's text, truncated.
func deriveTitle(doc *document.Node) string {
	title := ""
	doc.Walk(func(n *document.Node, _ document.Path) bool {
		if n.Type.Name == "heading" {
			title = strings.TrimSpace(n.TextContent())
			return false
		}
		return true
	})
	if title == "" && len(doc.Content) > 0 {
		title = strings.TrimSpace(doc.Content[0].TextContent())
	}
	if runes := []rune(title); len(runes) > maxDerivedTitle {
		title = string(runes[:maxDerivedTitle])
	}
	return title
}

// plainText renders the document's searchable text, one line per block.
func plainText(doc *document.Node) string {
	var lines []string
	for _, block := range doc.Content {
		if text := strings.TrimSpace(block.TextContent()); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// flattenURIs deduplicates the per-node URI sets into one flat list,
// preserving first-seen order.
func flattenURIs(sets [][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, uri := range set {
			if _, dup := seen[uri]; dup {
				continue
			}
			seen[uri] = struct{}{}
			out = append(out, uri)
		}
	}
	return out
}
