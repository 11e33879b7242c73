package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
)

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fenceRe      = regexp.MustCompile("^\\s{0,3}(`{3,}|~{3,})\\s*([^`\\s]*)\\s*$")
	hrRe         = regexp.MustCompile(`^\s{0,3}((-\s*){3,}|(\*\s*){3,}|(_\s*){3,})$`)
	quoteRe      = regexp.MustCompile(`^\s{0,3}>\s?(.*)$`)
	bulletRe     = regexp.MustCompile(`^(\s*)([-*+])\s+(.*)$`)
	orderedRe    = regexp.MustCompile(`^(\s*)(\d{1,9})[.)]\s+(.*)$`)
	tableRowRe   = regexp.MustCompile(`^\s{0,3}\|(.*)\|\s*$`)
	tableDelimRe = regexp.MustCompile(`^\s{0,3}\|?[\s:|-]*-[\s:|-]*\|?\s*$`)
)

type parser struct {
	s        *schema.Schema
	features map[string]bool
}

// parseBlocks parses text into block nodes and reports which Markdown
// features actually occurred, for correlation with the raw-text evidence.
func parseBlocks(s *schema.Schema, text string) ([]*document.Node, map[string]bool) {
	p := &parser{s: s, features: map[string]bool{}}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := p.blocks(strings.Split(text, "\n"))
	return blocks, p.features
}

func (p *parser) blocks(lines []string) []*document.Node {
	var out []*document.Node
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			p.features["heading"] = true
			out = append(out, document.NewNode(p.s.Node("heading"),
				map[string]any{"level": len(m[1])}, p.inline(m[2])))
			i++
			continue
		}

		if m := fenceRe.FindStringSubmatch(line); m != nil {
			p.features["codeBlock"] = true
			fence := m[1][:1]
			var body []string
			i++
			for i < len(lines) {
				if fm := fenceRe.FindStringSubmatch(lines[i]); fm != nil && fm[1][:1] == fence && fm[2] == "" {
					i++
					break
				}
				body = append(body, lines[i])
				i++
			}
			var content []*document.Node
			if code := strings.Join(body, "\n"); code != "" {
				content = []*document.Node{document.NewText(p.s, code)}
			}
			out = append(out, document.NewNode(p.s.Node("codeBlock"), nil, content))
			continue
		}

		// Thematic break must be checked before list markers: "* * *" also
		// matches the bullet pattern.
		if hrRe.MatchString(line) {
			p.features["hr"] = true
			out = append(out, document.NewNode(p.s.Node("horizontalRule"), nil, nil))
			i++
			continue
		}

		if quoteRe.MatchString(line) {
			p.features["blockquote"] = true
			var inner []string
			for i < len(lines) {
				m := quoteRe.FindStringSubmatch(lines[i])
				if m == nil {
					break
				}
				inner = append(inner, m[1])
				i++
			}
			content := p.blocks(inner)
			if len(content) > 0 {
				out = append(out, document.NewNode(p.s.Node("blockquote"), nil, content))
			}
			continue
		}

		if tableRowRe.MatchString(line) && i+1 < len(lines) &&
			tableDelimRe.MatchString(lines[i+1]) && strings.Contains(lines[i+1], "|") {
			table, consumed := p.table(lines[i:])
			if table != nil {
				p.features["table"] = true
				out = append(out, table)
				i += consumed
				continue
			}
		}

		if bulletRe.MatchString(line) || orderedRe.MatchString(line) {
			list, consumed := p.list(lines[i:])
			if list != nil {
				p.features["list"] = true
				out = append(out, list)
				i += consumed
				continue
			}
		}

		// Paragraph: accumulate until a blank line or another block opening.
		var para []string
		for i < len(lines) {
			l := lines[i]
			if strings.TrimSpace(l) == "" || headingRe.MatchString(l) ||
				fenceRe.MatchString(l) || hrRe.MatchString(l) ||
				quoteRe.MatchString(l) || bulletRe.MatchString(l) || orderedRe.MatchString(l) {
				break
			}
			para = append(para, strings.TrimSpace(l))
			i++
		}
		if len(para) > 0 {
			out = append(out, document.NewNode(p.s.Node("paragraph"), nil,
				p.inline(strings.Join(para, " "))))
		}
	}
	return out
}

// list parses a run of list-item lines starting at lines[0]. Continuation
// and nested lines indented past the marker stay with their item and are
// re-parsed recursively, which is how nested lists attach to the last item
// of the parent level.
func (p *parser) list(lines []string) (*document.Node, int) {
	first := lines[0]
	ordered := orderedRe.MatchString(first) && !bulletRe.MatchString(first)
	matcher := bulletRe
	if ordered {
		matcher = orderedRe
	}
	m := matcher.FindStringSubmatch(first)
	if m == nil {
		return nil, 0
	}
	baseIndent := len(m[1])
	contentIndent := baseIndent + len(m[2]) + 1

	var items [][]string
	var cur []string
	consumed := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			break
		}
		if im := matcher.FindStringSubmatch(line); im != nil && len(im[1]) == baseIndent {
			if cur != nil {
				items = append(items, cur)
			}
			cur = []string{im[3]}
			consumed++
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if indent >= contentIndent || bulletRe.MatchString(line) || orderedRe.MatchString(line) {
			// Continuation or nested item: dedent and keep with this item.
			cur = append(cur, dedent(line, contentIndent))
			consumed++
			continue
		}
		break
	}
	if cur != nil {
		items = append(items, cur)
	}
	if len(items) == 0 {
		return nil, 0
	}

	itemType := p.s.Node("listItem")
	paraType := p.s.Node("paragraph")
	var children []*document.Node
	for _, itemLines := range items {
		content := p.blocks(itemLines)
		if len(content) == 0 || content[0].Type != paraType {
			content = append([]*document.Node{document.NewNode(paraType, nil, nil)}, content...)
		}
		children = append(children, document.NewNode(itemType, nil, content))
	}

	if ordered {
		order := 1
		if n, err := strconv.Atoi(m[2]); err == nil {
			order = n
		}
		return document.NewNode(p.s.Node("orderedList"), map[string]any{"order": order}, children), consumed
	}
	return document.NewNode(p.s.Node("bulletList"), nil, children), consumed
}

func dedent(line string, width int) string {
	for i := 0; i < width && len(line) > 0 && line[0] == ' '; i++ {
		line = line[1:]
	}
	return line
}

// table parses a header row, delimiter row, and body rows.
func (p *parser) table(lines []string) (*document.Node, int) {
	header := splitRow(lines[0])
	if len(header) == 0 {
		return nil, 0
	}
	consumed := 2 // header + delimiter
	rows := [][]string{header}
	for consumed < len(lines) && tableRowRe.MatchString(lines[consumed]) {
		rows = append(rows, splitRow(lines[consumed]))
		consumed++
	}

	cellType := p.s.Node("tableCell")
	rowType := p.s.Node("tableRow")
	paraType := p.s.Node("paragraph")
	var rowNodes []*document.Node
	for _, cells := range rows {
		var cellNodes []*document.Node
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		for _, cell := range cells[:len(header)] {
			para := document.NewNode(paraType, nil, p.inline(cell))
			cellNodes = append(cellNodes, document.NewNode(cellType, nil, []*document.Node{para}))
		}
		rowNodes = append(rowNodes, document.NewNode(rowType, nil, cellNodes))
	}
	return document.NewNode(p.s.Node("table"), nil, rowNodes), consumed
}

func splitRow(line string) []string {
	m := tableRowRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], "|")
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = strings.TrimSpace(part)
	}
	return out
}
