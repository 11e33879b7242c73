package rtf

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// listLevel is one open list in the nesting stack. Closing a level renders
// it and attaches the HTML to the last item of the parent level, or to the
// top-level block stream when it is the outermost.
type listLevel struct {
	ordered bool
	typed   bool
	items   []string
}

// tableBuilder accumulates rows until the last-row marker triggers a
// deferred flush. The flush is cancelled when a new row definition arrives
// first, which is how a continued table stays in one element.
type tableBuilder struct {
	rows         [][]string
	cells        []string
	lastRow      bool
	flushPending bool
}

var orderedMarkerRe = regexp.MustCompile(`^\d+[.)]`)

// endParagraph finalizes the run accumulator into a block. Inside a table
// cell the content is buffered for the enclosing cell instead.
func (c *converter) endParagraph() {
	defer func() {
		c.runs = nil
		c.hadBreak = false
		c.marker.Reset()
	}()

	if c.inTable {
		c.bufferCellContent(c.renderRuns(false))
		return
	}
	c.maybeFlushTable()

	if c.listPara || strings.TrimSpace(c.marker.String()) != "" {
		c.addListItem()
		return
	}
	c.closeLists(0)

	visible := c.visibleRuns()
	if len(visible) == 0 {
		return
	}

	if lvl, ok := c.headingLevel(visible); ok {
		c.blocks = append(c.blocks, fmt.Sprintf("<h%d>%s</h%d>", lvl, c.renderRuns(false), lvl))
		return
	}
	for _, r := range visible {
		if c.monospaceRun(r) {
			c.blocks = append(c.blocks, "<pre>"+c.renderRuns(true)+"</pre>")
			return
		}
	}
	c.blocks = append(c.blocks, "<p>"+c.renderRuns(false)+"</p>")
}

// headingLevel reports the heading level a paragraph is promoted to: every
// visible run must share one font size mapped by the options, and the
// paragraph must contain no explicit line breaks.
func (c *converter) headingLevel(visible []run) (int, bool) {
	if c.hadBreak || len(c.opts.HeadingSizes) == 0 || len(visible) == 0 {
		return 0, false
	}
	size := visible[0].sty.fontSize
	for _, r := range visible[1:] {
		if r.sty.fontSize != size {
			return 0, false
		}
	}
	lvl, ok := c.opts.HeadingSizes[size]
	if !ok || lvl < 1 || lvl > 6 {
		return 0, false
	}
	return lvl, true
}

func (c *converter) visibleRuns() []run {
	var out []run
	for _, r := range c.runs {
		if !r.br && strings.TrimSpace(r.text) != "" {
			out = append(out, r)
		}
	}
	return out
}

// addListItem places the pending paragraph into the list stack at the
// current level, opening or closing levels as needed. The captured marker
// glyphs decide ordered-vs-unordered when a level is first opened.
func (c *converter) addListItem() {
	level := c.listLevel
	if level < 0 {
		level = 0
	}
	c.closeLists(level + 1)
	for len(c.lists) <= level {
		c.lists = append(c.lists, listLevel{})
	}
	lv := &c.lists[level]
	if !lv.typed {
		lv.ordered = orderedMarkerRe.MatchString(strings.TrimSpace(c.marker.String()))
		lv.typed = true
	}
	lv.items = append(lv.items, c.renderRuns(false))
}

// closeLists closes list levels deeper than keep, attaching each rendered
// level to its parent item or to the block stream.
func (c *converter) closeLists(keep int) {
	for len(c.lists) > keep {
		lv := c.lists[len(c.lists)-1]
		c.lists = c.lists[:len(c.lists)-1]
		rendered := renderList(lv)
		if rendered == "" {
			continue
		}
		if len(c.lists) > 0 {
			parent := &c.lists[len(c.lists)-1]
			if len(parent.items) == 0 {
				parent.items = append(parent.items, "")
			}
			parent.items[len(parent.items)-1] += rendered
		} else {
			c.blocks = append(c.blocks, rendered)
		}
	}
}

func renderList(lv listLevel) string {
	if len(lv.items) == 0 {
		return ""
	}
	tag := "ul"
	if lv.ordered {
		tag = "ol"
	}
	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, item := range lv.items {
		b.WriteString("<li>" + item + "</li>")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}

func (c *converter) bufferCellContent(inline string) {
	if inline == "" {
		return
	}
	if c.cellBuf != "" {
		c.cellBuf += "<br>"
	}
	c.cellBuf += inline
}

// endCell closes the current table cell.
func (c *converter) endCell() {
	c.bufferCellContent(c.renderRuns(false))
	c.runs = nil
	c.hadBreak = false
	c.table.cells = append(c.table.cells, c.cellBuf)
	c.cellBuf = ""
}

// endRow closes the current table row. After the marked last row the table
// flush is armed but deferred, so a continuation row can still cancel it.
func (c *converter) endRow() {
	if len(c.table.cells) > 0 {
		c.table.rows = append(c.table.rows, c.table.cells)
		c.table.cells = nil
	}
	if c.table.lastRow {
		c.table.flushPending = true
		c.table.lastRow = false
	}
}

// maybeFlushTable emits the accumulated table once a flush is due. Tables
// with no rows are discarded.
func (c *converter) maybeFlushTable() {
	if !c.table.flushPending && len(c.table.rows) == 0 {
		return
	}
	if c.inTable && !c.table.flushPending {
		return
	}
	rows := c.table.rows
	c.table = tableBuilder{}
	if len(rows) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("<table>")
	for _, cells := range rows {
		b.WriteString("<tr>")
		for _, cell := range cells {
			b.WriteString("<td>" + cell + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	c.blocks = append(c.blocks, b.String())
}

// finish closes everything still open and returns the fragment.
func (c *converter) finish() string {
	if len(c.runs) > 0 || c.cellBuf != "" {
		if c.inTable {
			c.endCell()
		} else {
			c.endParagraph()
		}
	}
	c.endRow()
	c.closeLists(0)
	c.inTable = false
	if len(c.table.rows) > 0 {
		c.table.flushPending = true
	}
	c.maybeFlushTable()
	return strings.Join(c.blocks, "")
}

// renderRuns renders the accumulated runs as inline HTML. In preformatted
// mode line breaks become newlines instead of <br> tags.
func (c *converter) renderRuns(pre bool) string {
	var b strings.Builder
	for _, r := range c.runs {
		if r.br {
			if pre {
				b.WriteString("\n")
			} else {
				b.WriteString("<br>")
			}
			continue
		}
		b.WriteString(renderRun(r))
	}
	return b.String()
}

func renderRun(r run) string {
	out := html.EscapeString(r.text)
	sty := r.sty
	if sty.color != "" || sty.background != "" {
		var css []string
		if sty.color != "" {
			css = append(css, "color: "+sty.color)
		}
		if sty.background != "" {
			css = append(css, "background-color: "+sty.background)
		}
		out = `<span style="` + strings.Join(css, "; ") + `">` + out + "</span>"
	}
	if sty.subscript {
		out = "<sub>" + out + "</sub>"
	}
	if sty.superscript {
		out = "<sup>" + out + "</sup>"
	}
	if sty.strike {
		out = "<s>" + out + "</s>"
	}
	if sty.underline {
		out = "<u>" + out + "</u>"
	}
	if sty.italic {
		out = "<i>" + out + "</i>"
	}
	if sty.bold {
		out = "<b>" + out + "</b>"
	}
	if sty.href != "" {
		out = `<a href="` + html.EscapeString(sty.href) + `">` + out + "</a>"
	}
	return out
}
