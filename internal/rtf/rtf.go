// Package rtf converts the macOS-authoring-tool subset of RTF into an HTML
// fragment. It is a single-pass tokenizer over the control-word grammar with
// an explicit state machine: a group stack of style frames, a run
// accumulator, a list-level stack, and a table builder.
//
// Conversion is best effort. Unknown control words are ignored, malformed
// escapes are dropped, and the converter never fails for bracketed input.
// A stray closing brace at the top level is ignored; groups still open at
// end of input are closed implicitly.
package rtf

import "strings"

// Options controls conversion.
type Options struct {
	// HeadingSizes maps a font size in half-points to a heading level 1-6.
	// A paragraph whose visible runs all share a mapped size is promoted to
	// that heading.
	HeadingSizes map[int]int
}

// ToHTML converts an RTF document or fragment into an HTML fragment.
func ToHTML(src string, opts Options) string {
	c := newConverter(opts)
	c.parse(src)
	return c.finish()
}

// destination names what text inside the current group feeds.
type destination int

const (
	destBody destination = iota
	destSkip
	destListText
	destFldInst
	destFldRslt
	destFontTbl
	destColorTbl
)

// style is the resolved character formatting of a run. It is comparable;
// two adjacent runs coalesce only when their styles compare equal.
type style struct {
	bold        bool
	italic      bool
	underline   bool
	strike      bool
	superscript bool
	subscript   bool
	color       string
	background  string
	href        string
	font        int
	fontSize    int
}

// frame is the per-group snapshot pushed on '{' and restored on '}'.
type frame struct {
	sty        style
	dest       destination
	ucSkip     int
	fieldStart int
	fieldHref  string
}

type run struct {
	text string
	sty  style
	br   bool
}

type fontInfo struct {
	name      string
	monospace bool
}

type converter struct {
	opts  Options
	stack []frame
	cur   frame

	fonts    map[int]fontInfo
	defFont  int
	defMono  bool
	fontName strings.Builder

	colors   []string
	defR     int
	defG     int
	defB     int
	colorSet bool

	runs      []run
	hadBreak  bool
	skipChars int

	marker    strings.Builder
	fldInst   strings.Builder
	listPara  bool
	listLevel int
	inTable   bool
	cellBuf   string
	lists     []listLevel
	table     tableBuilder
	blocks    []string
}

func newConverter(opts Options) *converter {
	return &converter{
		opts:  opts,
		cur:   frame{ucSkip: 1},
		fonts: map[int]fontInfo{},
	}
}

func (c *converter) parse(src string) {
	for i := 0; i < len(src); {
		switch src[i] {
		case '{':
			c.stack = append(c.stack, c.cur)
			c.cur.fieldStart = 0
			c.cur.fieldHref = ""
			i++
		case '}':
			c.popGroup()
			i++
		case '\\':
			i = c.readControl(src, i)
		case '\r', '\n':
			i++
		default:
			c.text(decodeByte(src[i]))
			i++
		}
	}
}

func (c *converter) popGroup() {
	if len(c.stack) == 0 {
		return
	}
	popped := c.cur
	c.cur = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	switch {
	case popped.dest == destFldRslt && c.cur.dest != destFldRslt:
		// Apply the resolved link retroactively to every run emitted
		// inside the field result, including ones pushed before the
		// instruction was parsed.
		for i := popped.fieldStart; i < len(c.runs); i++ {
			if !c.runs[i].br {
				c.runs[i].sty.href = popped.fieldHref
			}
		}
	case popped.dest == destFontTbl && c.cur.dest != destFontTbl:
		c.flushFontDef()
	}
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// readControl consumes the control word or symbol starting at src[i] == '\'
// and returns the index after it.
func (c *converter) readControl(src string, i int) int {
	i++
	if i >= len(src) {
		return i
	}
	b := src[i]
	if !isAlpha(b) {
		return c.controlSymbol(src, i)
	}

	start := i
	for i < len(src) && isAlpha(src[i]) {
		i++
	}
	word := src[start:i]

	param, hasParam := 0, false
	neg := false
	if i < len(src) && (src[i] == '-' || isDigit(src[i])) {
		if src[i] == '-' {
			neg = true
			i++
		}
		for i < len(src) && isDigit(src[i]) {
			param = param*10 + int(src[i]-'0')
			hasParam = true
			i++
		}
		if neg {
			param = -param
		}
	}
	// One space after a control word is part of it.
	if i < len(src) && src[i] == ' ' {
		i++
	}
	c.controlWord(word, param, hasParam)
	return i
}

func (c *converter) controlSymbol(src string, i int) int {
	switch src[i] {
	case '\'':
		if i+2 < len(src) {
			if b, ok := hexByte(src[i+1], src[i+2]); ok {
				if c.skipChars > 0 {
					c.skipChars--
				} else {
					c.text(decodeByte(b))
				}
				return i + 3
			}
		}
		// Truncated hex escape: drop it.
		return i + 1
	case '\\', '{', '}':
		c.text(rune(src[i]))
	case '~':
		c.text(' ')
	case '_':
		c.text('‑')
	case '-':
		// Optional hyphen, invisible.
	case '*':
		// Marks the next destination as optional; skip it unless known.
		c.starDestination(src, i+1)
	case '\r', '\n':
		c.endParagraph()
	}
	return i + 1
}

// starDestination peeks at the control word following '\*'. Known optional
// destinations are handled by the normal dispatch; everything else makes
// the group a skip destination.
func (c *converter) starDestination(src string, i int) {
	if i >= len(src) || src[i] != '\\' {
		c.cur.dest = destSkip
		return
	}
	j := i + 1
	for j < len(src) && isAlpha(src[j]) {
		j++
	}
	switch src[i+1 : j] {
	case "fldinst", "listtext":
	default:
		c.cur.dest = destSkip
	}
}

func (c *converter) controlWord(word string, param int, hasParam bool) {
	if c.cur.dest == destSkip {
		return
	}
	flag := !hasParam || param != 0

	switch word {
	// Character formatting.
	case "b":
		c.cur.sty.bold = flag
	case "i":
		c.cur.sty.italic = flag
	case "ul":
		c.cur.sty.underline = flag
	case "ulnone":
		c.cur.sty.underline = false
	case "strike":
		c.cur.sty.strike = flag
	case "super":
		c.cur.sty.superscript = flag
		c.cur.sty.subscript = false
	case "sub":
		c.cur.sty.subscript = flag
		c.cur.sty.superscript = false
	case "nosupersub":
		c.cur.sty.superscript = false
		c.cur.sty.subscript = false
	case "plain":
		c.cur.sty = style{}
	case "fs":
		c.cur.sty.fontSize = param
	case "f":
		if c.cur.dest == destFontTbl {
			c.flushFontDef()
			c.defFont = param
		} else {
			c.cur.sty.font = param
		}
	case "fmodern":
		if c.cur.dest == destFontTbl {
			c.defMono = true
		}
	case "cf":
		c.cur.sty.color = c.colorAt(param)
	case "cb", "highlight", "chcbpat":
		c.cur.sty.background = c.colorAt(param)

	// Structure.
	case "par":
		c.endParagraph()
	case "pard":
		c.listPara = false
		c.listLevel = 0
		c.inTable = false
	case "line":
		c.lineBreak()
	case "tab":
		c.text('\t')

	// Lists.
	case "ls":
		c.listPara = true
	case "ilvl":
		c.listPara = true
		c.listLevel = param
	case "listtext":
		c.cur.dest = destListText

	// Tables.
	case "trowd":
		c.inTable = true
		c.table.flushPending = false
	case "intbl":
		c.inTable = true
	case "cell":
		c.endCell()
	case "row":
		c.endRow()
	case "lastrow":
		c.table.lastRow = true

	// Fields.
	case "fldinst":
		c.cur.dest = destFldInst
		c.fldInst.Reset()
	case "fldrslt":
		href := resolveHyperlink(c.fldInst.String())
		c.cur.dest = destFldRslt
		c.cur.fieldStart = len(c.runs)
		c.cur.fieldHref = href
		c.cur.sty.href = href

	// Unicode.
	case "u":
		r := rune(param)
		if param < 0 {
			r = rune(param + 0x10000)
		}
		c.text(r)
		c.skipChars = c.cur.ucSkip
	case "uc":
		c.cur.ucSkip = param

	// Tables of definitions.
	case "fonttbl":
		c.cur.dest = destFontTbl
	case "colortbl":
		c.cur.dest = destColorTbl
		c.colors = c.colors[:0]
	case "red":
		c.defR, c.colorSet = param, true
	case "green":
		c.defG, c.colorSet = param, true
	case "blue":
		c.defB, c.colorSet = param, true

	// Symbol words.
	case "emdash":
		c.text('—')
	case "endash":
		c.text('–')
	case "lquote":
		c.text('‘')
	case "rquote":
		c.text('’')
	case "ldblquote":
		c.text('“')
	case "rdblquote":
		c.text('”')
	case "bullet":
		c.text('•')

	// Skip destinations whose content must not leak into the body.
	case "pict", "stylesheet", "info", "header", "footer", "footnote",
		"themedata", "listtable", "listoverridetable", "generator",
		"colorschememapping", "datastore", "xmlnstbl":
		c.cur.dest = destSkip
	}
}

// text routes a decoded character to whatever the current group feeds.
func (c *converter) text(r rune) {
	if c.cur.dest == destSkip {
		return
	}
	if c.skipChars > 0 {
		c.skipChars--
		return
	}
	switch c.cur.dest {
	case destListText:
		c.marker.WriteRune(r)
	case destFldInst:
		c.fldInst.WriteRune(r)
	case destFontTbl:
		if r == ';' {
			c.flushFontDef()
		} else {
			c.fontName.WriteRune(r)
		}
	case destColorTbl:
		if r == ';' {
			c.flushColorDef()
		}
	default:
		c.emit(r)
	}
}

// emit appends r to the run accumulator, coalescing with the previous run
// when every tracked style field compares equal.
func (c *converter) emit(r rune) {
	if n := len(c.runs); n > 0 && !c.runs[n-1].br && c.runs[n-1].sty == c.cur.sty {
		c.runs[n-1].text += string(r)
		return
	}
	c.runs = append(c.runs, run{text: string(r), sty: c.cur.sty})
}

func (c *converter) lineBreak() {
	c.runs = append(c.runs, run{br: true})
	c.hadBreak = true
}

func (c *converter) flushFontDef() {
	name := strings.TrimSpace(c.fontName.String())
	if name != "" || c.defMono {
		c.fonts[c.defFont] = fontInfo{name: name, monospace: c.defMono || monospaceName(name)}
	}
	c.fontName.Reset()
	c.defMono = false
}

func (c *converter) flushColorDef() {
	if !c.colorSet {
		c.colors = append(c.colors, "")
		return
	}
	c.colors = append(c.colors, rgb(c.defR, c.defG, c.defB))
	c.defR, c.defG, c.defB, c.colorSet = 0, 0, 0, false
}

// colorAt resolves a color table index. Entry 0 is conventionally the
// empty "auto" definition, which resolves to no color.
func (c *converter) colorAt(idx int) string {
	if idx < 0 || idx >= len(c.colors) {
		return ""
	}
	return c.colors[idx]
}

func (c *converter) monospaceRun(r run) bool {
	return c.fonts[r.sty.font].monospace
}
