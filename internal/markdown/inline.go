package markdown

import (
	"strings"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
)

var inlineMathRe = evidenceRes["math"]

// inline parses inline Markdown into text nodes carrying marks.
func (p *parser) inline(text string) []*document.Node {
	return p.inlineWith(text, nil)
}

func (p *parser) inlineWith(text string, marks []document.Mark) []*document.Node {
	var out []*document.Node
	var lit strings.Builder

	flush := func() {
		if lit.Len() == 0 {
			return
		}
		n := document.NewText(p.s, lit.String())
		n.Marks = marks
		out = append(out, n)
		lit.Reset()
	}

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && isPunct(runes[i+1]):
			lit.WriteRune(runes[i+1])
			i += 2

		case r == '`':
			open := runLen(runes[i:], '`')
			if end := findRun(runes[i+open:], '`', open); end >= 0 {
				p.features["code"] = true
				flush()
				content := string(runes[i+open : i+open+end])
				content = trimCodeSpan(content)
				n := document.NewText(p.s, content)
				n.Marks = []document.Mark{{Type: p.s.Mark("code")}}
				out = append(out, n)
				i += open + end + open
				continue
			}
			lit.WriteRune(r)
			i++

		case strings.HasPrefix(string(runes[i:]), "~~"):
			if inner, width, ok := delimited(runes[i:], "~~"); ok {
				p.features["strike"] = true
				flush()
				out = append(out, p.inlineWith(inner, appendMark(marks, p.s.Mark("strike"), nil))...)
				i += width
				continue
			}
			lit.WriteRune(r)
			i++

		case (r == '*' || r == '_') && i+1 < len(runes) && runes[i+1] == r:
			d := string([]rune{r, r})
			if inner, width, ok := delimited(runes[i:], d); ok {
				p.features["strong"] = true
				flush()
				out = append(out, p.inlineWith(inner, appendMark(marks, p.s.Mark("strong"), nil))...)
				i += width
				continue
			}
			lit.WriteRune(r)
			i++

		case r == '*' || r == '_':
			if inner, width, ok := delimited(runes[i:], string(r)); ok {
				p.features["em"] = true
				flush()
				out = append(out, p.inlineWith(inner, appendMark(marks, p.s.Mark("em"), nil))...)
				i += width
				continue
			}
			lit.WriteRune(r)
			i++

		case r == '[':
			if label, href, width, ok := linkAt(runes[i:]); ok {
				p.features["link"] = true
				flush()
				lm := appendMark(marks, p.s.Mark("link"), map[string]any{"href": href})
				out = append(out, p.inlineWith(label, lm)...)
				i += width
				continue
			}
			lit.WriteRune(r)
			i++

		case r == '<':
			if target, width, ok := autolinkAt(runes[i:]); ok {
				p.features["link"] = true
				flush()
				href := target
				if bareEmailRe.MatchString(target) && !strings.HasPrefix(target, "mailto:") {
					href = "mailto:" + target
				}
				n := document.NewText(p.s, target)
				n.Marks = appendMark(marks, p.s.Mark("link"), map[string]any{"href": href})
				out = append(out, n)
				i += width
				continue
			}
			lit.WriteRune(r)
			i++

		case r == '$':
			// Math has no schema node; a well-formed delimited expression is
			// kept as literal text but still counts as parse evidence.
			if loc := inlineMathRe.FindStringIndex(string(runes[i:])); loc != nil && loc[0] == 0 {
				p.features["math"] = true
				matched := []rune(string(runes[i:])[:loc[1]])
				lit.WriteString(string(matched))
				i += len(matched)
				continue
			}
			lit.WriteRune(r)
			i++

		default:
			lit.WriteRune(r)
			i++
		}
	}
	flush()
	return out
}

// appendMark copies marks and adds mt, replacing any existing mark of the
// same type.
func appendMark(marks []document.Mark, mt *schema.MarkType, attrs map[string]any) []document.Mark {
	out := make([]document.Mark, 0, len(marks)+1)
	for _, m := range marks {
		if m.Type != mt {
			out = append(out, m)
		}
	}
	return append(out, document.Mark{Type: mt, Attrs: attrs})
}

func isPunct(r rune) bool {
	return strings.ContainsRune("\\`*_{}[]()#+-.!~|<>$", r)
}

// runLen counts the leading run of c.
func runLen(runes []rune, c rune) int {
	n := 0
	for n < len(runes) && runes[n] == c {
		n++
	}
	return n
}

// findRun returns the offset of the next run of exactly want consecutive c,
// or -1.
func findRun(runes []rune, c rune, want int) int {
	for i := 0; i < len(runes); i++ {
		if runes[i] != c {
			continue
		}
		n := runLen(runes[i:], c)
		if n == want {
			return i
		}
		i += n - 1
	}
	return -1
}

func trimCodeSpan(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, " ") && strings.HasSuffix(s, " ") &&
		strings.TrimSpace(s) != "" {
		return s[1 : len(s)-1]
	}
	return s
}

// delimited matches delim...delim with non-empty content whose edges are not
// whitespace. Returns the inner text and total consumed width in runes.
func delimited(runes []rune, delim string) (string, int, bool) {
	d := []rune(delim)
	rest := string(runes[len(d):])
	idx := strings.Index(rest, delim)
	if idx <= 0 {
		return "", 0, false
	}
	inner := rest[:idx]
	if strings.TrimSpace(inner) == "" ||
		inner[0] == ' ' || inner[len(inner)-1] == ' ' {
		return "", 0, false
	}
	return inner, len(d) + len([]rune(inner)) + len(d), true
}

// linkAt matches [label](target) at the start of runes.
func linkAt(runes []rune) (label, href string, width int, ok bool) {
	s := string(runes)
	close := strings.Index(s, "]")
	if close <= 1 || close+1 >= len(s) || s[close+1] != '(' {
		return "", "", 0, false
	}
	end := strings.Index(s[close+2:], ")")
	if end < 0 {
		return "", "", 0, false
	}
	label = s[1:close]
	href = strings.TrimSpace(s[close+2 : close+2+end])
	if href == "" || strings.ContainsAny(href, " \n") {
		return "", "", 0, false
	}
	return label, href, len([]rune(s[:close+2+end+1])), true
}

// autolinkAt matches <scheme://target> or <address@host> at the start.
func autolinkAt(runes []rune) (target string, width int, ok bool) {
	s := string(runes)
	end := strings.Index(s, ">")
	if end <= 1 {
		return "", 0, false
	}
	target = s[1:end]
	if bareURLRe.MatchString(target) || bareEmailRe.MatchString(target) {
		return target, len([]rune(s[:end+1])), true
	}
	return "", 0, false
}
