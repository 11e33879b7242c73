package rtf

import (
	"fmt"
	"strings"
)

// cp1252 maps the Windows-1252 C1 range (0x80-0x9F) to Unicode. Bytes
// outside this range decode as Latin-1 identity.
var cp1252 = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„', 0x85: '…',
	0x86: '†', 0x87: '‡', 0x88: 'ˆ', 0x89: '‰', 0x8A: 'Š',
	0x8B: '‹', 0x8C: 'Œ', 0x8E: 'Ž', 0x91: '‘', 0x92: '’',
	0x93: '“', 0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›', 0x9C: 'œ',
	0x9E: 'ž', 0x9F: 'Ÿ',
}

func decodeByte(b byte) rune {
	if r, ok := cp1252[b]; ok {
		return r
	}
	return rune(b)
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexDigit(hi)
	l, ok2 := hexDigit(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func rgb(r, g, b int) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
}

func monospaceName(name string) bool {
	lower := strings.ToLower(name)
	for _, probe := range []string{"courier", "menlo", "monaco", "consolas", "mono"} {
		if strings.Contains(lower, probe) {
			return true
		}
	}
	return false
}

// resolveHyperlink extracts the link target from a field instruction. A
// "\l" switch marks an internal anchor; anything else is taken verbatim
// (URL or mailto).
func resolveHyperlink(inst string) string {
	inst = strings.TrimSpace(inst)
	upper := strings.ToUpper(inst)
	idx := strings.Index(upper, "HYPERLINK")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(inst[idx+len("HYPERLINK"):])

	anchor := false
	if strings.HasPrefix(rest, `\l`) {
		anchor = true
		rest = strings.TrimSpace(rest[2:])
	}

	var target string
	if strings.HasPrefix(rest, `"`) {
		if end := strings.Index(rest[1:], `"`); end >= 0 {
			target = rest[1 : 1+end]
		} else {
			target = rest[1:]
		}
	} else {
		target = rest
		if sp := strings.IndexAny(target, " \t"); sp >= 0 {
			target = target[:sp]
		}
	}
	if target == "" {
		return ""
	}
	if anchor {
		return "#" + target
	}
	return target
}
