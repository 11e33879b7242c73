package htmlcodec

import "github.com/microcosm-cc/bluemonday"

var pastePolicy = buildPastePolicy()

// buildPastePolicy builds the sanitizer applied to externally sourced HTML
// before schema parsing. It extends the stock UGC policy with the inline
// style and data-* attributes the note schema round-trips through.
func buildPastePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "span", "del", "strike")
	p.AllowTables()
	p.AllowAttrs("style").Globally()
	p.AllowAttrs(
		"data-citation",
		"data-annotation",
		"data-attachment-key",
		"data-schema-version",
		"data-citation-items",
	).Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowAttrs("width", "height").OnElements("img")
	p.AllowAttrs("start").OnElements("ol")
	return p
}

// SanitizePaste strips unsafe markup from externally sourced HTML.
func SanitizePaste(input string) string {
	return pastePolicy.Sanitize(input)
}
