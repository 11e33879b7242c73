package plugins

import (
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/state"
)

// MarkdownPaste converts pasted plain text that looks like Markdown into
// rich block nodes. Detection is deliberately conservative; when in doubt
// the paste stays plain text.
type MarkdownPaste struct{}

// Name implements state.Plugin.
func (*MarkdownPaste) Name() string { return "markdownpaste" }

// HandlePaste implements state.PasteHandler.
func (*MarkdownPaste) HandlePaste(s *state.EditorState, text string) ([]*document.Node, bool) {
	return markdown.Detect(s.Schema, text)
}
