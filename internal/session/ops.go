package session

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/htmlcodec"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/plugins"
	"github.com/starford/ansuz/internal/state"
)

// Command runs an editing command against the current state and applies the
// transaction it produces. The boolean reports whether the command applied.
func (s *Session) Command(cmd func(*state.EditorState) (*state.Transaction, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return false, apperr.ErrSessionDestroyed
	}
	tr, ok := cmd(s.state)
	if !ok {
		return false, nil
	}
	return true, s.apply(tr)
}

// Focus places a collapsed cursor at the start or end of the document
// without touching content or history.
func (s *Session) Focus(atEnd bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}
	sel := document.CursorAtStart(s.state.Doc)
	if atEnd {
		sel = document.CursorAtEnd(s.state.Doc)
	}
	return s.apply(s.state.NewTransaction().SetSelection(sel).SetOrigin(state.OriginSystem))
}

// OpenURL forwards a link activation to the host. The engine never follows
// links itself.
func (s *Session) OpenURL(href string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}
	if href == "" {
		return nil
	}
	s.emit(Event{Name: EventOpenURL, Data: href})
	return nil
}

// SetCitation replaces the identified node's citation payload and display
// text. A citation with zero items deletes the node instead. Unknown node
// IDs are a no-op; node IDs are unique so at most one node matches.
func (s *Session) SetCitation(nodeID string, citation any, formatted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	node, path := s.state.Doc.FindByNodeID(nodeID)
	if node == nil {
		return nil
	}

	var newDoc *document.Node
	if metadata.CitationItemCount(citation) == 0 {
		newDoc = s.state.Doc.ReplaceAt(path, nil)
	} else {
		replacement := document.NewNode(s.schema.Node("citation"), map[string]any{
			"nodeID":            nodeID,
			"citation":          citation,
			"formattedCitation": formatted,
		}, nil)
		newDoc = s.state.Doc.ReplaceAt(path, replacement)
	}
	return s.apply(s.state.NewTransaction().SetDoc(newDoc))
}

// AttachImportedImage records the host-assigned attachment key on an image
// placeholder. The operation is external, so it leaves no undo entry.
func (s *Session) AttachImportedImage(nodeID, attachmentKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	node, path := s.state.Doc.FindByNodeID(nodeID)
	if node == nil || node.Type.Name != "image" {
		return nil
	}
	newDoc := s.state.Doc.ReplaceAt(path, node.WithAttr("attachmentKey", attachmentKey))
	return s.apply(s.state.NewTransaction().SetDoc(newDoc).SkipHistory())
}

// InsertHTML sanitizes and parses an HTML fragment and inserts the
// resulting blocks at pos, or after the selection's block when pos is nil.
// When the rest of the document already uses one uniform annotation color,
// freshly inserted annotations are recolored to match.
func (s *Session) InsertHTML(pos *document.Position, input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	nodes, err := s.parser.ParseFragment(htmlcodec.SanitizePaste(input))
	if err != nil {
		return fmt.Errorf("session: parse inserted html: %w", err)
	}
	if len(nodes) == 0 {
		return nil
	}

	// Bulk-apply state is re-derived from the existing content so pasted
	// annotations match the document-wide settings.
	color, uniform := uniformAnnotationColor(s.state.Doc)
	stripCites := annotationCitationsRemoved(s.state.Doc)
	for i := range nodes {
		if uniform {
			nodes[i] = recolorAnnotations(nodes[i], color)
		}
		if stripCites {
			nodes[i] = stripAnnotationCitations(nodes[i])
		}
	}

	idx := s.insertIndexLocked(pos)
	newDoc := s.state.Doc.InsertAt(nil, idx, nodes...)
	if err := s.apply(s.state.NewTransaction().SetDoc(newDoc)); err != nil {
		return err
	}
	s.requestImageImports()
	return nil
}

// Paste inserts plain clipboard text. The paste handlers run first, so
// Markdown-looking text becomes rich blocks; everything else becomes
// paragraphs, one per line.
func (s *Session) Paste(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	nodes, handled := s.state.HandlePaste(text)
	if !handled {
		para := s.schema.Node("paragraph")
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			var content []*document.Node
			if line != "" {
				content = []*document.Node{document.NewText(s.schema, line)}
			}
			nodes = append(nodes, document.NewNode(para, nil, content))
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	newDoc := s.state.Doc.InsertAt(nil, s.insertIndexLocked(nil), nodes...)
	return s.apply(s.state.NewTransaction().SetDoc(newDoc))
}

// insertIndexLocked resolves the top-level insertion index for pos, falling
// back to just after the selection's block.
func (s *Session) insertIndexLocked(pos *document.Position) int {
	if pos != nil && len(pos.Path) > 0 {
		idx := pos.Path[0]
		if idx < 0 {
			idx = 0
		}
		if idx > len(s.state.Doc.Content) {
			idx = len(s.state.Doc.Content)
		}
		return idx
	}
	head := s.state.Selection.Head
	if len(head.Path) > 0 {
		return head.Path[0] + 1
	}
	return len(s.state.Doc.Content)
}

// UpdateCitationItems merges host-pushed citation items into the store and
// forces a citation re-render when anything actually changed.
func (s *Session) UpdateCitationItems(items []metadata.CitationItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	changed := s.ctx.Store.UpdateCitationItems(items)
	if len(changed) == 0 {
		return nil
	}
	s.dirty = true
	if err := s.apply(plugins.ForceRerender(s.state)); err != nil {
		return err
	}
	s.emitCitationItemsList()
	return nil
}

// SetFormattedCitations writes host-formatted citation display text into
// matching nodes without creating an undo step.
func (s *Session) SetFormattedCitations(results map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}

	tr := plugins.ApplyFormattedCitations(s.state, results)
	if tr == nil {
		return nil
	}
	if err := s.apply(tr); err != nil {
		return err
	}
	// Display text must persist even though the transaction is
	// system-originated.
	s.dirty = true
	s.autosave.trigger()
	return nil
}

// ApplyExternalChanges merges externally produced note data into the live
// session without discarding the user's place in the document. On any
// failure the session is left untouched and the caller is expected to fall
// back to a full reload.
func (s *Session) ApplyExternalChanges(data NoteData, preserveSelection bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}
	if s.readOnly {
		return apperr.ErrReadOnly
	}

	// The selection snapshot is structural (child indices plus text
	// offset), so it can be re-resolved after the wholesale replacement.
	savedSel := s.state.Selection
	reversed := savedSel.Reversed()

	newDoc, newStore, err := s.loadContent(data)
	if err != nil {
		return s.mergeFailed(fmt.Errorf("session: external content rejected: %w", err))
	}
	if newStore.SchemaVersion > s.schema.Version {
		return s.mergeFailed(fmt.Errorf("session: external content has newer schema version %d", newStore.SchemaVersion))
	}
	newDoc = plugins.Clean(newDoc)
	newDoc = plugins.ReconcileIDs(newDoc)

	oldStore := s.ctx.Store
	oldState := s.state
	s.ctx.Store = newStore

	tr := s.state.NewTransaction().
		SetDoc(newDoc).
		SetOrigin(state.OriginSystem).
		SkipHistory()
	if err := s.apply(tr); err != nil {
		s.ctx.Store = oldStore
		s.state = oldState
		return s.mergeFailed(err)
	}

	// The formatting cache is keyed by content equality; the metadata may
	// have changed without the cached display text changing, so the
	// re-render is forced rather than inferred.
	if err := s.apply(plugins.ForceRerender(s.state)); err != nil {
		return err
	}

	if preserveSelection {
		if sel, ok := document.ResolveSelection(s.state.Doc, savedSel); ok {
			if sel.Reversed() != reversed {
				sel.Anchor, sel.Head = sel.Head, sel.Anchor
			}
			selTr := s.state.NewTransaction().SetSelection(sel)
			if err := s.apply(selTr); err != nil {
				return err
			}
		}
	}

	// The merged content came from persistence; it must not loop back out
	// as an autosave.
	s.savedAt = s.state.Version
	s.dirty = false
	s.emitCitationItemsList()
	return nil
}

// mergeFailed reports an incremental merge failure to the host and passes
// the error through. The caller falls back to a full reload.
func (s *Session) mergeFailed(err error) error {
	s.emit(Event{Name: EventIncrementalFailed, Data: err.Error()})
	return err
}

// uniformAnnotationColor scans highlight and image annotations and reports
// the single color they all share, if there is exactly one.
func uniformAnnotationColor(doc *document.Node) (string, bool) {
	colors := map[string]bool{}
	doc.Walk(func(n *document.Node, _ document.Path) bool {
		if c, ok := annotationColor(n); ok {
			colors[c] = true
		}
		return true
	})
	if len(colors) != 1 {
		return "", false
	}
	for c := range colors {
		return c, true
	}
	return "", false
}

func annotationColor(n *document.Node) (string, bool) {
	ann, ok := annotationAttr(n)
	if !ok {
		return "", false
	}
	c, ok := ann["color"].(string)
	return c, ok && c != ""
}

// annotationCitationsRemoved reports whether the document's annotations have
// had their citations removed: at least one annotation exists and none of
// them carries a citationItem.
func annotationCitationsRemoved(doc *document.Node) bool {
	found, cited := false, false
	doc.Walk(func(n *document.Node, _ document.Path) bool {
		ann, ok := annotationAttr(n)
		if !ok {
			return true
		}
		found = true
		if _, has := ann["citationItem"]; has {
			cited = true
		}
		return true
	})
	return found && !cited
}

// stripAnnotationCitations removes the citationItem payload from annotations
// in a freshly parsed subtree.
func stripAnnotationCitations(n *document.Node) *document.Node {
	return n.Transform(func(node *document.Node) *document.Node {
		ann, ok := annotationAttr(node)
		if !ok {
			return node
		}
		if _, has := ann["citationItem"]; !has {
			return node
		}
		next := make(map[string]any, len(ann))
		for k, v := range ann {
			if k != "citationItem" {
				next[k] = v
			}
		}
		return node.WithAttr("annotation", next)
	})
}

func annotationAttr(n *document.Node) (map[string]any, bool) {
	switch n.Type.Name {
	case "highlight", "image":
	default:
		return nil, false
	}
	ann, ok := n.Attr("annotation").(map[string]any)
	return ann, ok
}

// recolorAnnotations rewrites annotation colors in a freshly parsed subtree
// to the document-wide color.
func recolorAnnotations(n *document.Node, color string) *document.Node {
	return n.Transform(func(node *document.Node) *document.Node {
		ann, ok := node.Attr("annotation").(map[string]any)
		if !ok {
			return node
		}
		if node.Type.Name != "highlight" && node.Type.Name != "image" {
			return node
		}
		if c, _ := ann["color"].(string); c == color {
			return node
		}
		next := make(map[string]any, len(ann))
		for k, v := range ann {
			next[k] = v
		}
		next["color"] = color
		return node.WithAttr("annotation", next)
	})
}
