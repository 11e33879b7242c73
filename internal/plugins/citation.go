package plugins

import (
	"encoding/json"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/state"
)

// metaForceCitationRerender, when set on a transaction, invalidates the
// formatting cache so every citation node is re-requested regardless of
// content equality. Used after external merges, where the metadata changed
// but the cached display text may not have.
const metaForceCitationRerender = "citation:forceRerender"

// Citation maintains the citation formatting cache: after every change it
// finds citation nodes whose display text is stale (by content equality
// against the cache) and batches formatting requests to the host. Host
// results are written back via ApplyFormattedCitations without creating an
// undo step.
type Citation struct {
	ctx *Context
}

// NewCitation builds the citation cache plugin.
func NewCitation(ctx *Context) *Citation {
	return &Citation{ctx: ctx}
}

// Name implements state.Plugin.
func (*Citation) Name() string { return "citation" }

// citationCache maps node identity to the citation content that was last
// sent for formatting, so unchanged nodes are not re-requested.
type citationCache map[string]string

// Init implements state.Initializer.
func (c *Citation) Init(s *state.EditorState) any {
	return c.refresh(s, citationCache{}, false)
}

// OnApply implements state.Applier.
func (c *Citation) OnApply(tr *state.Transaction, prev any, s *state.EditorState) any {
	force := tr.Meta(metaForceCitationRerender) != nil
	if !tr.DocChanged() && !force {
		return prev
	}
	cache, _ := prev.(citationCache)
	if cache == nil {
		cache = citationCache{}
	}
	return c.refresh(s, cache, force)
}

// refresh scans all citation nodes, collects those needing (re)formatting,
// and returns the updated cache.
func (c *Citation) refresh(s *state.EditorState, prev citationCache, force bool) citationCache {
	next := citationCache{}
	var requests []FormatRequest

	s.Doc.Walk(func(n *document.Node, _ document.Path) bool {
		if n.Type.Name != "citation" {
			return true
		}
		id := n.AttrString("nodeID")
		if id == "" {
			// The node-ID plugin runs earlier in the chain; a citation
			// without identity here means the transaction did not touch the
			// document, and it will be picked up on the next change.
			return true
		}
		key := citationKey(n.Attr("citation"))
		next[id] = key
		if force || prev[id] != key || n.AttrString("formattedCitation") == "" {
			requests = append(requests, FormatRequest{ID: id, Citation: n.Attr("citation")})
		}
		return true
	})

	if len(requests) > 0 && c.ctx != nil && c.ctx.RequestFormatting != nil {
		c.ctx.RequestFormatting(requests)
	}
	return next
}

// citationKey renders a citation attr value into a comparable cache key.
func citationKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ApplyFormattedCitations builds a transaction writing host-formatted
// display text into the matching citation nodes. Returns nil when no node
// matched. The transaction is system-originated and skips undo history.
func ApplyFormattedCitations(s *state.EditorState, results map[string]string) *state.Transaction {
	if len(results) == 0 {
		return nil
	}
	newDoc := s.Doc.Transform(func(n *document.Node) *document.Node {
		if n.Type.Name != "citation" {
			return n
		}
		formatted, ok := results[n.AttrString("nodeID")]
		if !ok || n.AttrString("formattedCitation") == formatted {
			return n
		}
		return n.WithAttr("formattedCitation", formatted)
	})
	if newDoc == s.Doc {
		return nil
	}
	return s.NewTransaction().
		SetDoc(newDoc).
		SetOrigin(state.OriginSystem).
		SkipHistory()
}

// ForceRerender builds a no-op transaction that invalidates the formatting
// cache, causing every citation node to be re-requested.
func ForceRerender(s *state.EditorState) *state.Transaction {
	return s.NewTransaction().
		SetOrigin(state.OriginSystem).
		SkipHistory().
		SetMeta(metaForceCitationRerender, true)
}
