// Package state implements the editing pipeline: immutable editor states,
// transactions, and the ordered plugin chain that derives state and appends
// corrective transactions after every mutation.
package state

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/schema"
)

// Plugin is an observer registered with an editor state. The concrete
// capabilities are optional interfaces: Initializer, Applier, Appender, and
// PasteHandler. Registration order is the application order and is
// load-bearing: structural plugins (node IDs, schema transform) must run
// before the citation and metadata plugins that key off stable identities.
type Plugin interface {
	Name() string
}

// Initializer computes a plugin's derived state for a fresh editor state.
type Initializer interface {
	Plugin
	Init(s *EditorState) any
}

// Applier recomputes a plugin's derived state after a transaction. prev is
// the state derived for the previous editor state.
type Applier interface {
	Plugin
	OnApply(tr *Transaction, prev any, s *EditorState) any
}

// Appender may contribute one corrective transaction after observing the
// transactions applied so far. Corrections are folded into the same logical
// edit and never form separate undo steps.
type Appender interface {
	Plugin
	AppendTransaction(trs []*Transaction, old, new *EditorState) *Transaction
}

// PasteHandler may intercept a plain-text paste and produce block nodes to
// insert instead of the default plain-text handling.
type PasteHandler interface {
	Plugin
	HandlePaste(s *EditorState, text string) ([]*document.Node, bool)
}

// maxCorrectivePasses bounds the append-transaction fixpoint loop so a
// misbehaving plugin cannot livelock the pipeline.
const maxCorrectivePasses = 5

// EditorState is an immutable snapshot of an editing session: the document,
// the selection, and every plugin's derived state. Applying a transaction
// produces a new state; the old one stays valid.
type EditorState struct {
	Schema    *schema.Schema
	Doc       *document.Node
	Selection document.Selection
	ReadOnly  bool

	// Version counts applied document-changing transactions. Sessions use
	// it for cheap "anything changed since last save" checks.
	Version uint64

	plugins     []Plugin
	pluginState map[string]any
}

// Config configures a new editor state.
type Config struct {
	Schema    *schema.Schema
	Doc       *document.Node
	Selection *document.Selection
	ReadOnly  bool
	Plugins   []Plugin
}

// New builds the initial editor state and runs every plugin's Init.
func New(cfg Config) (*EditorState, error) {
	if cfg.Schema == nil || cfg.Doc == nil {
		return nil, fmt.Errorf("state: schema and doc are required")
	}
	s := &EditorState{
		Schema:      cfg.Schema,
		Doc:         cfg.Doc,
		ReadOnly:    cfg.ReadOnly,
		plugins:     cfg.Plugins,
		pluginState: map[string]any{},
	}
	if cfg.Selection != nil {
		s.Selection = *cfg.Selection
	} else {
		s.Selection = document.CursorAtStart(cfg.Doc)
	}
	for _, p := range s.plugins {
		if init, ok := p.(Initializer); ok {
			s.pluginState[p.Name()] = init.Init(s)
		}
	}
	return s, nil
}

// PluginState returns the named plugin's derived state.
func (s *EditorState) PluginState(name string) any {
	return s.pluginState[name]
}

// Plugins returns the registered plugin chain in application order.
func (s *EditorState) Plugins() []Plugin { return s.plugins }

func (s *EditorState) clone() *EditorState {
	out := *s
	out.pluginState = make(map[string]any, len(s.pluginState))
	for k, v := range s.pluginState {
		out.pluginState[k] = v
	}
	return &out
}

// Apply folds a transaction into a new editor state: the read-only filter
// runs first, then every Appender may contribute corrective transactions (in
// registration order, repeated until a fixpoint), then the resulting
// document is validated and every Applier recomputes its derived state.
func (s *EditorState) Apply(tr *Transaction) (*EditorState, error) {
	if s.ReadOnly && tr.docChanged {
		return nil, apperr.ErrReadOnly
	}

	next := s.clone()
	applied := []*Transaction{tr}
	next.applyOne(tr)

	for pass := 0; pass < maxCorrectivePasses; pass++ {
		appended := false
		for _, p := range next.plugins {
			app, ok := p.(Appender)
			if !ok {
				continue
			}
			corr := app.AppendTransaction(applied, s, next)
			if corr == nil {
				continue
			}
			// Corrections share the triggering edit's undo entry.
			corr.addToHistory = false
			if corr.origin == OriginUser {
				corr.origin = OriginPlugin
			}
			next.applyOne(corr)
			applied = append(applied, corr)
			appended = true
		}
		if !appended {
			break
		}
	}

	if err := next.Doc.Validate(); err != nil {
		return nil, fmt.Errorf("state: transaction left invalid document: %w", err)
	}

	for _, p := range next.plugins {
		if applier, ok := p.(Applier); ok {
			prev := s.pluginState[p.Name()]
			next.pluginState[p.Name()] = applier.OnApply(tr, prev, next)
		}
	}

	if docChanged(applied) {
		next.Version++
	}
	return next, nil
}

func (s *EditorState) applyOne(tr *Transaction) {
	s.Doc = tr.doc
	if tr.selection != nil {
		if sel, ok := document.ResolveSelection(s.Doc, *tr.selection); ok {
			s.Selection = sel
		}
	} else if tr.docChanged {
		if sel, ok := document.ResolveSelection(s.Doc, s.Selection); ok {
			s.Selection = sel
		} else {
			s.Selection = document.CursorAtStart(s.Doc)
		}
	}
}

func docChanged(trs []*Transaction) bool {
	for _, tr := range trs {
		if tr.docChanged {
			return true
		}
	}
	return false
}

// HandlePaste offers pasted plain text to every PasteHandler in order; the
// first taker wins.
func (s *EditorState) HandlePaste(text string) ([]*document.Node, bool) {
	for _, p := range s.plugins {
		if h, ok := p.(PasteHandler); ok {
			if nodes, handled := h.HandlePaste(s, text); handled {
				return nodes, true
			}
		}
	}
	return nil, false
}
