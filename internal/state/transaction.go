package state

import "github.com/starford/ansuz/internal/document"

// Origin values distinguish user edits from system-originated transactions,
// which are excluded from save triggering and undo history.
const (
	OriginUser   = ""
	OriginSystem = "system"
	OriginPlugin = "plugin"
)

// Transaction describes one document mutation: the resulting document,
// optionally a new selection, and bookkeeping flags. Plugins observe applied
// transactions and may contribute corrective ones folded into the same
// logical edit.
type Transaction struct {
	before       *document.Node
	doc          *document.Node
	selection    *document.Selection
	docChanged   bool
	addToHistory bool
	origin       string
	meta         map[string]any
}

// NewTransaction starts a transaction against the state's current document.
func (s *EditorState) NewTransaction() *Transaction {
	return &Transaction{
		before:       s.Doc,
		doc:          s.Doc,
		addToHistory: true,
	}
}

// SetDoc replaces the resulting document.
func (t *Transaction) SetDoc(doc *document.Node) *Transaction {
	t.doc = doc
	t.docChanged = !doc.Eq(t.before)
	return t
}

// SetSelection sets the resulting selection explicitly. Without it the
// previous selection is clamped against the new document.
func (t *Transaction) SetSelection(sel document.Selection) *Transaction {
	t.selection = &sel
	return t
}

// SkipHistory marks the transaction as invisible to undo history.
func (t *Transaction) SkipHistory() *Transaction {
	t.addToHistory = false
	return t
}

// SetOrigin tags the transaction's originator.
func (t *Transaction) SetOrigin(origin string) *Transaction {
	t.origin = origin
	return t
}

// SetMeta attaches a keyed metadata value for plugins to inspect.
func (t *Transaction) SetMeta(key string, value any) *Transaction {
	if t.meta == nil {
		t.meta = map[string]any{}
	}
	t.meta[key] = value
	return t
}

// Meta returns a metadata value set via SetMeta, or nil.
func (t *Transaction) Meta(key string) any {
	if t.meta == nil {
		return nil
	}
	return t.meta[key]
}

// Doc returns the resulting document.
func (t *Transaction) Doc() *document.Node { return t.doc }

// Before returns the document the transaction started from.
func (t *Transaction) Before() *document.Node { return t.before }

// DocChanged reports whether the document content changed.
func (t *Transaction) DocChanged() bool { return t.docChanged }

// AddToHistory reports whether the transaction belongs in undo history.
func (t *Transaction) AddToHistory() bool { return t.addToHistory }

// Origin returns the transaction's originator tag.
func (t *Transaction) Origin() string { return t.origin }
