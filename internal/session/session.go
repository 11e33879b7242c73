// Package session implements the editor session controller: one instance
// per open note, owning the editor state, the metadata store, the image
// provider, and the debounced autosave. All host-facing mutation entry
// points live here.
package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/htmlcodec"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/plugins"
	"github.com/starford/ansuz/internal/provider"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/state"
)

// Status is the session lifecycle state.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusDestroyed
)

// Event names emitted through the sink.
const (
	EventUpdate                  = "update"
	EventFormatCitations         = "formatCitations"
	EventUpdateCitationItemsList = "updateCitationItemsList"
	EventMissingCitationItems    = "missingCitationItems"
	EventSubscribe               = "subscribe"
	EventUnsubscribe             = "unsubscribe"
	EventInsertObject            = "insertObject"
	EventOpenURL                 = "openURL"
	EventIncrementalFailed       = "incrementalUpdateFailed"
)

// ImportRequest asks the host to import an external image into the vault.
// The host answers with AttachImportedImage.
type ImportRequest struct {
	NodeID string `json:"nodeID"`
	Src    string `json:"src"`
}

// Event is one host-bound notification.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

// Sink receives session events. It must not call back into the session
// synchronously; deliveries can happen while the session lock is held.
type Sink func(Event)

// StructuredState is the persisted document-plus-metadata shape.
type StructuredState struct {
	Doc      json.RawMessage `json:"doc"`
	Metadata json.RawMessage `json:"metadata"`
}

// NoteData is the unit of note persistence: structured state when
// available, always the HTML fallback rendering.
type NoteData struct {
	State *StructuredState `json:"state,omitempty"`
	HTML  string           `json:"html"`
}

// Config configures a new session.
type Config struct {
	// Data is the persisted note content to load.
	Data NoteData
	// ReadOnly opens the session without edit capability.
	ReadOnly bool
	// Events receives session notifications. May be nil.
	Events Sink
	// AutosaveDelay is the quiet period before a save fires; AutosaveMax
	// caps how long a sustained edit stream can defer it. Zero values get
	// defaults.
	AutosaveDelay time.Duration
	AutosaveMax   time.Duration
	Logger        *slog.Logger
}

const (
	defaultAutosaveDelay = 2 * time.Second
	defaultAutosaveMax   = 20 * time.Second
)

// Session is one open editing session. All methods are safe for concurrent
// use; internally everything serializes on one mutex, matching the
// single-dispatch model the pipeline assumes.
type Session struct {
	mu sync.Mutex

	log      *slog.Logger
	schema   *schema.Schema
	parser   *htmlcodec.Parser
	ctx      *plugins.Context
	state    *state.EditorState
	provider *provider.Provider
	events   Sink

	status   Status
	readOnly bool
	savedAt  uint64
	dirty    bool
	autosave *debouncer
}

// New constructs a session from persisted note data. Structured state is
// preferred; HTML is the fallback. A document persisted by a newer schema
// version forces the session read-only rather than failing.
func New(cfg Config) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:    log,
		schema: schema.Default(),
		events: cfg.Events,
		status: StatusLoading,
	}
	s.parser = htmlcodec.NewParser(s.schema)

	doc, store, err := s.loadContent(cfg.Data)
	if err != nil {
		return nil, err
	}

	s.readOnly = cfg.ReadOnly
	if store.SchemaVersion > s.schema.Version {
		s.log.Warn("document schema version exceeds implementation, forcing read-only",
			slog.Int("document", store.SchemaVersion),
			slog.Int("implementation", s.schema.Version))
		s.readOnly = true
	}

	// Repair structure before the first state exists so the host never
	// observes an invalid tree.
	doc = plugins.Clean(doc)
	doc = plugins.ReconcileIDs(doc)

	s.ctx = &plugins.Context{
		Store: store,
		RequestFormatting: func(reqs []plugins.FormatRequest) {
			s.emit(Event{Name: EventFormatCitations, Data: reqs})
		},
	}
	st, err := state.New(state.Config{
		Schema:   s.schema,
		Doc:      doc,
		ReadOnly: s.readOnly,
		Plugins:  plugins.DefaultSet(s.ctx),
	})
	if err != nil {
		return nil, err
	}
	s.state = st

	// First-load metadata reconciliation: prune items nothing references.
	s.savedAt = st.Version
	if store.DeleteUnusedCitationItems(doc) {
		s.dirty = true
	}

	s.provider = provider.New(
		func(sub provider.Subscription) { s.emit(Event{Name: EventSubscribe, Data: sub.ID}) },
		func(sub provider.Subscription) { s.emit(Event{Name: EventUnsubscribe, Data: sub.ID}) },
	)

	delay, maxWait := cfg.AutosaveDelay, cfg.AutosaveMax
	if delay <= 0 {
		delay = defaultAutosaveDelay
	}
	if maxWait <= 0 {
		maxWait = defaultAutosaveMax
	}
	s.autosave = newDebouncer(delay, maxWait, s.saveNow)

	s.status = StatusReady
	s.emitCitationItemsList()
	s.requestMissingItems()
	s.requestImageImports()
	return s, nil
}

// loadContent builds the initial document and store from note data.
func (s *Session) loadContent(data NoteData) (*document.Node, *metadata.Store, error) {
	if data.State != nil && len(data.State.Doc) > 0 {
		doc, err := document.FromJSON(s.schema, data.State.Doc)
		if err == nil {
			return doc, metadata.FromJSON(data.State.Metadata), nil
		}
		s.log.Warn("structured state rejected, falling back to html", slog.Any("error", err))
	}
	doc, store, err := s.parser.ParseDocument(data.HTML)
	if err != nil {
		return nil, nil, err
	}
	return doc, store, nil
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ReadOnly reports whether the session rejects content edits.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// State returns the current editor state snapshot.
func (s *Session) State() *state.EditorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Provider returns the session's image payload provider.
func (s *Session) Provider() *provider.Provider { return s.provider }

// GetData serializes the session for persistence. With onlyChanged set it
// returns nil when nothing changed since the last call, which is the cheap
// skip the autosave path relies on.
func (s *Session) GetData(onlyChanged bool) *NoteData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDataLocked(onlyChanged)
}

func (s *Session) getDataLocked(onlyChanged bool) *NoteData {
	if s.status == StatusDestroyed {
		return nil
	}
	// Only the save path consumes the change tracking; a plain read must
	// not make a pending autosave think nothing changed.
	if onlyChanged {
		if !s.dirty && s.state.Version == s.savedAt {
			return nil
		}
		s.savedAt = s.state.Version
		s.dirty = false
	}

	data := &NoteData{HTML: htmlcodec.Serialize(s.state.Doc, s.ctx.Store)}
	docJSON, err := s.state.Doc.ToJSON()
	if err != nil {
		s.log.Error("serialize document", slog.Any("error", err))
		return data
	}
	metaJSON, err := s.ctx.Store.ToJSON()
	if err != nil {
		s.log.Error("serialize metadata", slog.Any("error", err))
		return data
	}
	data.State = &StructuredState{Doc: docJSON, Metadata: metaJSON}
	return data
}

// NotifySubscription delivers a host-pushed payload to matching provider
// subscriptions.
func (s *Session) NotifySubscription(id string, payload []byte) {
	s.provider.Notify(id, payload)
}

// Flush forces a pending autosave out immediately.
func (s *Session) Flush() {
	s.autosave.flush()
}

// Destroy tears the session down: the pending autosave is flushed, the
// provider dropped, and every later call fails with ErrSessionDestroyed.
func (s *Session) Destroy() {
	s.autosave.flush()
	s.autosave.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusDestroyed {
		return
	}
	s.status = StatusDestroyed
	s.provider.Close()
}

// saveNow is the autosave callback.
func (s *Session) saveNow() {
	s.mu.Lock()
	data := s.getDataLocked(true)
	s.mu.Unlock()
	if data == nil {
		return
	}
	s.emit(Event{Name: EventUpdate, Data: data})
}

func (s *Session) emit(ev Event) {
	if s.events != nil {
		s.events(ev)
	}
}

func (s *Session) emitCitationItemsList() {
	s.emit(Event{Name: EventUpdateCitationItemsList, Data: s.ctx.Store.Items()})
}

// requestImageImports asks the host to import images that still point at an
// external source and carry no attachment key.
func (s *Session) requestImageImports() {
	var reqs []ImportRequest
	s.state.Doc.Walk(func(n *document.Node, _ document.Path) bool {
		if n.Type.Name != "image" {
			return true
		}
		src, _ := n.Attr("src").(string)
		key, _ := n.Attr("attachmentKey").(string)
		if src != "" && key == "" {
			id, _ := n.Attr("nodeID").(string)
			reqs = append(reqs, ImportRequest{NodeID: id, Src: src})
		}
		return true
	})
	if len(reqs) > 0 {
		s.emit(Event{Name: EventInsertObject, Data: reqs})
	}
}

// requestMissingItems asks the host to backfill citation items the document
// references but the store does not hold.
func (s *Session) requestMissingItems() {
	missing := s.ctx.Store.GetMissingCitationItems(s.state.Doc)
	if len(missing) > 0 {
		s.emit(Event{Name: EventMissingCitationItems, Data: missing})
	}
}

// apply runs a transaction through the pipeline and installs the resulting
// state. Callers hold the lock. User-originated document changes arm the
// autosave.
func (s *Session) apply(tr *state.Transaction) error {
	if s.status == StatusDestroyed {
		return apperr.ErrSessionDestroyed
	}
	next, err := s.state.Apply(tr)
	if err != nil {
		return err
	}
	changed := next.Version != s.state.Version
	s.state = next
	if changed && tr.Origin() != state.OriginSystem {
		s.autosave.trigger()
	}
	return nil
}
