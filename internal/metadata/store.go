// Package metadata implements the per-session side-document: citation item
// data and the schema version, kept out of the main document tree and
// reconciled against it as content changes.
package metadata

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"reflect"

	"github.com/starford/ansuz/internal/document"
)

// CitationItem is one stored bibliographic record reference. Items are
// identified by their URI set; ItemData is an opaque denormalized snapshot
// of the referenced record.
type CitationItem struct {
	URIs     []string        `json:"uris"`
	ItemData json.RawMessage `json:"itemData,omitempty"`
}

// matches reports whether the item's URI set intersects the given one.
// Items are merged by URI-set intersection: sharing any URI means they
// reference the same record.
func (c *CitationItem) matches(uris []string) bool {
	for _, a := range c.URIs {
		for _, b := range uris {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Store holds citation items for one editor session. A session owns exactly
// one store at a time; external merges swap the store wholesale.
type Store struct {
	SchemaVersion int
	items         []*CitationItem
}

// NewStore creates an empty store at the given schema version.
func NewStore(schemaVersion int) *Store {
	return &Store{SchemaVersion: schemaVersion}
}

// Items returns copies of all stored items.
func (s *Store) Items() []CitationItem {
	out := make([]CitationItem, len(s.items))
	for i, item := range s.items {
		out[i] = *item
	}
	return out
}

// serialized is the persisted JSON shape of the store.
type serialized struct {
	SchemaVersion int            `json:"schemaVersion"`
	CitationItems []CitationItem `json:"citationItems"`
}

// FromJSON decodes a store from its persisted structured form. Malformed
// input yields an empty store at version 0, never an error.
func FromJSON(data []byte) *Store {
	var raw serialized
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			slog.Warn("metadata: ignoring malformed metadata json", slog.String("error", err.Error()))
			raw = serialized{}
		}
	}
	s := &Store{SchemaVersion: raw.SchemaVersion}
	for i := range raw.CitationItems {
		item := raw.CitationItems[i]
		s.addIfAbsent(&item)
	}
	return s
}

// ToJSON encodes the store for structured persistence.
func (s *Store) ToJSON() ([]byte, error) {
	out := serialized{SchemaVersion: s.SchemaVersion, CitationItems: s.Items()}
	if out.CitationItems == nil {
		out.CitationItems = []CitationItem{}
	}
	return json.Marshal(out)
}

// ParseAttributes populates the store from HTML container attributes
// (data-schema-version, URL-encoded JSON data-citation-items). Any decode
// failure is swallowed: the store degrades to having less data.
func (s *Store) ParseAttributes(attrs map[string]string) {
	if v := attrs["data-schema-version"]; v != "" {
		var version int
		if _, err := jsonNumber(v, &version); err == nil {
			s.SchemaVersion = version
		}
	}
	raw := attrs["data-citation-items"]
	if raw == "" {
		return
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		slog.Warn("metadata: ignoring malformed citation items attribute", slog.String("error", err.Error()))
		return
	}
	var items []CitationItem
	if err := json.Unmarshal([]byte(unescaped), &items); err != nil {
		slog.Warn("metadata: ignoring malformed citation items json", slog.String("error", err.Error()))
		return
	}
	for i := range items {
		s.addIfAbsent(&items[i])
	}
}

func jsonNumber(raw string, target *int) (int, error) {
	err := json.Unmarshal([]byte(raw), target)
	return *target, err
}

// SerializeAttributes renders the store as HTML container attributes.
func (s *Store) SerializeAttributes() map[string]string {
	attrs := map[string]string{
		"data-schema-version": jsonInt(s.SchemaVersion),
	}
	if len(s.items) > 0 {
		data, err := json.Marshal(s.Items())
		if err == nil {
			attrs["data-citation-items"] = url.QueryEscape(string(data))
		}
	}
	return attrs
}

func jsonInt(v int) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// FillCitationItemsWithData copies stored ItemData into each given item that
// matches a stored one by URI intersection. Items without a match are left
// without ItemData; the caller treats those as missing.
func (s *Store) FillCitationItemsWithData(items []CitationItem) {
	for i := range items {
		if stored := s.lookup(items[i].URIs); stored != nil && len(stored.ItemData) > 0 {
			items[i].ItemData = stored.ItemData
		}
	}
}

// AddPulledCitationItems adds items stripped out of document nodes,
// skipping any whose URI set is already covered. It returns the items that
// were actually added.
func (s *Store) AddPulledCitationItems(items []CitationItem) []CitationItem {
	var added []CitationItem
	for i := range items {
		if len(items[i].URIs) == 0 {
			continue
		}
		item := items[i]
		if s.addIfAbsent(&item) {
			added = append(added, item)
		}
	}
	return added
}

// UpdateCitationItems merges host-pushed items: new URI sets are added,
// existing ones have their ItemData replaced when it differs by deep
// equality. It returns the entries that actually changed so dependents can
// re-render precisely.
func (s *Store) UpdateCitationItems(items []CitationItem) []CitationItem {
	var changed []CitationItem
	for i := range items {
		if len(items[i].URIs) == 0 {
			continue
		}
		item := items[i]
		existing := s.lookup(item.URIs)
		if existing == nil {
			copied := item
			s.items = append(s.items, &copied)
			changed = append(changed, item)
			continue
		}
		if !rawJSONEqual(existing.ItemData, item.ItemData) {
			existing.ItemData = item.ItemData
			changed = append(changed, item)
		}
	}
	return changed
}

// DeleteUnusedCitationItems removes every stored item whose URI set is not
// referenced by any citation, highlight, or image node in the document
// (mark-and-sweep). Reports whether anything was deleted.
func (s *Store) DeleteUnusedCitationItems(doc *document.Node) bool {
	used := make([]bool, len(s.items))
	for _, uris := range ReferencedURISets(doc) {
		for i, item := range s.items {
			if item.matches(uris) {
				used[i] = true
			}
		}
	}
	var kept []*CitationItem
	for i, item := range s.items {
		if used[i] {
			kept = append(kept, item)
		}
	}
	deleted := len(kept) != len(s.items)
	s.items = kept
	return deleted
}

// GetMissingCitationItems returns the URI sets referenced by the document
// but absent from the store, as data-less items suitable for a host backfill
// request.
func (s *Store) GetMissingCitationItems(doc *document.Node) []CitationItem {
	var missing []CitationItem
	seen := map[string]struct{}{}
	for _, uris := range ReferencedURISets(doc) {
		if s.lookup(uris) != nil {
			continue
		}
		key := urisKey(uris)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, CitationItem{URIs: uris})
	}
	return missing
}

func (s *Store) lookup(uris []string) *CitationItem {
	for _, item := range s.items {
		if item.matches(uris) {
			return item
		}
	}
	return nil
}

// addIfAbsent adds the item unless an existing item intersects its URI set.
// When it does intersect, the union of the URI sets is kept and missing
// ItemData is filled in, so no two stored items ever share a URI.
func (s *Store) addIfAbsent(item *CitationItem) bool {
	existing := s.lookup(item.URIs)
	if existing == nil {
		copied := *item
		s.items = append(s.items, &copied)
		return true
	}
	for _, uri := range item.URIs {
		if !existing.matches([]string{uri}) {
			existing.URIs = append(existing.URIs, uri)
		}
	}
	if len(existing.ItemData) == 0 && len(item.ItemData) > 0 {
		existing.ItemData = item.ItemData
	}
	return false
}

func rawJSONEqual(a, b json.RawMessage) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(va, vb)
}

func urisKey(uris []string) string {
	data, _ := json.Marshal(uris)
	return string(data)
}
