// Package plugins implements the transaction pipeline's observer chain:
// node-ID reconciliation, structural schema clean-up, the citation
// formatting cache, item-data extraction into the metadata store, and
// markdown paste detection.
//
// Registration order matters: DefaultSet wires the structural plugins ahead
// of the citation and metadata plugins that depend on stable node identity.
package plugins

import (
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/state"
)

// FormatRequest asks the host to format one citation for display.
type FormatRequest struct {
	ID       string `json:"id"`
	Citation any    `json:"citation"`
}

// Context carries the session-owned collaborators plugins need. It is passed
// explicitly at construction instead of living in shared mutable globals.
type Context struct {
	// Store is the session's metadata store.
	Store *metadata.Store
	// RequestFormatting delivers a batch of citation format requests to the
	// host. May be nil.
	RequestFormatting func([]FormatRequest)
}

// DefaultSet builds the standard plugin chain in its required order.
func DefaultSet(ctx *Context) []state.Plugin {
	return []state.Plugin{
		&NodeID{},
		&SchemaTransform{},
		NewCitation(ctx),
		NewPullItemData(ctx),
		&MarkdownPaste{},
	}
}
