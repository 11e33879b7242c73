package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/noteservice"
)

// RouterConfig bundles the dependencies of the API router.
type RouterConfig struct {
	Service *noteservice.Service
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// SSEHandler, if non-nil, is mounted at GET /events inside the auth group.
	SSEHandler http.Handler
	// VaultRoot is used to resolve the attachments directory.
	VaultRoot string
	// RTFHeadingSizes maps RTF half-point font sizes to heading levels.
	RTFHeadingSizes map[int]int
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service)
	sh := NewSessionHandler(cfg.Service)
	ch := NewConvertHandler(cfg.RTFHeadingSizes)
	ah := NewAttachmentHandler(cfg.VaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Search and citation lookups.
	r.Get("/search", h.Search)
	r.Get("/citations", h.Citations)

	// Editing sessions.
	r.Post("/sessions", sh.Open)
	r.Delete("/sessions", sh.Close)
	r.Get("/sessions/data", sh.Data)
	r.Post("/sessions/paste", sh.Paste)
	r.Post("/sessions/insert-html", sh.InsertHTML)
	r.Post("/sessions/citation", sh.SetCitation)
	r.Post("/sessions/citation-items", sh.CitationItems)
	r.Post("/sessions/formatted-citations", sh.FormattedCitations)
	r.Post("/sessions/attach-image", sh.AttachImage)
	r.Post("/sessions/command", sh.Command)

	// Format conversion.
	r.Post("/convert/rtf", ch.RTF)

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if cfg.SSEHandler != nil {
		r.Get("/events", cfg.SSEHandler.ServeHTTP)
	}

	return r
}
