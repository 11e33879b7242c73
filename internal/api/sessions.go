package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/commands"
	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/state"
)

// SessionHandler exposes the live editing sessions over HTTP.
type SessionHandler struct {
	svc *noteservice.Service
}

// NewSessionHandler creates session route handlers.
func NewSessionHandler(svc *noteservice.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// decodeBody decodes a JSON request body into v, writing the error response
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// resolve looks up the open session named by the request, writing the error
// response itself when there is none.
func (h *SessionHandler) resolve(w http.ResponseWriter, path string) *session.Session {
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return nil
	}
	sess := h.svc.Session(path)
	if sess == nil {
		writeError(w, http.StatusNotFound, "no open session for path")
		return nil
	}
	return sess
}

func sessionState(path string, sess *session.Session) map[string]any {
	data := sess.GetData(false)
	return map[string]any{
		"path":      path,
		"read_only": sess.ReadOnly(),
		"data":      data,
	}
}

// writeSessionError maps session errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, path string, err error) {
	switch {
	case errors.Is(err, apperr.ErrSessionDestroyed):
		writeError(w, http.StatusGone, "session destroyed")
	case errors.Is(err, apperr.ErrReadOnly):
		writeError(w, http.StatusForbidden, "session is read-only")
	default:
		slog.Error("session operation failed", slog.String("path", path), slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

// Open handles POST /api/sessions.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	sess, err := h.svc.OpenSession(r.Context(), req.Path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Error("open session failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionState(req.Path, sess))
}

// Close handles DELETE /api/sessions.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	h.svc.CloseSession(r.Context(), path)
	w.WriteHeader(http.StatusNoContent)
}

// Data handles GET /api/sessions/data. It returns the serialized session,
// flushing nothing; the session persists on its own schedule.
func (h *SessionHandler) Data(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	sess := h.resolve(w, path)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sessionState(path, sess))
}

// Paste handles POST /api/sessions/paste.
func (h *SessionHandler) Paste(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	if err := sess.Paste(req.Text); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionState(req.Path, sess))
}

// InsertHTML handles POST /api/sessions/insert-html. "at" is an optional
// top-level block index; absent, insertion lands after the selection.
func (h *SessionHandler) InsertHTML(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
		HTML string `json:"html"`
		At   *int   `json:"at,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	var pos *document.Position
	if req.At != nil {
		pos = &document.Position{Path: document.Path{*req.At}}
	}
	if err := sess.InsertHTML(pos, req.HTML); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionState(req.Path, sess))
}

// SetCitation handles POST /api/sessions/citation.
func (h *SessionHandler) SetCitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path      string `json:"path"`
		NodeID    string `json:"node_id"`
		Citation  any    `json:"citation"`
		Formatted string `json:"formatted"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	if err := sess.SetCitation(req.NodeID, req.Citation, req.Formatted); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CitationItems handles POST /api/sessions/citation-items: the host pushes
// updated bibliographic records into the session store.
func (h *SessionHandler) CitationItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path  string                  `json:"path"`
		Items []metadata.CitationItem `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	if err := sess.UpdateCitationItems(req.Items); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FormattedCitations handles POST /api/sessions/formatted-citations: the
// host answers a formatCitations event with rendered display text.
func (h *SessionHandler) FormattedCitations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string            `json:"path"`
		Results map[string]string `json:"results"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	if err := sess.SetFormattedCitations(req.Results); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachImage handles POST /api/sessions/attach-image: records the stored
// attachment key on an imported image node.
func (h *SessionHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path          string `json:"path"`
		NodeID        string `json:"node_id"`
		AttachmentKey string `json:"attachment_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}
	if err := sess.AttachImportedImage(req.NodeID, req.AttachmentKey); err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Command handles POST /api/sessions/command: the editing commands that act
// on the current selection.
func (h *SessionHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		Command  string `json:"command"`
		Backward bool   `json:"backward,omitempty"`
		Align    string `json:"align,omitempty"`
		Delta    int    `json:"delta,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess := h.resolve(w, req.Path)
	if sess == nil {
		return
	}

	var cmd func(*state.EditorState) (*state.Transaction, bool)
	switch req.Command {
	case "tabInTable":
		backward := req.Backward
		cmd = func(s *state.EditorState) (*state.Transaction, bool) {
			return commands.TabInTable(s, backward)
		}
	case "setAlignment":
		align := req.Align
		cmd = func(s *state.EditorState) (*state.Transaction, bool) {
			return commands.SetAlignment(s, align)
		}
	case "changeIndent":
		delta := req.Delta
		cmd = func(s *state.EditorState) (*state.Transaction, bool) {
			return commands.ChangeIndent(s, delta)
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
		return
	}

	applied, err := sess.Command(cmd)
	if err != nil {
		writeSessionError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}
