package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/starford/ansuz/internal/rtf"
)

// ConvertHandler exposes document format conversion.
type ConvertHandler struct {
	headingSizes map[int]int
}

// NewConvertHandler creates conversion route handlers. headingSizes maps
// RTF font sizes in half-points to heading levels; nil uses the defaults.
func NewConvertHandler(headingSizes map[int]int) *ConvertHandler {
	return &ConvertHandler{headingSizes: headingSizes}
}

// RTF handles POST /api/convert/rtf. The body is raw RTF
// (Content-Type text/rtf or application/rtf); the response is the HTML
// rendering.
func (h *ConvertHandler) RTF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	src, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(string(src)), `{\rtf`) {
		writeError(w, http.StatusBadRequest, "body is not RTF")
		return
	}
	html := rtf.ToHTML(string(src), rtf.Options{HeadingSizes: h.headingSizes})
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}
