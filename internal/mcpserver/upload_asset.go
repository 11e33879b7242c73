package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	attachmentDir      = "attachments"
	maxAttachmentBytes = 10 << 20
)

// imageMIMEExt maps sniffed image MIME types to the stored extension.
// Attachments outside this set are rejected.
var imageMIMEExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

var altCharsRe = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)

type attachmentResult struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	HTMLImage string `json:"htmlImage"`
}

// uploadAsset fetches an image from an HTTP(S) URL or base64 data URI and
// stores it in the vault's attachment area under a server-generated key,
// the same convention the HTTP upload endpoint uses. The optional filename
// only feeds the alt text of the returned snippet.
func (s *Server) uploadAsset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	alt := ""
	if v, fErr := req.RequireString("filename"); fErr == nil {
		alt = altCharsRe.ReplaceAllString(path.Base(v), "")
	}

	var data []byte
	var hint string
	if strings.HasPrefix(src, "data:") {
		data, hint, err = decodeDataURI(src)
	} else {
		data, hint, err = downloadAsset(src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxAttachmentBytes {
		return mcp.NewToolResultError(fmt.Sprintf("attachment too large: %d bytes (max %d)", len(data), maxAttachmentBytes)), nil
	}

	ext, err := imageExtFor(data, hint)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	key := uuid.New().String() + ext
	if err := s.store.Write(path.Join(attachmentDir, key), data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store attachment: %v", err)), nil
	}

	urlPath := "/" + attachmentDir + "/" + key
	out, _ := json.Marshal(attachmentResult{
		Key:       key,
		URL:       urlPath,
		HTMLImage: fmt.Sprintf(`<img src="%s" alt="%s">`, urlPath, alt),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI and returns
// the payload plus the extension declared by its media type.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, found := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !found {
		return nil, "", fmt.Errorf("invalid data URI: no payload separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
		}
	}

	mime, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	return data, imageMIMEExt[mime], nil
}

// downloadAsset fetches an image over HTTP(S). Loopback and cloud metadata
// hosts are refused, including across redirects.
func downloadAsset(rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q: only http and https", parsed.Scheme)
	}
	if err := vetAssetHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return vetAssetHost(req.URL.Hostname())
		},
	}
	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, "", fmt.Errorf("attachment too large: exceeds %d bytes", maxAttachmentBytes)
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, imageMIMEExt[strings.TrimSpace(mime)], nil
}

// vetAssetHost rejects loopback and cloud metadata addresses.
func vetAssetHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client surface DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// imageExtFor determines the stored extension from the payload itself.
// SVG cannot be sniffed by net/http, so the declared hint plus a tag check
// stands in for it.
func imageExtFor(data []byte, hint string) (string, error) {
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	if ext := imageMIMEExt[sniffed]; ext != "" {
		return ext, nil
	}
	if hint == ".svg" && svgTagNear(data) {
		return ".svg", nil
	}
	return "", fmt.Errorf("content is not a supported image type (detected %s)", sniffed)
}

func svgTagNear(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("<svg"))
}
