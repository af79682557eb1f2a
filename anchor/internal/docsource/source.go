// Package docsource loads the HTML of documents whose selections the daemon
// manages: from disk, over HTTP, or rendered by a headless browser for pages
// built by JavaScript.
package docsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/textanchor/guard"
)

// MaxDocumentBytes caps the size of a fetched document.
const MaxDocumentBytes = 16 << 20

// RenderedPrefix marks a source to load through a headless browser.
const RenderedPrefix = "rendered+"

// Source yields the current HTML of one document.
type Source interface {
	// Kind is "file", "http" or "rendered".
	Kind() string
	// Location is the path or URL the source reads.
	Location() string
	Fetch(ctx context.Context) ([]byte, error)
}

// Parse picks the source for ref: "rendered+<url>" renders in a browser,
// an http(s) URL is fetched, anything else is a file path.
func Parse(ref string) (Source, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("docsource: empty source")
	case strings.HasPrefix(ref, RenderedPrefix):
		u := strings.TrimPrefix(ref, RenderedPrefix)
		if !isHTTP(u) {
			return nil, fmt.Errorf("docsource: rendered source needs an http(s) URL, got %q", u)
		}
		return &Rendered{URL: u}, nil
	case isHTTP(ref):
		return &HTTP{URL: ref}, nil
	default:
		return &File{Path: ref}, nil
	}
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// File reads a document from disk.
type File struct {
	Path string
}

func (f *File) Kind() string     { return "file" }
func (f *File) Location() string { return f.Path }

func (f *File) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("docsource: open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return readCapped(fh, f.Path)
}

// MaxRedirects bounds the redirect hops followed by an HTTP source.
const MaxRedirects = 5

// HTTP fetches a document with a GET request.
type HTTP struct {
	URL    string
	Client *http.Client
	// Validate, when set, is applied to every redirect target.
	Validate func(rawURL string) error
}

func (h *HTTP) Kind() string     { return "http" }
func (h *HTTP) Location() string { return h.URL }

func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	if h.Client != nil {
		c := *h.Client
		client = &c
	}
	client.CheckRedirect = h.checkRedirect
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("docsource: request %s: %w", h.URL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docsource: get %s: %w", h.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docsource: get %s: status %d", h.URL, resp.StatusCode)
	}
	return readCapped(resp.Body, h.URL)
}

func (h *HTTP) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("docsource: too many redirects (%d)", len(via))
	}
	if h.Validate != nil {
		if err := h.Validate(req.URL.String()); err != nil {
			return fmt.Errorf("docsource: redirect to %s blocked: %w", req.URL.Redacted(), err)
		}
	}
	return nil
}

func readCapped(r io.Reader, name string) ([]byte, error) {
	data, err := guard.LimitedReadAll(r, MaxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("docsource: read %s: %w", name, err)
	}
	return data, nil
}
