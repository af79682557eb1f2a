package docsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/textanchor/guard"
)

func TestParse(t *testing.T) {
	tests := []struct {
		ref      string
		kind     string
		location string
	}{
		{"docs/article.html", "file", "docs/article.html"},
		{"https://example.com/a", "http", "https://example.com/a"},
		{"http://example.com/a", "http", "http://example.com/a"},
		{"rendered+https://example.com/app", "rendered", "https://example.com/app"},
	}
	for _, tt := range tests {
		src, err := Parse(tt.ref)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.ref, err)
		}
		if src.Kind() != tt.kind || src.Location() != tt.location {
			t.Errorf("Parse(%q): got %s %s", tt.ref, src.Kind(), src.Location())
		}
	}
	for _, bad := range []string{"", "rendered+file.html"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}

func TestFile_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.html")
	os.WriteFile(path, []byte("<p>hello</p>"), 0o644)

	got, err := (&File{Path: path}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != "<p>hello</p>" {
		t.Errorf("got %q", got)
	}
	if _, err := (&File{Path: path + ".missing"}).Fetch(context.Background()); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("Accept"), "text/html") {
			t.Errorf("accept header: %q", r.Header.Get("Accept"))
		}
		w.Write([]byte("<p>remote</p>"))
	}))
	defer srv.Close()

	got, err := (&HTTP{URL: srv.URL + "/doc"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != "<p>remote</p>" {
		t.Errorf("got %q", got)
	}
	if _, err := (&HTTP{URL: srv.URL + "/missing"}).Fetch(context.Background()); err == nil {
		t.Error("404: expected error")
	}
}

func TestHTTP_FetchValidatesRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc":
			w.Write([]byte("<p>moved</p>"))
		case "/moved":
			http.Redirect(w, r, "/doc", http.StatusFound)
		case "/metadata":
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		}
	}))
	defer srv.Close()

	var hops []string
	validate := func(u string) error {
		hops = append(hops, u)
		if strings.HasPrefix(u, srv.URL) {
			return nil
		}
		return guard.ValidateURL(u, nil)
	}
	fetch := func(path string) ([]byte, error) {
		return (&HTTP{URL: srv.URL + path, Validate: validate}).Fetch(context.Background())
	}

	got, err := fetch("/moved")
	if err != nil || string(got) != "<p>moved</p>" {
		t.Fatalf("allowed redirect: %q, %v", got, err)
	}
	if len(hops) != 1 || hops[0] != srv.URL+"/doc" {
		t.Errorf("validated hops: %v", hops)
	}

	if _, err := fetch("/metadata"); !errors.Is(err, guard.ErrSSRF) {
		t.Errorf("redirect to a link-local address: got %v", err)
	}
	if _, err := fetch("/loop"); err == nil || !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("redirect loop: got %v", err)
	}
}

func TestWatcher_ReportsSettledChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.html")
	other := filepath.Join(dir, "other.html")
	os.WriteFile(path, []byte("<p>v1</p>"), 0o644)

	changed := make(chan string, 10)
	w, err := NewWatcher(50*time.Millisecond, func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		t.Fatalf("add: %v", err)
	}

	os.WriteFile(other, []byte("ignored"), 0o644)
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("<p>v2</p>"), 0o644)
	}

	abs, _ := filepath.Abs(path)
	select {
	case got := <-changed:
		if got != abs {
			t.Errorf("changed: got %s, want %s", got, abs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case got := <-changed:
		t.Errorf("burst reported twice (%s)", got)
	case <-time.After(200 * time.Millisecond):
	}
}
