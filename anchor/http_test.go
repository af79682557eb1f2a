package anchor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/textanchor/audit"
)

func do(t *testing.T, h http.Handler, method, path, ctype, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_DocumentLifecycle(t *testing.T) {
	svc := newTestService(t, nil)
	h := svc.Handler()

	if rec := do(t, h, "GET", "/health", "", ""); rec.Code != 200 {
		t.Fatalf("health: %d", rec.Code)
	}

	rec := do(t, h, "PUT", "/api/documents/doc", "text/html; charset=utf-8", page)
	if rec.Code != 200 {
		t.Fatalf("open: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "POST", "/api/documents/doc/selections", "application/json",
		`{"id":"`+sel1+`","start":4,"end":15}`)
	if rec.Code != 201 {
		t.Fatalf("capture: %d %s", rec.Code, rec.Body)
	}
	var captured struct {
		Descriptor json.RawMessage `json:"descriptor"`
		Restore    RestoreResult   `json:"restore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &captured); err != nil {
		t.Fatal(err)
	}
	if captured.Restore.ID != sel1 || captured.Restore.Text != "quick brown" {
		t.Fatalf("capture result: %+v", captured.Restore)
	}

	// The captured descriptor can be stored again under its own id.
	rec = do(t, h, "PUT", "/api/documents/doc/selections/"+sel1, "application/json", string(captured.Descriptor))
	if rec.Code != 200 {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, "PUT", "/api/documents/doc/selections/sel_other", "application/json", string(captured.Descriptor))
	if rec.Code != 400 {
		t.Errorf("save with mismatched id: %d", rec.Code)
	}
	rec = do(t, h, "PUT", "/api/documents/doc/selections/"+sel1, "application/json", `{"id":"`+sel1+`"}`)
	if rec.Code != 400 {
		t.Errorf("save invalid descriptor: %d", rec.Code)
	}

	rec = do(t, h, "GET", "/api/documents/doc/html", "", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `data-anchor-highlight="`+sel1+`"`) {
		t.Errorf("html: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, "GET", "/api/documents/doc/selections/"+sel1+"/markdown", "", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "quick brown") {
		t.Errorf("markdown: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "GET", "/api/documents/doc/selections", "", "")
	var sels []StoredSelection
	json.Unmarshal(rec.Body.Bytes(), &sels)
	if len(sels) != 1 || sels[0].ID != sel1 {
		t.Errorf("list: %s", rec.Body)
	}

	if rec := do(t, h, "DELETE", "/api/documents/doc/selections/"+sel1, "", ""); rec.Code != 200 {
		t.Errorf("delete: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, "DELETE", "/api/documents/doc/selections/"+sel1, "", ""); rec.Code != 404 {
		t.Errorf("second delete: %d", rec.Code)
	}

	// Closing the audit writer flushes the queued entries.
	svc.audit.Close()
	rec = do(t, h, "GET", "/api/audit?document=doc", "", "")
	var entries []audit.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("audit: %v %s", err, rec.Body)
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Action+"/"+e.Status]++
		if e.Transport != "http" || e.RequestID == "" {
			t.Errorf("audit entry context: %+v", e)
		}
	}
	want := map[string]int{
		"anchor_load_document/success":    1,
		"anchor_capture/success":          1,
		"anchor_save_selection/success":   1,
		"anchor_remove_selection/success": 1,
		"anchor_remove_selection/error":   1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("audit %s: got %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestHTTP_Errors(t *testing.T) {
	svc := newTestService(t, nil)
	h := svc.Handler()

	if rec := do(t, h, "GET", "/api/documents/nope/html", "", ""); rec.Code != 404 {
		t.Errorf("unknown document: %d", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/documents/doc", "application/json", `{}`); rec.Code != 400 {
		t.Errorf("open without source: %d", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/documents/doc", "application/json", `{"source":"../secrets.html"}`); rec.Code != 403 {
		t.Errorf("open outside the document root: %d", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/documents/.hidden", "text/html", page); rec.Code != 400 {
		t.Errorf("invalid document id: %d", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/documents/doc", "application/json", `{"html":`+jsonString(page)+`}`); rec.Code != 200 {
		t.Fatalf("open inline: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, "POST", "/api/documents/doc/selections", "application/json", `{"start":3,"end":3}`); rec.Code != 400 {
		t.Errorf("empty capture: %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/documents/doc/selections/sel_missing/restore", "", ""); rec.Code != 404 {
		t.Errorf("restore missing: %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/api/documents/doc/selections/sel_missing/markdown", "", ""); rec.Code != 404 {
		t.Errorf("markdown of inactive: %d", rec.Code)
	}

	do(t, h, "PUT", "/api/documents/other", "text/html", page)
	if rec := do(t, h, "POST", "/api/documents/doc/selections", "application/json", `{"id":"sel_shared","start":4,"end":9}`); rec.Code != 201 {
		t.Fatalf("capture: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, "POST", "/api/documents/other/selections", "application/json", `{"id":"sel_shared","start":4,"end":9}`); rec.Code != 409 {
		t.Errorf("id owned by another document: %d", rec.Code)
	}
	if rec := do(t, h, "DELETE", "/api/documents/other/selections/sel_shared", "", ""); rec.Code != 404 {
		t.Errorf("delete through another document: %d", rec.Code)
	}
}

func TestHTTP_Search(t *testing.T) {
	svc := newTestService(t, nil)
	h := svc.Handler()
	do(t, h, "PUT", "/api/documents/doc", "text/html", page)

	rec := do(t, h, "POST", "/api/documents/doc/search", "application/json",
		`{"keyword":"fox","containers":["kw"],"options":{"whole_word":true,"filter":"Index < 2"}}`)
	if rec.Code != 200 {
		t.Fatalf("search: %d %s", rec.Code, rec.Body)
	}
	var res SearchResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Success != 2 || len(res.HighlightIDs) != 2 {
		t.Fatalf("search result: %s", rec.Body)
	}

	rec = do(t, h, "GET", "/api/documents/doc/active", "", "")
	if !strings.Contains(rec.Body.String(), res.HighlightIDs[0]) {
		t.Errorf("active: %s", rec.Body)
	}

	rec = do(t, h, "DELETE", "/api/documents/doc/search?keyword=fox", "", "")
	var cleared struct {
		Removed []string `json:"removed"`
	}
	json.Unmarshal(rec.Body.Bytes(), &cleared)
	if rec.Code != 200 || len(cleared.Removed) != 2 {
		t.Errorf("clear: %d %s", rec.Code, rec.Body)
	}

	if rec := do(t, h, "POST", "/api/documents/doc/search", "application/json", `{"keyword":"fox","containers":["missing"]}`); rec.Code != 400 {
		t.Errorf("unknown container: %d", rec.Code)
	}
	rec = do(t, h, "GET", "/api/documents/doc/stylesheet.css", "", "")
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("stylesheet content type: %q", rec.Header().Get("Content-Type"))
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
