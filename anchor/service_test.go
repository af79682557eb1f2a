package anchor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hazyhaar/textanchor/anchor/internal/docsource"
	"github.com/hazyhaar/textanchor/anchor/internal/store"
	"github.com/hazyhaar/textanchor/guard"
)

const (
	pageEdited = `<html><body><div id="root">` +
		`<p id="intro">A new opening paragraph.</p>` +
		`<p id="p1">The quick brown fox jumps over the lazy dog</p>` +
		`<p class="note">Second <em>para</em> here</p>` +
		`</div></body></html>`
	pageRewritten = `<html><body><div id="root"><p>Nothing left of the old text.</p></div></body></html>`
)

func newTestService(t *testing.T, cfg *ServerConfig) *Service {
	t.Helper()
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	cfg.DBPath = filepath.Join(t.TempDir(), "anchors.db")
	if cfg.Engine.RootNodeID == "" {
		cfg.Engine.RootNodeID = "root"
	}
	cfg.defaults()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc, err := newService(st, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_CaptureAndReopen(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	info, err := svc.OpenDocument(ctx, "doc", "upload", []byte(page))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(info.Restore.Restored) != 0 || len(info.Active) != 0 {
		t.Fatalf("fresh document: got %+v", info)
	}

	d, res, err := svc.Capture(ctx, "doc", CaptureRequest{ID: sel1, Start: 4, End: 15})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.Text != "quick brown" || res.Layer != LayerAnchors {
		t.Fatalf("capture: got %q via %s", d.Text, res.Layer)
	}

	sels, err := svc.Selections(ctx, "doc")
	if err != nil || len(sels) != 1 {
		t.Fatalf("selections: %v, %v", sels, err)
	}
	if sels[0].LastLayer != string(LayerAnchors) {
		t.Errorf("last layer: got %q", sels[0].LastLayer)
	}

	// A new version of the document restores the stored selection.
	info, err = svc.OpenDocument(ctx, "doc", "upload", []byte(pageEdited))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(info.Restore.Restored) != 1 || !slices.Equal(info.Active, []string{sel1}) {
		t.Fatalf("reopen: got %+v", info.Restore)
	}
	e, _ := svc.Engine("doc")
	if txt, _ := e.ActiveText(sel1); txt != "quick brown" {
		t.Errorf("restored text: got %q", txt)
	}

	// A version without the text records the failure but keeps the descriptor.
	info, err = svc.OpenDocument(ctx, "doc", "upload", []byte(pageRewritten))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !slices.Equal(info.Restore.FailedIDs(), []string{sel1}) {
		t.Fatalf("rewrite: got %+v", info.Restore)
	}
	sels, _ = svc.Selections(ctx, "doc")
	if len(sels) != 1 || sels[0].RestoreFailures != 1 || sels[0].LastLayer != "" {
		t.Errorf("after failure: got %+v", sels[0])
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 1 || st.Selections != 1 || st.Failing != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestService_SaveRestoreRemove(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.OpenDocument(ctx, "doc", "upload", []byte(page)); err != nil {
		t.Fatal(err)
	}
	d, _, err := svc.Capture(ctx, "doc", CaptureRequest{ID: sel2, Start: 10, End: 19})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Save(ctx, "other", d); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("save to unknown document: got %v", err)
	}
	res, err := svc.Restore(ctx, "doc", sel2)
	if err != nil || res.Text != "brown fox" {
		t.Fatalf("restore: %+v, %v", res, err)
	}
	if _, err := svc.Restore(ctx, "doc", "sel_missing"); !errors.Is(err, ErrUnknownSelection) {
		t.Errorf("restore missing: got %v", err)
	}

	if err := svc.Remove(ctx, "doc", sel2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.Remove(ctx, "doc", sel2); !errors.Is(err, ErrUnknownSelection) {
		t.Errorf("second remove: got %v", err)
	}
	if sels, _ := svc.Selections(ctx, "doc"); len(sels) != 0 {
		t.Errorf("selections after remove: %d", len(sels))
	}
}

func TestService_SelectionsScopedToDocument(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	for _, id := range []string{"docA", "docB"} {
		if _, err := svc.OpenDocument(ctx, id, "upload", []byte(page)); err != nil {
			t.Fatal(err)
		}
	}
	d, _, err := svc.Capture(ctx, "docB", CaptureRequest{ID: "sel_b", Start: 4, End: 15})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Remove(ctx, "docA", "sel_b"); !errors.Is(err, ErrUnknownSelection) {
		t.Errorf("remove through docA: got %v", err)
	}
	if _, err := svc.Save(ctx, "docA", d); !errors.Is(err, ErrSelectionOwned) {
		t.Errorf("save into docA: got %v", err)
	}
	if _, err := svc.Restore(ctx, "docA", "sel_b"); !errors.Is(err, ErrUnknownSelection) {
		t.Errorf("restore through docA: got %v", err)
	}

	if sels, _ := svc.Selections(ctx, "docB"); len(sels) != 1 || sels[0].ID != "sel_b" {
		t.Errorf("docB selections: %+v", sels)
	}
	if sels, _ := svc.Selections(ctx, "docA"); len(sels) != 0 {
		t.Errorf("docA selections: %+v", sels)
	}
	eA, _ := svc.Engine("docA")
	if ids := eA.GetAllActiveSelectionIDs(); len(ids) != 0 {
		t.Errorf("docA active: %v", ids)
	}
	eB, _ := svc.Engine("docB")
	if txt, ok := eB.ActiveText("sel_b"); !ok || txt != "quick brown" {
		t.Errorf("docB active text: %q, %v", txt, ok)
	}
}

func TestService_SearchIsTransient(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.OpenDocument(ctx, "doc", "upload", []byte(page)); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Search("doc", "fox", "", []string{"kw"}, SearchOptions{WholeWord: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.HighlightIDs) != 4 {
		t.Fatalf("matches: got %d", len(res.HighlightIDs))
	}
	if sels, _ := svc.Selections(ctx, "doc"); len(sels) != 0 {
		t.Errorf("keyword highlights were stored: %d", len(sels))
	}
	removed, err := svc.ClearSearch("doc", "fox", nil)
	if err != nil || len(removed) != 4 {
		t.Errorf("clear: %v, %v", removed, err)
	}
}

func TestService_LoadFileAndReload(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, &ServerConfig{DocumentRoot: root})
	ctx := context.Background()
	path := filepath.Join(root, "page.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := svc.LoadDocument(ctx, "file", "page.html")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if info.Kind != "file" || info.Source != path {
		t.Errorf("info: got %+v", info)
	}
	if _, _, err := svc.Capture(ctx, "file", CaptureRequest{ID: sel1, Start: 4, End: 15}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(pageEdited), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err = svc.Reload(ctx, "file")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(info.Restore.Restored) != 1 {
		t.Errorf("reload: got %+v", info.Restore)
	}

	if _, err := svc.OpenDocument(ctx, "raw", "upload", []byte(page)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reload(ctx, "raw"); err == nil {
		t.Error("reload of an uploaded document should fail")
	}

	docs, err := svc.Documents(ctx)
	if err != nil || len(docs) != 2 || docs[0].ID != "file" || !docs[0].Loaded {
		t.Errorf("documents: %+v, %v", docs, err)
	}
}

func TestService_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(t, &ServerConfig{Watch: true, Documents: map[string]string{"w": path}})
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := svc.Capture(ctx, "w", CaptureRequest{ID: sel1, Start: 4, End: 15}); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Engine("w")

	if err := os.WriteFile(path, []byte(pageEdited), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		e, _ := svc.Engine("w")
		if e != before {
			if txt, ok := e.ActiveText(sel1); !ok || txt != "quick brown" {
				t.Errorf("after reload: %q, %v", txt, ok)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("document was not reloaded after the file changed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestService_ConfinesClientSources(t *testing.T) {
	svc := newTestService(t, nil)
	svc.resolve = func(host string) ([]string, error) { return []string{"10.0.0.7"}, nil }
	ctx := context.Background()

	tests := []struct {
		id, ref string
		want    error
	}{
		{"doc", "page.html", guard.ErrPathTraversal},
		{"doc", "http://127.0.0.1:8080/admin", guard.ErrSSRF},
		{"doc", "https://intranet.example/page", guard.ErrSSRF},
		{"doc", "rendered+http://192.168.1.1/", guard.ErrSSRF},
	}
	for _, tt := range tests {
		if _, err := svc.LoadDocument(ctx, tt.id, tt.ref); !errors.Is(err, tt.want) {
			t.Errorf("LoadDocument(%q): got %v, want %v", tt.ref, err, tt.want)
		}
	}
	if _, err := svc.OpenDocument(ctx, "../escape", "upload", []byte(page)); !errors.Is(err, guard.ErrInvalidIdentifier) {
		t.Errorf("bad document id: got %v", err)
	}

	root := t.TempDir()
	svc = newTestService(t, &ServerConfig{DocumentRoot: root})
	if _, err := svc.LoadDocument(ctx, "doc", "../outside.html"); !errors.Is(err, guard.ErrPathTraversal) {
		t.Errorf("traversal: got %v", err)
	}
}

func TestService_ConfinesRedirects(t *testing.T) {
	svc := newTestService(t, nil)
	svc.resolve = func(host string) ([]string, error) {
		if host == "intranet.example" {
			return []string{"10.0.0.7"}, nil
		}
		return []string{"93.184.216.34"}, nil
	}

	src := &docsource.HTTP{URL: "https://public.example/page"}
	if err := svc.confine(src); err != nil {
		t.Fatalf("confine: %v", err)
	}
	if src.Validate == nil {
		t.Fatal("redirect validation not installed")
	}
	for _, hop := range []string{"http://127.0.0.1/admin", "http://169.254.169.254/", "https://intranet.example/"} {
		if err := src.Validate(hop); !errors.Is(err, guard.ErrSSRF) {
			t.Errorf("redirect to %s: got %v", hop, err)
		}
	}
	if err := src.Validate("https://other.example/page"); err != nil {
		t.Errorf("public redirect: %v", err)
	}
}
