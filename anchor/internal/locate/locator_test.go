package locate

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/anchor/internal/serialize"
	"github.com/hazyhaar/textanchor/dom"
)

func body(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return dom.Body(doc.Root)
}

func capture(t *testing.T, root *html.Node, start, end int) *descriptor.Descriptor {
	t.Helper()
	rng, err := dom.NewTextIndex(root).Range(start, end)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	d, err := serialize.Capture(root, rng, serialize.Options{ID: "sel_test", Type: "highlight"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return d
}

func offsets(t *testing.T, root *html.Node, rng *dom.Range) (int, int) {
	t.Helper()
	s, e, ok := dom.NewTextIndex(root).Span(rng)
	if !ok {
		t.Fatal("range boundaries not indexed")
	}
	return s, e
}

const withIDs = `<html><body><div id="root">` +
	`<p id="p1">The quick brown fox jumps over the lazy dog</p>` +
	`<p class="note">Second <em>para</em> here</p>` +
	`</div></body></html>`

const plain = `<html><body><main>` +
	`<p class="lead">The quick brown fox jumps over the lazy dog</p>` +
	`<p>Other text</p>` +
	`</main></body></html>`

const rewrapped = `<html><body><main>` +
	`<section><p class="lead">The quick brown fox jumps over the lazy dog</p></section>` +
	`<p>Other text</p>` +
	`</main></body></html>`

func TestLocate_RoundTrip(t *testing.T) {
	root := body(t, withIDs)
	l := New(Options{})
	for _, tc := range []struct{ start, end int }{
		{4, 15}, {0, 43}, {46, 54}, {50, 54}, {40, 59},
	} {
		d := capture(t, root, tc.start, tc.end)
		rng, layer, err := l.Locate(root, d, LocateOptions{})
		if err != nil {
			t.Fatalf("[%d,%d): %v", tc.start, tc.end, err)
		}
		if rng.Text() != d.Text {
			t.Errorf("[%d,%d): got %q, want %q", tc.start, tc.end, rng.Text(), d.Text)
		}
		if layer != LayerAnchors {
			t.Errorf("[%d,%d): resolved by %s, want anchors", tc.start, tc.end, layer)
		}
	}
}

func TestLocate_LayerPriority(t *testing.T) {
	root := body(t, withIDs)
	d := capture(t, root, 4, 15)

	attempts := map[Layer]int{}
	l := New(Options{Observer: func(_ string, layer Layer, _ bool) { attempts[layer]++ }})
	if _, _, err := l.Locate(root, d, LocateOptions{}); err != nil {
		t.Fatalf("locate: %v", err)
	}
	if attempts[LayerAnchors] != 1 {
		t.Errorf("anchors attempts: got %d, want 1", attempts[LayerAnchors])
	}
	for _, layer := range Order[1:] {
		if attempts[layer] != 0 {
			t.Errorf("%s attempted %d times after anchors succeeded", layer, attempts[layer])
		}
	}
}

func TestLocate_PathsWhenIDsGone(t *testing.T) {
	root := body(t, withIDs)
	d := capture(t, root, 4, 15)

	moved := body(t, strings.ReplaceAll(withIDs, `id="p1"`, `id="renamed"`))
	rng, layer, err := New(Options{}).Locate(moved, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if layer != LayerPaths || rng.Text() != "quick brown" {
		t.Errorf("got %q via %s, want %q via paths", rng.Text(), layer, "quick brown")
	}
}

func TestLocate_StructuralResilience(t *testing.T) {
	d := capture(t, body(t, plain), 10, 19)
	if d.Text != "brown fox" {
		t.Fatalf("captured %q", d.Text)
	}
	root := body(t, rewrapped)
	rng, layer, err := New(Options{}).Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if rng.Text() != "brown fox" {
		t.Errorf("text: got %q", rng.Text())
	}
	if layer == LayerAnchors || layer == LayerPaths {
		t.Errorf("resolved by %s although the container was rewrapped", layer)
	}
	if s, _ := offsets(t, root, rng); s != 10 {
		t.Errorf("start: got %d, want 10", s)
	}
}

func TestLocate_Fingerprint(t *testing.T) {
	d := capture(t, body(t, plain), 10, 19)
	d.Restore.MultipleAnchors = nil
	root := body(t, rewrapped)
	rng, layer, err := New(Options{}).Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if layer != LayerFingerprint || rng.Text() != "brown fox" {
		t.Errorf("got %q via %s, want %q via fingerprint", rng.Text(), layer, "brown fox")
	}
}

func TestLocate_FingerprintRepeatedText(t *testing.T) {
	const inline = `<html><body><div>` +
		`<p>xxxxxxxxxxxxxxxxxxxx <em>foo bar foo</em></p>` +
		`</div></body></html>`
	d := capture(t, body(t, inline), 21, 24)
	if d.Text != "foo" {
		t.Fatalf("captured %q", d.Text)
	}
	d.Restore = descriptor.Restore{Fingerprint: d.Restore.Fingerprint, Context: d.Restore.Context}

	root := body(t, strings.Replace(inline, "<div>", "<section><div>", 1))
	rng, layer, err := New(Options{}).Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if layer != LayerFingerprint {
		t.Errorf("layer: got %s, want fingerprint", layer)
	}
	if s, e := offsets(t, root, rng); s != 21 || e != 24 {
		t.Errorf("span: got [%d,%d), want [21,24)", s, e)
	}

	// The second occurrence relocates to itself.
	d = capture(t, body(t, inline), 29, 32)
	d.Restore = descriptor.Restore{Fingerprint: d.Restore.Fingerprint, Context: d.Restore.Context}
	rng, _, err = New(Options{}).Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate second: %v", err)
	}
	if s, _ := offsets(t, root, rng); s != 29 {
		t.Errorf("second occurrence: got start %d, want 29", s)
	}
}

func TestRank_PrefersSameShape(t *testing.T) {
	d := capture(t, body(t, plain), 10, 19)
	root := body(t, rewrapped)
	ranked := Rank(root, d.Restore.Fingerprint, DefaultThreshold)
	if len(ranked) == 0 {
		t.Fatal("no candidate above threshold")
	}
	if dom.ClassName(ranked[0].Node) != "lead" {
		t.Errorf("best candidate: got <%s class=%q>", ranked[0].Node.Data, dom.ClassName(ranked[0].Node))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("rank not descending at %d", i)
		}
	}
}

func TestLocate_ContextDegraded(t *testing.T) {
	d := capture(t, body(t, plain), 10, 19)
	d.Restore = descriptor.Restore{Context: d.Restore.Context}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	spaced := strings.Replace(plain, "quick brown fox", "quick  brown\n fox", 1)
	root := body(t, spaced)

	rng, layer, err := New(Options{Logger: logger}).Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if layer != LayerContext {
		t.Fatalf("layer: got %s, want context", layer)
	}
	if got := rng.Text(); got != "brown\n fox" {
		t.Errorf("text: got %q", got)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("degraded match not logged at WARN: %s", logs.String())
	}
}

const repeated = `<html><body>` +
	`<p>Alpha intro.</p><p>Repeat me here</p><p>Middle part.</p><p>Repeat me here</p><p>Omega end.</p>` +
	`</body></html>`

func TestLocate_ContextDisambiguation(t *testing.T) {
	root := body(t, repeated)
	d := capture(t, root, 45, 47)
	d.Restore = descriptor.Restore{Context: d.Restore.Context}
	l := New(Options{})

	rng, _, err := l.Locate(root, d, LocateOptions{})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if s, _ := offsets(t, root, rng); s != 45 {
		t.Errorf("windows: got start %d, want 45", s)
	}

	rng, _, err = l.Locate(root, d, LocateOptions{Hint: 20, HasHint: true})
	if err != nil {
		t.Fatalf("locate with hint: %v", err)
	}
	if s, _ := offsets(t, root, rng); s != 19 {
		t.Errorf("hint: got start %d, want 19", s)
	}
}

func TestLocate_Unresolvable(t *testing.T) {
	d := capture(t, body(t, plain), 10, 19)
	root := body(t, `<html><body><p>Totally different</p></body></html>`)

	var calls int
	l := New(Options{Observer: func(string, Layer, bool) { calls++ }})
	_, _, err := l.Locate(root, d, LocateOptions{})
	var unres *descriptor.UnresolvableSelectionError
	if !errors.As(err, &unres) {
		t.Fatalf("got %v, want UnresolvableSelectionError", err)
	}
	if len(unres.Attempted) != len(Order) || calls != len(Order) {
		t.Errorf("attempted %v (%d observer calls), want all %d layers", unres.Attempted, calls, len(Order))
	}
}

func TestLocate_RejectsChangedText(t *testing.T) {
	root := body(t, withIDs)
	d := capture(t, root, 4, 15)
	changed := body(t, strings.Replace(withIDs, "quick brown", "quick green", 1))
	d.Restore.Context = nil
	if _, layer, err := New(Options{}).Locate(changed, d, LocateOptions{}); err == nil {
		t.Errorf("resolved changed text via %s", layer)
	}
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		a, b []string
		want float64
	}{
		{nil, nil, 1},
		{[]string{"p"}, nil, 0},
		{[]string{"p", "div"}, []string{"p"}, 0.5},
		{[]string{"p", "p"}, []string{"p", "p"}, 1},
	}
	for _, c := range cases {
		if got := jaccard(c.a, c.b); got != c.want {
			t.Errorf("jaccard(%v, %v): got %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
