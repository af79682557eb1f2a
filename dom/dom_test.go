package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func parse(t *testing.T, src string) *Document {
	t.Helper()
	d, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

const sample = `<html><body><p id="a">Hello <em>brave</em> new world</p><p class="x y">Second para</p></body></html>`

func TestTextIndex_RangeAcrossNodes(t *testing.T) {
	d := parse(t, sample)
	ti := NewTextIndex(Body(d.Root))

	if got := ti.String(); got != "Hello brave new worldSecond para" {
		t.Fatalf("flattened: got %q", got)
	}
	r, err := ti.Range(6, 15)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if got := r.Text(); got != "brave new" {
		t.Errorf("Text: got %q, want %q", got, "brave new")
	}
	if r.Start.Node.Data != "brave" || r.Start.Offset != 0 {
		t.Errorf("Start: got (%q,%d)", r.Start.Node.Data, r.Start.Offset)
	}
	s, e, ok := ti.Span(r)
	if !ok || s != 6 || e != 15 {
		t.Errorf("Span: got %d,%d,%v", s, e, ok)
	}
}

func TestTextIndex_SeamPreference(t *testing.T) {
	d := parse(t, sample)
	ti := NewTextIndex(Body(d.Root))

	start, _ := ti.PointAt(6, false)
	end, _ := ti.PointAt(6, true)
	if start.Node.Data != "brave" {
		t.Errorf("start at seam: got %q, want later node", start.Node.Data)
	}
	if end.Node.Data != "Hello " || end.Offset != 6 {
		t.Errorf("end at seam: got (%q,%d), want earlier node", end.Node.Data, end.Offset)
	}
	if _, ok := ti.PointAt(ti.Len()+1, true); ok {
		t.Error("PointAt past end should fail")
	}
}

func TestComparePoints(t *testing.T) {
	d := parse(t, sample)
	texts := TextNodes(Body(d.Root))
	p := texts[0].Parent

	cases := []struct {
		name string
		a, b Point
		want int
	}{
		{"same node", Point{texts[0], 1}, Point{texts[0], 3}, -1},
		{"equal", Point{texts[1], 2}, Point{texts[1], 2}, 0},
		{"later node", Point{texts[2], 0}, Point{texts[0], 5}, 1},
		{"element before child", Point{p, 0}, Point{texts[0], 0}, -1},
		{"element after child", Point{p, 3}, Point{texts[2], 4}, 1},
		{"across paragraphs", Point{texts[3], 0}, Point{texts[2], 10}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComparePoints(tc.a, tc.b); got != tc.want {
				t.Errorf("ComparePoints: got %d, want %d", got, tc.want)
			}
			if got := ComparePoints(tc.b, tc.a); got != -tc.want {
				t.Errorf("ComparePoints reversed: got %d, want %d", got, -tc.want)
			}
		})
	}
}

func TestRange_Intersects(t *testing.T) {
	d := parse(t, sample)
	ti := NewTextIndex(Body(d.Root))
	a, _ := ti.Range(0, 10)
	b, _ := ti.Range(5, 20)
	c, _ := ti.Range(10, 12)

	if !a.Intersects(b) || !b.Intersects(a) {
		t.Error("overlapping ranges should intersect both ways")
	}
	if a.Intersects(c) || c.Intersects(a) {
		t.Error("touching ranges must not intersect")
	}
}

func TestNewRange_Backward(t *testing.T) {
	d := parse(t, sample)
	texts := TextNodes(Body(d.Root))
	r := NewRange(Point{texts[2], 4}, Point{texts[0], 6})
	if !r.Backward {
		t.Error("expected Backward")
	}
	if got := r.Text(); got != "brave new" {
		t.Errorf("Text: got %q", got)
	}
}

func TestElementPath_RoundTrip(t *testing.T) {
	d := parse(t, sample)
	body := Body(d.Root)
	for _, el := range Elements(body, "") {
		if el == body {
			continue
		}
		path, ok := ElementPath(body, el)
		if !ok {
			t.Fatalf("ElementPath(%s) failed", el.Data)
		}
		if got := ResolvePath(body, path); got != el {
			t.Errorf("ResolvePath(%q): got %v, want %s", path, got, el.Data)
		}
	}
	em := Elements(body, "em")[0]
	path, _ := ElementPath(body, em)
	if path != "p:nth-of-type(1) > em:nth-of-type(1)" {
		t.Errorf("path: got %q", path)
	}
	p2 := Elements(body, "p")[1]
	path, _ = ElementPath(body, p2)
	if path != "p.x.y:nth-of-type(2)" {
		t.Errorf("path with classes: got %q", path)
	}
}

func TestResolvePath_Mismatch(t *testing.T) {
	d := parse(t, sample)
	body := Body(d.Root)
	for _, path := range []string{
		"p:nth-of-type(3)",
		"p.z:nth-of-type(2)",
		"div:nth-of-type(1)",
		"garbage",
	} {
		if got := ResolvePath(body, path); got != nil {
			t.Errorf("ResolvePath(%q): got %s, want nil", path, got.Data)
		}
	}
}

func TestSplitAndMerge_KeepTrackedRanges(t *testing.T) {
	d := parse(t, sample)
	ti := NewTextIndex(Body(d.Root))
	r, _ := ti.Range(6, 15)
	d.Track(r)

	tail := TextNodes(Body(d.Root))[2]
	rest := d.SplitText(tail, 2)
	if rest == nil {
		t.Fatal("SplitText returned nil")
	}
	if r.End.Node != rest || r.End.Offset != 2 {
		t.Errorf("End after split: got (%q,%d)", r.End.Node.Data, r.End.Offset)
	}
	if got := r.Text(); got != "brave new" {
		t.Errorf("Text after split: got %q", got)
	}

	wrapper := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span,
		Attr: []html.Attribute{{Key: HighlightAttr, Val: "h1"}}}
	d.Wrap(tail, wrapper)
	if got := r.Text(); got != "brave new" {
		t.Errorf("Text after wrap: got %q", got)
	}
	d.Unwrap(wrapper)
	if got := r.Text(); got != "brave new" {
		t.Errorf("Text after unwrap: got %q", got)
	}
	if r.End.Node != tail || r.End.Offset != 4 {
		t.Errorf("End after merge: got (%q,%d), want rebased onto original node", r.End.Node.Data, r.End.Offset)
	}
	if n := len(TextNodes(Body(d.Root))); n != 4 {
		t.Errorf("text nodes after merge: got %d, want 4", n)
	}
}

func TestWrapperTransparentToPaths(t *testing.T) {
	d := parse(t, `<html><body><div><span class="k" data-anchor-highlight="x"><b>one</b></span><b>two</b></div></body></html>`)
	body := Body(d.Root)
	two := Elements(body, "b")[1]
	path, _ := ElementPath(body, two)
	if path != "div:nth-of-type(1) > b:nth-of-type(2)" {
		t.Errorf("path: got %q", path)
	}
}

func TestNormalizeSpace_Idempotent(t *testing.T) {
	inputs := []string{"  a \t b\n\nc  ", "x", "", " lead and em space", "already normal"}
	for _, in := range inputs {
		once := NormalizeSpace(in)
		if twice := NormalizeSpace(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if got := NormalizeSpace("  a \t b\n\nc  "); got != "a b c" {
		t.Errorf("NormalizeSpace: got %q", got)
	}
}

func TestNormalizeRunes_Map(t *testing.T) {
	raw := []rune("  ab   cd ")
	norm, idx := NormalizeRunes(raw)
	if string(norm) != "ab cd" {
		t.Fatalf("norm: got %q", string(norm))
	}
	if idx[0] != 2 || idx[3] != 7 {
		t.Errorf("idx: got %v", idx)
	}
	if idx[len(norm)] != 9 {
		t.Errorf("end sentinel: got %d, want 9", idx[len(norm)])
	}
}

func TestParse_Sanitize(t *testing.T) {
	d, err := ParseString(`<p id="keep" data-anchor-id="k1" onclick="x()">text<script>alert(1)</script></p>`, WithSanitize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := d.HTML()
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Errorf("sanitised output still has active content: %s", out)
	}
	if FindByID(d.Root, "keep") == nil {
		t.Error("id attribute should survive sanitising")
	}
	if FindByAttr(d.Root, "data-anchor-id", "k1") == nil {
		t.Error("data attributes should survive sanitising")
	}
}

func TestFragment(t *testing.T) {
	d := parse(t, sample)
	ti := NewTextIndex(Body(d.Root))
	r, _ := ti.Range(3, 15)
	got := RenderNode(r.Fragment())
	want := "<div>lo <em>brave</em> new</div>"
	if got != want {
		t.Errorf("Fragment: got %q, want %q", got, want)
	}
}
