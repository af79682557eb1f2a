package serialize

import (
	"errors"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/dom"
)

const page = `<html><body><div id="root">` +
	`<p id="p1">The quick brown fox jumps over the lazy dog</p>` +
	`<p class="note">Second <em>para</em> here</p>` +
	`<section data-anchor-id="s1"><p>Stable custom anchor</p></section>` +
	`</div><p id="outside">Not in scope</p></body></html>`

func fixture(t *testing.T) (*dom.Document, *html.Node) {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.FindByID(doc.Root, "root")
	if root == nil {
		t.Fatal("root not found")
	}
	return doc, root
}

func span(t *testing.T, root *html.Node, start, end int) *dom.Range {
	t.Helper()
	r, err := dom.NewTextIndex(root).Range(start, end)
	if err != nil {
		t.Fatalf("range [%d,%d): %v", start, end, err)
	}
	return r
}

func TestCapture_Layers(t *testing.T) {
	_, root := fixture(t)
	d, err := Capture(root, span(t, root, 4, 15), Options{ID: "sel_1", Type: "highlight"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.Text != "quick brown" {
		t.Fatalf("text: got %q, want %q", d.Text, "quick brown")
	}
	a := d.Restore.Anchors
	if a.StartID != "p1" || a.EndID != "p1" || a.StartOffset != 4 || a.EndOffset != 15 {
		t.Errorf("anchors: got %+v", a)
	}
	p := d.Restore.Paths
	if p.StartPath != "p:nth-of-type(1)" || p.StartTextOffset != 4 || p.EndTextOffset != 15 {
		t.Errorf("paths: got %+v", p)
	}
	m := d.Restore.MultipleAnchors
	if m.StartAnchors.ID != "p1" || m.SiblingInfo.Index != 0 || m.SiblingInfo.Total != 2 {
		t.Errorf("multipleAnchors: got %+v", m)
	}
	if m.SiblingInfo.TagPattern != "p,p,section" {
		t.Errorf("tagPattern: got %q", m.SiblingInfo.TagPattern)
	}
	fp := d.Restore.Fingerprint
	if fp.TagName != "p" || fp.TextLength != 43 || fp.Depth != 0 {
		t.Errorf("fingerprint: got %+v", fp)
	}
	if len(fp.ParentChain) != 1 || fp.ParentChain[0].ID != "root" {
		t.Errorf("parentChain: got %+v", fp.ParentChain)
	}
	if fp.SiblingPattern.Position != 0 || len(fp.SiblingPattern.AfterTags) != 2 {
		t.Errorf("siblingPattern: got %+v", fp.SiblingPattern)
	}
	c := d.Restore.Context
	if c.PrecedingText != "The " {
		t.Errorf("precedingText: got %q", c.PrecedingText)
	}
	if c.ParentText != "The quick brown fox jumps over the lazy dog" {
		t.Errorf("parentText: got %q", c.ParentText)
	}
	if c.TextPosition != (descriptor.TextPosition{Start: 4, End: 15, TotalLength: 43}) {
		t.Errorf("textPosition: got %+v", c.TextPosition)
	}

	raw, err := d.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := descriptor.Validate(raw); err != nil {
		t.Errorf("captured descriptor fails schema: %v", err)
	}
}

func TestCapture_AcrossElements(t *testing.T) {
	_, root := fixture(t)
	// "Second para here" starts at 43; select "ond para".
	d, err := Capture(root, span(t, root, 46, 54), Options{ID: "sel_2"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.Text != "ond para" {
		t.Fatalf("text: got %q", d.Text)
	}
	p := d.Restore.Paths
	if p.StartPath != "p.note:nth-of-type(2)" || p.EndPath != "p.note:nth-of-type(2) > em:nth-of-type(1)" {
		t.Errorf("paths: got %+v", p)
	}
	if p.EndOffset != 4 || p.EndTextOffset != 4 || p.StartTextOffset != 3 {
		t.Errorf("offsets: got %+v", p)
	}
	if d.Restore.MultipleAnchors.CommonParent != "p.note:nth-of-type(2)" {
		t.Errorf("commonParent: got %q", d.Restore.MultipleAnchors.CommonParent)
	}
	if d.Restore.Anchors.StartID != "root" || d.Restore.Anchors.StartOffset != 46 {
		t.Errorf("anchors fall back to the id'd root: got %+v", d.Restore.Anchors)
	}
}

func TestCapture_CustomID(t *testing.T) {
	_, root := fixture(t)
	// "Stable custom anchor" starts at 59.
	d, err := Capture(root, span(t, root, 59, 65), Options{ID: "sel_3", CustomIDAttr: "data-anchor-id"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	a := d.Restore.Anchors
	if a.StartCustomID != "s1" || a.StartID != "" || a.StartOffset != 0 || a.EndOffset != 6 {
		t.Errorf("anchors: got %+v", a)
	}
}

func TestCapture_Errors(t *testing.T) {
	doc, root := fixture(t)
	collapsed := span(t, root, 4, 15)
	collapsed.End = collapsed.Start

	_, err := Capture(root, collapsed, Options{})
	var empty *descriptor.EmptySelectionError
	if !errors.As(err, &empty) {
		t.Errorf("collapsed: got %v, want EmptySelectionError", err)
	}

	outside := dom.FindByID(doc.Root, "outside")
	rng := &dom.Range{
		Start: dom.Point{Node: outside.FirstChild, Offset: 0},
		End:   dom.Point{Node: outside.FirstChild, Offset: 3},
	}
	_, err = Capture(root, rng, Options{})
	var scope *descriptor.OutOfScopeError
	if !errors.As(err, &scope) || scope.Boundary != "start" {
		t.Errorf("outside: got %v, want OutOfScopeError{start}", err)
	}
}

func TestCapture_GeneratesID(t *testing.T) {
	_, root := fixture(t)
	d, err := Capture(root, span(t, root, 0, 3), Options{})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(d.ID) < len("sel_") || d.ID[:4] != "sel_" {
		t.Errorf("id: got %q", d.ID)
	}
}

func TestCapture_IgnoresWrappers(t *testing.T) {
	doc, root := fixture(t)
	// Wrap "brown" the way the structural renderer does, then capture "quick".
	p1 := dom.FindByID(root, "p1")
	rest := doc.SplitText(p1.FirstChild, 10)
	doc.SplitText(rest, 5)
	w := &html.Node{Type: html.ElementNode, Data: "span", Attr: []html.Attribute{{Key: dom.HighlightAttr, Val: "x"}}}
	doc.Wrap(rest, w)

	d, err := Capture(root, span(t, root, 10, 15), Options{ID: "sel_4"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.Text != "brown" {
		t.Fatalf("text: got %q", d.Text)
	}
	if d.Restore.Paths.StartPath != "p:nth-of-type(1)" || d.Restore.Paths.StartTextOffset != 10 {
		t.Errorf("paths through wrapper: got %+v", d.Restore.Paths)
	}
	if d.Restore.Fingerprint.TagName != "p" {
		t.Errorf("fingerprint through wrapper: got %+v", d.Restore.Fingerprint)
	}
}
