package highlight

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/textanchor/dom"
)

// WrapRenderer highlights by wrapping every covered text run in a span. The
// document keeps tracked ranges valid across the splits and merges.
type WrapRenderer struct {
	doc      *dom.Document
	wrappers map[string][]*html.Node
}

// NewWrapRenderer creates a renderer mutating doc.
func NewWrapRenderer(doc *dom.Document) *WrapRenderer {
	return &WrapRenderer{doc: doc, wrappers: make(map[string][]*html.Node)}
}

func (r *WrapRenderer) Name() string { return "wrap" }

func (r *WrapRenderer) Paint(id string, rng *dom.Range, style Style) error {
	runs := rng.Runs()
	if len(runs) == 0 {
		return errors.New("range covers no text")
	}
	var made []*html.Node
	for _, run := range runs {
		t := run.Node
		if !textAllowed(t) && strings.TrimFunc(dom.RuneSlice(t.Data, run.Start, run.End), unicode.IsSpace) == "" {
			continue
		}
		if run.Start > 0 {
			t = r.doc.SplitText(t, run.Start)
		}
		if n := run.End - run.Start; n < dom.RuneLen(t.Data) {
			r.doc.SplitText(t, n)
		}
		w := wrapper(id, style)
		r.doc.Wrap(t, w)
		made = append(made, w)
	}
	r.wrappers[id] = append(r.wrappers[id], made...)
	return nil
}

func (r *WrapRenderer) Unpaint(id string) {
	ws := r.wrappers[id]
	for i := len(ws) - 1; i >= 0; i-- {
		r.doc.Unwrap(ws[i])
	}
	delete(r.wrappers, id)
}

func (r *WrapRenderer) ClearAll() {
	for id := range r.wrappers {
		r.Unpaint(id)
	}
}

// Wrapped counts the wrapper spans inserted for id.
func (r *WrapRenderer) Wrapped(id string) int {
	return len(r.wrappers[id])
}

func wrapper(id string, style Style) *html.Node {
	attrs := []html.Attribute{
		{Key: "class", Val: style.ClassName},
		{Key: dom.HighlightAttr, Val: id},
	}
	if style.CSS != "" {
		attrs = append(attrs, html.Attribute{Key: "style", Val: style.CSS})
	}
	return &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span, Attr: attrs}
}

// textAllowed is false for containers whose text children are only
// inter-element white space.
func textAllowed(t *html.Node) bool {
	p := t.Parent
	for p != nil && dom.IsWrapper(p) {
		p = p.Parent
	}
	if p == nil || p.Type != html.ElementNode {
		return true
	}
	switch p.DataAtom {
	case atom.Table, atom.Tbody, atom.Thead, atom.Tfoot, atom.Tr, atom.Ul, atom.Ol, atom.Dl, atom.Select, atom.Colgroup:
		return false
	}
	return true
}
