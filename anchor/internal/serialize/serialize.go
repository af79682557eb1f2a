// Package serialize captures a live range into a Descriptor carrying every
// locating layer at once.
package serialize

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/dom"
	"github.com/hazyhaar/textanchor/idgen"
)

// DefaultContextWindow is the length, in runes, of the preceding and
// following context windows.
const DefaultContextWindow = 50

// MaxParentChain caps the number of ancestor levels kept in a fingerprint.
const MaxParentChain = 10

// Options tunes a capture.
type Options struct {
	ID            string          // explicit id; NewID is used when empty
	NewID         idgen.Generator // defaults to idgen.Selection
	Type          string
	CustomIDAttr  string // host-supplied stable id attribute, e.g. "data-anchor-id"
	ContextWindow int
}

// Capture serialises rng, which must lie inside root.
func Capture(root *html.Node, rng *dom.Range, opts Options) (*descriptor.Descriptor, error) {
	if rng == nil || rng.Collapsed() {
		return nil, &descriptor.EmptySelectionError{}
	}
	if !dom.Contains(root, rng.Start.Node) {
		return nil, &descriptor.OutOfScopeError{Boundary: "start"}
	}
	if !dom.Contains(root, rng.End.Node) {
		return nil, &descriptor.OutOfScopeError{Boundary: "end"}
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}

	ti := dom.NewTextIndex(root)
	s, ok1 := ti.Locate(rng.Start)
	e, ok2 := ti.Locate(rng.End)
	if !ok1 || !ok2 || s >= e {
		return nil, &descriptor.EmptySelectionError{}
	}
	canon, err := ti.Range(s, e)
	if err != nil {
		return nil, &descriptor.EmptySelectionError{}
	}
	text := canon.Text()
	if text == "" {
		return nil, &descriptor.EmptySelectionError{}
	}

	id := opts.ID
	if id == "" {
		gen := opts.NewID
		if gen == nil {
			gen = idgen.Selection
		}
		id = gen()
	}

	c := &capture{root: root, ti: ti, rng: canon, start: s, end: e, opts: opts}
	return &descriptor.Descriptor{
		ID:   id,
		Text: text,
		Type: opts.Type,
		Restore: descriptor.Restore{
			Anchors:         c.anchors(),
			Paths:           c.paths(),
			MultipleAnchors: c.multipleAnchors(),
			Fingerprint:     c.fingerprint(),
			Context:         c.context(),
		},
	}, nil
}

type capture struct {
	root       *html.Node
	ti         *dom.TextIndex
	rng        *dom.Range
	start, end int
	opts       Options
}

// inRoot clamps an element to the capture root.
func (c *capture) inRoot(el *html.Node) *html.Node {
	if el == nil || !dom.Contains(c.root, el) {
		return c.root
	}
	return el
}

func (c *capture) startElement() *html.Node { return c.inRoot(dom.ElementOf(c.rng.Start.Node)) }
func (c *capture) endElement() *html.Node   { return c.inRoot(dom.ElementOf(c.rng.End.Node)) }

// commonElement is the lowest element holding both boundaries.
func (c *capture) commonElement() *html.Node {
	return c.inRoot(dom.ElementOf(c.rng.CommonAncestor()))
}

// AnchorContainer returns the nearest element, from n outward to root, that
// carries an id or the custom id attribute.
func AnchorContainer(root, n *html.Node, customAttr string) *html.Node {
	for p := dom.ElementOf(n); p != nil; p = dom.ParentElement(p) {
		if dom.Attr(p, "id") != "" || (customAttr != "" && dom.Attr(p, customAttr) != "") {
			return p
		}
		if p == root {
			break
		}
	}
	return nil
}

func (c *capture) anchors() *descriptor.Anchors {
	a := &descriptor.Anchors{}
	sc := AnchorContainer(c.root, c.rng.Start.Node, c.opts.CustomIDAttr)
	ec := AnchorContainer(c.root, c.rng.End.Node, c.opts.CustomIDAttr)
	a.StartID, a.StartCustomID, a.StartOffset = c.anchorOf(sc, c.start)
	a.EndID, a.EndCustomID, a.EndOffset = c.anchorOf(ec, c.end)
	return a
}

func (c *capture) anchorOf(el *html.Node, off int) (id, custom string, rel int) {
	if el == nil {
		return "", "", off
	}
	base, _ := c.ti.ElementStart(el)
	if c.opts.CustomIDAttr != "" {
		custom = dom.Attr(el, c.opts.CustomIDAttr)
	}
	return dom.Attr(el, "id"), custom, off - base
}

func (c *capture) paths() *descriptor.Paths {
	se, ee := c.startElement(), c.endElement()
	sp, ok1 := dom.ElementPath(c.root, se)
	ep, ok2 := dom.ElementPath(c.root, ee)
	if !ok1 || !ok2 {
		return nil
	}
	sb, _ := c.ti.ElementStart(se)
	eb, _ := c.ti.ElementStart(ee)
	return &descriptor.Paths{
		StartPath:       sp,
		EndPath:         ep,
		StartOffset:     c.rng.Start.Offset,
		EndOffset:       c.rng.End.Offset,
		StartTextOffset: c.start - sb,
		EndTextOffset:   c.end - eb,
	}
}

func (c *capture) multipleAnchors() *descriptor.MultipleAnchors {
	se, ee := c.startElement(), c.endElement()
	common, ok := dom.ElementPath(c.root, c.commonElement())
	if !ok || !dom.IsElement(se) || !dom.IsElement(ee) {
		return nil
	}
	idx, total := dom.NthOfType(se)
	before, after := dom.SiblingTags(se)
	pattern := append(append(append([]string{}, before...), se.Data), after...)
	return &descriptor.MultipleAnchors{
		StartAnchors: Shape(se),
		EndAnchors:   Shape(ee),
		CommonParent: common,
		SiblingInfo: descriptor.SiblingInfo{
			Index:      idx - 1,
			Total:      total,
			TagPattern: strings.Join(pattern, ","),
		},
	}
}

func (c *capture) fingerprint() *descriptor.Fingerprint {
	el := c.commonElement()
	if !dom.IsElement(el) {
		return nil
	}
	fp := Fingerprint(c.root, el)
	return &fp
}

func (c *capture) context() *descriptor.Context {
	block := BlockOf(c.root, c.commonElement())
	parent := dom.TextContent(block)
	base, _ := c.ti.ElementStart(block)
	w := c.opts.ContextWindow
	return &descriptor.Context{
		PrecedingText: c.ti.Slice(c.start-w, c.start),
		FollowingText: c.ti.Slice(c.end, c.end+w),
		ParentText:    parent,
		TextPosition: descriptor.TextPosition{
			Start:       c.start - base,
			End:         c.end - base,
			TotalLength: dom.RuneLen(parent),
		},
	}
}

// BlockOf returns the nearest block-level element from el outward, or root.
func BlockOf(root, el *html.Node) *html.Node {
	for p := el; p != nil; p = dom.ParentElement(p) {
		if p == root {
			return root
		}
		if dom.IsBlock(p) {
			return p
		}
	}
	return root
}

// Shape snapshots an element's identity without referencing it.
func Shape(el *html.Node) descriptor.ElementShape {
	return descriptor.ElementShape{
		TagName:    el.Data,
		ClassName:  dom.ClassName(el),
		ID:         dom.Attr(el, "id"),
		Attributes: Attributes(el),
	}
}

// Attributes returns the attributes that identify an element, leaving out
// class, id, style and highlight wrapper markers.
func Attributes(el *html.Node) map[string]string {
	var out map[string]string
	for _, a := range el.Attr {
		switch a.Key {
		case "class", "id", "style", dom.HighlightAttr:
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[a.Key] = a.Val
	}
	return out
}

// Fingerprint computes the structural signature of el relative to root.
func Fingerprint(root, el *html.Node) descriptor.Fingerprint {
	pos, total := dom.SiblingPosition(el)
	before, after := dom.SiblingTags(el)
	return descriptor.Fingerprint{
		TagName:     el.Data,
		ClassName:   dom.ClassName(el),
		Attributes:  Attributes(el),
		TextLength:  dom.RuneLen(dom.TextContent(el)),
		ChildCount:  len(dom.ElementChildren(el)),
		Depth:       dom.Depth(root, el),
		ParentChain: Chain(root, el),
		SiblingPattern: descriptor.SiblingPattern{
			Position:   pos,
			Total:      total,
			BeforeTags: nonNil(before),
			AfterTags:  nonNil(after),
		},
	}
}

// Chain lists el's ancestors outward up to and including root.
func Chain(root, el *html.Node) []descriptor.ChainLink {
	chain := []descriptor.ChainLink{}
	if el == root {
		return chain
	}
	for p := dom.ParentElement(el); p != nil && len(chain) < MaxParentChain; p = dom.ParentElement(p) {
		chain = append(chain, descriptor.ChainLink{
			TagName:   p.Data,
			ClassName: dom.ClassName(p),
			ID:        dom.Attr(p, "id"),
		})
		if p == root {
			break
		}
	}
	return chain
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
