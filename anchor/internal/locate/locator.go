// Package locate relocates a Descriptor in the current tree by running its
// layers from the most precise to the fuzziest. The first layer that yields
// a range whose text checks out wins; fuzzier layers are never consulted
// after a success.
package locate

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/anchor/internal/serialize"
	"github.com/hazyhaar/textanchor/dom"
)

// Layer names a locating strategy.
type Layer string

const (
	LayerAnchors         Layer = "anchors"
	LayerPaths           Layer = "paths"
	LayerMultipleAnchors Layer = "multipleAnchors"
	LayerFingerprint     Layer = "fingerprint"
	LayerContext         Layer = "context"
)

// Order is the fixed priority of the layers.
var Order = []Layer{LayerAnchors, LayerPaths, LayerMultipleAnchors, LayerFingerprint, LayerContext}

// Observer is told about every layer attempt and whether it resolved.
type Observer func(id string, layer Layer, ok bool)

// DefaultThreshold is the minimum fingerprint score a candidate needs.
const DefaultThreshold = 50

// Options configures a Locator.
type Options struct {
	CustomIDAttr string
	Threshold    float64
	Observer     Observer
	Logger       *slog.Logger
}

// Locator runs the layer cascade. It holds no per-call state.
type Locator struct {
	customAttr string
	threshold  float64
	observer   Observer
	logger     *slog.Logger
}

// New creates a Locator.
func New(opts Options) *Locator {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Locator{
		customAttr: opts.CustomIDAttr,
		threshold:  opts.Threshold,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}
}

// LocateOptions carries per-call hints.
type LocateOptions struct {
	// Hint is a flattened-text offset near which the selection is expected.
	Hint    int
	HasHint bool
}

// Locate resolves d under root.
func (l *Locator) Locate(root *html.Node, d *descriptor.Descriptor, opts LocateOptions) (*dom.Range, Layer, error) {
	if d == nil || d.Text == "" {
		return nil, "", &descriptor.EmptySelectionError{}
	}
	a := &attempt{
		l:    l,
		root: root,
		ti:   dom.NewTextIndex(root),
		d:    d,
		text: []rune(d.Text),
		opts: opts,
	}
	var tried []string
	for _, layer := range Order {
		if !a.has(layer) {
			continue
		}
		tried = append(tried, string(layer))
		rng := a.run(layer)
		if l.observer != nil {
			l.observer(d.ID, layer, rng != nil)
		}
		if rng != nil {
			return rng, layer, nil
		}
		l.logger.Debug("locate: layer failed", "selection_id", d.ID, "layer", layer)
	}
	return nil, "", &descriptor.UnresolvableSelectionError{ID: d.ID, Attempted: tried}
}

// attempt is the state of one Locate call.
type attempt struct {
	l    *Locator
	root *html.Node
	ti   *dom.TextIndex
	d    *descriptor.Descriptor
	text []rune
	opts LocateOptions
}

func (a *attempt) has(layer Layer) bool {
	r := a.d.Restore
	switch layer {
	case LayerAnchors:
		return r.Anchors != nil
	case LayerPaths:
		return r.Paths != nil
	case LayerMultipleAnchors:
		return r.MultipleAnchors != nil
	case LayerFingerprint:
		return r.Fingerprint != nil
	case LayerContext:
		return r.Context != nil
	}
	return false
}

func (a *attempt) run(layer Layer) *dom.Range {
	switch layer {
	case LayerAnchors:
		return a.anchors()
	case LayerPaths:
		return a.paths()
	case LayerMultipleAnchors:
		return a.multipleAnchors()
	case LayerFingerprint:
		return a.fingerprint()
	case LayerContext:
		return a.context()
	}
	return nil
}

// exact builds the range [s, e) and keeps it only when its text equals the
// captured text.
func (a *attempt) exact(s, e int) *dom.Range {
	if s < 0 || e > a.ti.Len() || e-s != len(a.text) {
		return nil
	}
	if a.ti.Slice(s, e) != a.d.Text {
		return nil
	}
	rng, err := a.ti.Range(s, e)
	if err != nil {
		return nil
	}
	return rng
}

// bounds returns the flattened span of el's text.
func (a *attempt) bounds(el *html.Node) (int, int, bool) {
	start, ok := a.ti.ElementStart(el)
	if !ok {
		return 0, 0, false
	}
	return start, start + dom.RuneLen(dom.TextContent(el)), true
}

// relative maps an offset inside el's text to a flattened offset.
func (a *attempt) relative(el *html.Node, off int) (int, bool) {
	start, end, ok := a.bounds(el)
	if !ok || off < 0 || start+off > end {
		return 0, false
	}
	return start + off, true
}

func (a *attempt) anchors() *dom.Range {
	an := a.d.Restore.Anchors
	sc := a.anchorElement(an.StartID, an.StartCustomID)
	ec := a.anchorElement(an.EndID, an.EndCustomID)
	if sc == nil || ec == nil {
		return nil
	}
	s, ok1 := a.relative(sc, an.StartOffset)
	e, ok2 := a.relative(ec, an.EndOffset)
	if !ok1 || !ok2 {
		return nil
	}
	return a.exact(s, e)
}

// anchorElement prefers the host's custom id over the element id.
func (a *attempt) anchorElement(id, custom string) *html.Node {
	if custom != "" && a.l.customAttr != "" {
		if el := dom.FindByAttr(a.root, a.l.customAttr, custom); el != nil {
			return el
		}
	}
	if id == "" {
		return nil
	}
	if dom.Attr(a.root, "id") == id {
		return a.root
	}
	return dom.FindByID(a.root, id)
}

func (a *attempt) paths() *dom.Range {
	p := a.d.Restore.Paths
	se := dom.ResolvePath(a.root, p.StartPath)
	ee := dom.ResolvePath(a.root, p.EndPath)
	if se == nil || ee == nil {
		return nil
	}
	s, ok1 := a.relative(se, p.StartTextOffset)
	e, ok2 := a.relative(ee, p.EndTextOffset)
	if ok1 && ok2 {
		if rng := a.exact(s, e); rng != nil {
			return rng
		}
	}
	// DOM-offset variant: the offsets index a direct text child.
	for _, st := range ownText(se) {
		s, ok := a.ti.OffsetOf(dom.Point{Node: st, Offset: p.StartOffset})
		if !ok {
			continue
		}
		for _, et := range ownText(ee) {
			e, ok := a.ti.OffsetOf(dom.Point{Node: et, Offset: p.EndOffset})
			if !ok {
				continue
			}
			if rng := a.exact(s, e); rng != nil {
				return rng
			}
		}
	}
	return nil
}

// ownText returns the text nodes whose logical parent element is el.
func ownText(el *html.Node) []*html.Node {
	var out []*html.Node
	for _, t := range dom.TextNodes(el) {
		if dom.ElementOf(t) == el {
			out = append(out, t)
		}
	}
	return out
}

func (a *attempt) multipleAnchors() *dom.Range {
	m := a.d.Restore.MultipleAnchors
	scope := dom.ResolvePath(a.root, m.CommonParent)
	if scope == nil {
		scope = a.root
	}
	starts := matchShape(scope, m.StartAnchors)
	ends := matchShape(scope, m.EndAnchors)
	if len(starts) == 0 || len(ends) == 0 {
		return nil
	}
	preferSibling(starts, m.SiblingInfo)

	relStart := -1
	if p := a.d.Restore.Paths; p != nil {
		relStart = p.StartTextOffset
	}
	occ := a.ti.IndexAll(a.text)
	for _, el := range starts {
		lo, hi, ok := a.bounds(el)
		if !ok {
			continue
		}
		pick := -1
		for _, o := range occ {
			if o < lo || o >= hi || !a.endsIn(ends, o+len(a.text)) {
				continue
			}
			if pick < 0 {
				pick = o
			}
			if o-lo == relStart {
				pick = o
				break
			}
		}
		if pick >= 0 {
			if rng := a.exact(pick, pick+len(a.text)); rng != nil {
				return rng
			}
		}
	}
	return nil
}

func (a *attempt) endsIn(ends []*html.Node, off int) bool {
	for _, ee := range ends {
		s, e, ok := a.bounds(ee)
		if ok && off > s && off <= e {
			return true
		}
	}
	return false
}

// matchShape returns the elements under scope (inclusive) whose shape
// equals want, in document order.
func matchShape(scope *html.Node, want descriptor.ElementShape) []*html.Node {
	var out []*html.Node
	for _, el := range dom.Elements(scope, want.TagName) {
		if dom.ClassName(el) != want.ClassName || dom.Attr(el, "id") != want.ID {
			continue
		}
		if !sameAttributes(serialize.Attributes(el), want.Attributes) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// preferSibling moves the candidate sitting at the recorded same-tag
// position to the front, keeping document order otherwise.
func preferSibling(els []*html.Node, info descriptor.SiblingInfo) {
	for i, el := range els {
		idx, total := dom.NthOfType(el)
		if idx-1 == info.Index && total == info.Total {
			copy(els[1:i+1], els[:i])
			els[0] = el
			return
		}
	}
}
