package dom

import (
	"bytes"
	"fmt"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Document owns a parsed tree and the live ranges that must survive the
// text splits and merges performed by the structural renderer. Ranges
// registered with Track are kept valid the way a browser keeps live DOM
// ranges valid across Text.splitText and Node.normalize. Tracked ranges must
// use text-node boundary points.
//
// A Document is not safe for concurrent use; the engine serialises access.
type Document struct {
	Root   *html.Node
	ranges map[*Range]struct{}
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	policy *bluemonday.Policy
}

// WithSanitize strips active content from untrusted markup before parsing,
// keeping the class, id and data-* attributes anchors rely on.
func WithSanitize() ParseOption {
	return func(c *parseConfig) { c.policy = SanitizePolicy() }
}

// WithPolicy sanitises with a caller-supplied bluemonday policy.
func WithPolicy(p *bluemonday.Policy) ParseOption {
	return func(c *parseConfig) { c.policy = p }
}

// SanitizePolicy is the default policy used by WithSanitize.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id", "title", "lang", "dir").Globally()
	p.AllowDataAttributes()
	p.AllowElements("article", "section", "main", "header", "footer", "aside", "nav", "figure", "figcaption", "mark")
	return p
}

// Parse reads HTML and returns a Document.
func Parse(r io.Reader, opts ...ParseOption) (*Document, error) {
	var cfg parseConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.policy != nil {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("dom: read: %w", err)
		}
		r = bytes.NewReader(cfg.policy.SanitizeBytes(raw))
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse HTML: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...ParseOption) (*Document, error) {
	return Parse(bytes.NewReader([]byte(s)), opts...)
}

// NewDocument wraps an existing tree.
func NewDocument(root *html.Node) *Document {
	return &Document{Root: root, ranges: make(map[*Range]struct{})}
}

// Track registers a live range.
func (d *Document) Track(r *Range) {
	d.ranges[r] = struct{}{}
}

// Untrack forgets a live range.
func (d *Document) Untrack(r *Range) {
	delete(d.ranges, r)
}

// Tracked reports how many ranges are live.
func (d *Document) Tracked() int {
	return len(d.ranges)
}

// SplitText splits text node t at rune offset off. The original node keeps
// [0, off); the returned node holds the rest and is inserted after t.
// Tracked boundaries past off move into the new node.
func (d *Document) SplitText(t *html.Node, off int) *html.Node {
	n := RuneLen(t.Data)
	if off <= 0 || off >= n {
		return nil
	}
	rest := &html.Node{Type: html.TextNode, Data: RuneSlice(t.Data, off, n)}
	t.Data = RuneSlice(t.Data, 0, off)
	t.Parent.InsertBefore(rest, t.NextSibling)

	for r := range d.ranges {
		movePoint(&r.Start, t, off, rest)
		movePoint(&r.End, t, off, rest)
	}
	return rest
}

func movePoint(p *Point, t *html.Node, off int, rest *html.Node) {
	if p.Node == t && p.Offset > off {
		p.Node = rest
		p.Offset -= off
	}
}

// Wrap inserts el in place of n and moves n inside it.
func (d *Document) Wrap(n, el *html.Node) {
	n.Parent.InsertBefore(el, n)
	n.Parent.RemoveChild(n)
	el.AppendChild(n)
}

// Unwrap replaces el by its children and merges the text nodes that end up
// adjacent.
func (d *Document) Unwrap(el *html.Node) {
	parent := el.Parent
	if parent == nil {
		return
	}
	for c := el.FirstChild; c != nil; c = el.FirstChild {
		el.RemoveChild(c)
		parent.InsertBefore(c, el)
	}
	parent.RemoveChild(el)
	d.MergeText(parent)
}

// MergeText joins adjacent text children of parent. Tracked boundaries in a
// merged node are rebased onto the surviving node.
func (d *Document) MergeText(parent *html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.TextNode || next == nil || next.Type != html.TextNode {
			c = next
			continue
		}
		shift := RuneLen(c.Data)
		c.Data += next.Data
		for r := range d.ranges {
			rebase(&r.Start, next, c, shift)
			rebase(&r.End, next, c, shift)
		}
		parent.RemoveChild(next)
	}
}

func rebase(p *Point, from, to *html.Node, shift int) {
	if p.Node == from {
		p.Node = to
		p.Offset += shift
	}
}

// Render writes the tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// HTML renders the tree to a string.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	html.Render(&buf, d.Root)
	return buf.String()
}

// RenderNode serialises a node subtree back to a string.
func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}
