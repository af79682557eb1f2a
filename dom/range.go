package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Point is a boundary point: a container node and an offset. For text nodes
// the offset counts runes; for elements it is a child index.
type Point struct {
	Node   *html.Node
	Offset int
}

// Range is a live selection over the current tree. Start never follows End;
// Backward records that the user dragged from End to Start.
type Range struct {
	Start    Point
	End      Point
	Backward bool
}

// NewRange orders two boundary points into a Range.
func NewRange(a, b Point) *Range {
	if ComparePoints(a, b) > 0 {
		return &Range{Start: b, End: a, Backward: true}
	}
	return &Range{Start: a, End: b}
}

// Clone returns an independent copy.
func (r *Range) Clone() *Range {
	c := *r
	return &c
}

// Collapsed returns true if start and end are the same point.
func (r *Range) Collapsed() bool {
	return ComparePoints(r.Start, r.End) == 0
}

// CommonAncestor returns the deepest node containing both boundaries.
func (r *Range) CommonAncestor() *html.Node {
	return CommonAncestor(r.Start.Node, r.End.Node)
}

// ContainsPoint reports whether p lies in [Start, End).
func (r *Range) ContainsPoint(p Point) bool {
	return ComparePoints(r.Start, p) <= 0 && ComparePoints(p, r.End) < 0
}

// Intersects reports a non-empty intersection. Ranges that merely touch do
// not intersect.
func (r *Range) Intersects(o *Range) bool {
	return ComparePoints(r.Start, o.End) < 0 && ComparePoints(o.Start, r.End) < 0
}

// Run is the part of one text node covered by a range.
type Run struct {
	Node       *html.Node
	Start, End int
}

// Runs returns the covered part of every text node in the range, in
// document order. Empty runs are skipped.
func (r *Range) Runs() []Run {
	ca := r.CommonAncestor()
	if ca == nil {
		return nil
	}
	var out []Run
	for _, t := range TextNodes(ca) {
		n := RuneLen(t.Data)
		if ComparePoints(Point{t, n}, r.Start) <= 0 {
			continue
		}
		if ComparePoints(Point{t, 0}, r.End) >= 0 {
			break
		}
		s, e := 0, n
		if t == r.Start.Node {
			s = r.Start.Offset
		}
		if t == r.End.Node {
			e = r.End.Offset
		}
		if e > s {
			out = append(out, Run{Node: t, Start: s, End: e})
		}
	}
	return out
}

// Text extracts the text covered by the range.
func (r *Range) Text() string {
	var sb strings.Builder
	for _, run := range r.Runs() {
		sb.WriteString(RuneSlice(run.Node.Data, run.Start, run.End))
	}
	return sb.String()
}

// ComparePoints orders two boundary points in document order: -1 when a is
// before b, 0 when equal, 1 when after.
func ComparePoints(a, b Point) int {
	if a.Node == b.Node {
		return cmpInt(a.Offset, b.Offset)
	}
	if Contains(a.Node, b.Node) {
		c := childContaining(a.Node, b.Node)
		if childIndex(c) < a.Offset {
			return 1
		}
		return -1
	}
	if Contains(b.Node, a.Node) {
		return -ComparePoints(b, a)
	}
	return compareNodes(a.Node, b.Node)
}

// compareNodes orders two distinct, non-nested nodes by tree position.
func compareNodes(a, b *html.Node) int {
	pa, pb := ancestors(a), ancestors(b)
	i := 0
	for i < len(pa) && i < len(pb) && pa[i] == pb[i] {
		i++
	}
	if i == len(pa) || i == len(pb) {
		// One contains the other; callers handle that before.
		return cmpInt(len(pa), len(pb))
	}
	for s := pa[i]; s != nil; s = s.NextSibling {
		if s == pb[i] {
			return -1
		}
	}
	return 1
}

// ancestors returns the chain from the tree root down to n, inclusive.
func ancestors(n *html.Node) []*html.Node {
	var chain []*html.Node
	for c := n; c != nil; c = c.Parent {
		chain = append(chain, c)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// CommonAncestor returns the deepest node that contains both a and b.
func CommonAncestor(a, b *html.Node) *html.Node {
	if a == nil || b == nil {
		return nil
	}
	pa, pb := ancestors(a), ancestors(b)
	var last *html.Node
	for i := 0; i < len(pa) && i < len(pb) && pa[i] == pb[i]; i++ {
		last = pa[i]
	}
	return last
}

func childContaining(ancestor, n *html.Node) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if c.Parent == ancestor {
			return c
		}
	}
	return nil
}

func childIndex(n *html.Node) int {
	i := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		i++
	}
	return i
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// RuneLen counts the runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// RuneSlice returns s[start:end] with rune offsets, clamped to s.
func RuneSlice(s string, start, end int) string {
	b0, b1 := byteIndex(s, start), byteIndex(s, end)
	if b1 < b0 {
		return ""
	}
	return s[b0:b1]
}

// byteIndex converts a rune offset into a byte offset, clamped to len(s).
func byteIndex(s string, runeOff int) int {
	if runeOff <= 0 {
		return 0
	}
	i := 0
	for b := range s {
		if i == runeOff {
			return b
		}
		i++
	}
	return len(s)
}
