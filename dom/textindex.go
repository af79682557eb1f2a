package dom

import (
	"fmt"

	"golang.org/x/net/html"
)

type segment struct {
	node       *html.Node
	start, end int
}

// TextIndex is the flattened visible text of a subtree with a mapping from
// flattened rune offsets back to text-node boundary points.
type TextIndex struct {
	Root  *html.Node
	runes []rune
	segs  []segment
}

// NewTextIndex flattens the visible text under root.
func NewTextIndex(root *html.Node) *TextIndex {
	ti := &TextIndex{Root: root}
	for _, t := range TextNodes(root) {
		rs := []rune(t.Data)
		start := len(ti.runes)
		ti.runes = append(ti.runes, rs...)
		ti.segs = append(ti.segs, segment{node: t, start: start, end: len(ti.runes)})
	}
	return ti
}

// Len is the flattened length in runes.
func (ti *TextIndex) Len() int { return len(ti.runes) }

// String returns the flattened text.
func (ti *TextIndex) String() string { return string(ti.runes) }

// Runes exposes the flattened text. Callers must not modify it.
func (ti *TextIndex) Runes() []rune { return ti.runes }

// Slice returns the flattened text in [start, end), clamped.
func (ti *TextIndex) Slice(start, end int) string {
	start = clamp(start, 0, len(ti.runes))
	end = clamp(end, start, len(ti.runes))
	return string(ti.runes[start:end])
}

// PointAt maps a flattened offset to a boundary point. At a seam between two
// text nodes an end boundary stays in the earlier node and a start boundary
// moves into the later one.
func (ti *TextIndex) PointAt(off int, isEnd bool) (Point, bool) {
	if off < 0 || off > len(ti.runes) || len(ti.segs) == 0 {
		return Point{}, false
	}
	var last *segment
	for i := range ti.segs {
		s := &ti.segs[i]
		if s.end == s.start {
			continue
		}
		last = s
		if isEnd {
			if off > s.start && off <= s.end {
				return Point{Node: s.node, Offset: off - s.start}, true
			}
			if off == 0 && s.start == 0 {
				return Point{Node: s.node, Offset: 0}, true
			}
		} else if off >= s.start && off < s.end {
			return Point{Node: s.node, Offset: off - s.start}, true
		}
	}
	if last != nil && off == last.end {
		return Point{Node: last.node, Offset: off - last.start}, true
	}
	return Point{}, false
}

// OffsetOf maps a text-node boundary point back to a flattened offset.
func (ti *TextIndex) OffsetOf(p Point) (int, bool) {
	for _, s := range ti.segs {
		if s.node == p.Node {
			if p.Offset < 0 || p.Offset > s.end-s.start {
				return 0, false
			}
			return s.start + p.Offset, true
		}
	}
	return 0, false
}

// Locate maps any boundary point under Root, element points included, to a
// flattened offset.
func (ti *TextIndex) Locate(p Point) (int, bool) {
	if p.Node == nil || !Contains(ti.Root, p.Node) {
		return 0, false
	}
	if p.Node.Type == html.TextNode {
		return ti.OffsetOf(p)
	}
	off := 0
	for _, s := range ti.segs {
		if ComparePoints(Point{s.node, s.end - s.start}, p) > 0 {
			break
		}
		off = s.end
	}
	return off, true
}

// ElementStart returns the flattened offset at which el's text begins.
func (ti *TextIndex) ElementStart(el *html.Node) (int, bool) {
	return ti.Locate(Point{Node: el, Offset: 0})
}

// Range builds a range over the flattened span [start, end).
func (ti *TextIndex) Range(start, end int) (*Range, error) {
	if start >= end {
		return nil, fmt.Errorf("dom: empty span [%d,%d)", start, end)
	}
	a, ok := ti.PointAt(start, false)
	if !ok {
		return nil, fmt.Errorf("dom: start offset %d out of bounds (len %d)", start, len(ti.runes))
	}
	b, ok := ti.PointAt(end, true)
	if !ok {
		return nil, fmt.Errorf("dom: end offset %d out of bounds (len %d)", end, len(ti.runes))
	}
	return &Range{Start: a, End: b}, nil
}

// Span maps a range back to flattened offsets. Both boundaries must sit in
// text nodes indexed here.
func (ti *TextIndex) Span(r *Range) (int, int, bool) {
	s, ok := ti.OffsetOf(r.Start)
	if !ok {
		return 0, 0, false
	}
	e, ok := ti.OffsetOf(r.End)
	if !ok {
		return 0, 0, false
	}
	return s, e, true
}

// IndexAll returns the start offsets of every occurrence of needle,
// overlapping occurrences included.
func (ti *TextIndex) IndexAll(needle []rune) []int {
	return IndexRunes(ti.runes, needle)
}

// IndexRunes returns every start offset of needle in hay.
func IndexRunes(hay, needle []rune) []int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return nil
	}
	var out []int
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if hay[i+j] != r {
				continue outer
			}
		}
		out = append(out, i)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
