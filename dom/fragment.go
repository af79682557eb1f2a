package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment clones the part of the tree covered by r into a detached <div>.
// Partially covered text nodes are cut at the boundaries; elements are kept
// only when they hold covered text. Highlight wrappers are dropped.
func (r *Range) Fragment() *html.Node {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	ca := r.CommonAncestor()
	if ca == nil {
		return root
	}
	runs := make(map[*html.Node]Run)
	keep := make(map[*html.Node]bool)
	for _, run := range r.Runs() {
		runs[run.Node] = run
		for n := run.Node; n != nil && n != ca; n = n.Parent {
			keep[n] = true
		}
	}

	var clone func(dst, src *html.Node)
	clone = func(dst, src *html.Node) {
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			if !keep[c] {
				continue
			}
			switch {
			case c.Type == html.TextNode:
				run := runs[c]
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: RuneSlice(c.Data, run.Start, run.End)})
			case IsWrapper(c):
				clone(dst, c)
			default:
				el := &html.Node{Type: c.Type, Data: c.Data, DataAtom: c.DataAtom, Namespace: c.Namespace}
				el.Attr = append([]html.Attribute(nil), c.Attr...)
				dst.AppendChild(el)
				clone(el, c)
			}
		}
	}

	if ca.Type == html.TextNode {
		run := runs[ca]
		root.AppendChild(&html.Node{Type: html.TextNode, Data: RuneSlice(ca.Data, run.Start, run.End)})
		return root
	}
	clone(root, ca)
	return root
}
