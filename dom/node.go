// Package dom provides the document-tree primitives the anchoring engine is
// built on: boundary points and ranges over golang.org/x/net/html trees,
// flattened text indexes, structural paths and range-preserving mutations.
//
// All text offsets are counted in runes over raw text-node data. Nothing is
// trimmed or collapsed: the offsets a range reports are the offsets a later
// lookup will find.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HighlightAttr marks wrapper elements inserted by the structural renderer.
// Wrappers are transparent to paths, sibling counts and element shapes.
const HighlightAttr = "data-anchor-highlight"

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// ClassName returns the class attribute with whitespace runs collapsed.
func ClassName(n *html.Node) string {
	return strings.Join(strings.Fields(Attr(n, "class")), " ")
}

// IsElement reports whether n is a non-wrapper element.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && !IsWrapper(n)
}

// IsWrapper reports whether n is a highlight wrapper.
func IsWrapper(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasAttr(n, HighlightAttr)
}

// IsText reports whether n is a text node.
func IsText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode
}

// hidden returns true for subtrees whose text is never visible.
func hidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	return false
}

// IsBlock reports whether an element starts a block formatting context.
func IsBlock(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Section, atom.Article,
		atom.Main, atom.Blockquote, atom.Pre, atom.Td, atom.Th, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Body,
		atom.Dd, atom.Dt, atom.Figcaption, atom.Header, atom.Footer, atom.Aside,
		atom.Nav, atom.Details, atom.Summary:
		return true
	}
	return false
}

// Contains reports whether n is ancestor or self.
func Contains(ancestor, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

// ParentElement returns the nearest ancestor that is a non-wrapper element.
func ParentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if IsElement(p) {
			return p
		}
	}
	return nil
}

// ElementOf returns n itself when it is an element, its parent element otherwise.
func ElementOf(n *html.Node) *html.Node {
	if IsElement(n) {
		return n
	}
	return ParentElement(n)
}

// TextNodes returns the visible text nodes under n in document order.
func TextNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			out = append(out, c)
			return
		}
		if hidden(c) {
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return out
}

// TextContent concatenates the visible text under n without any trimming.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for _, t := range TextNodes(n) {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

// ElementChildren returns the element children of n, looking through
// highlight wrappers.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case IsWrapper(c):
			out = append(out, ElementChildren(c)...)
		case c.Type == html.ElementNode:
			out = append(out, c)
		}
	}
	return out
}

// Elements returns every non-wrapper element under root (inclusive) in
// document order. A non-empty tag restricts the result.
func Elements(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsElement(n) && (tag == "" || n.Data == tag) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// FindByAttr returns the first element under root whose attribute equals val.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	if val == "" {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if IsElement(n) && Attr(n, key) == val {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

// FindByID returns the first element under root with the given id.
func FindByID(root *html.Node, id string) *html.Node {
	return FindByAttr(root, "id", id)
}

// ClosestWithAttr walks from n outward (inclusive) to the first element that
// carries key, stopping at root.
func ClosestWithAttr(root, n *html.Node, key string) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if IsElement(c) && Attr(c, key) != "" {
			return c
		}
		if c == root {
			break
		}
	}
	return nil
}

// Depth counts the element ancestors of n below root.
func Depth(root, n *html.Node) int {
	d := 0
	for p := ParentElement(n); p != nil && p != root; p = ParentElement(p) {
		d++
	}
	return d
}

// Body returns the <body> element of a parsed document, or doc itself.
func Body(doc *html.Node) *html.Node {
	for _, n := range Elements(doc, "body") {
		return n
	}
	return doc
}
