package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// PathSeparator joins the steps of a structural path.
const PathSeparator = " > "

const nthPrefix = ":nth-of-type("

// ElementPath builds the structural path from root (exclusive) down to el,
// one "tag.class:nth-of-type(n)" step per element. The empty path is root.
func ElementPath(root, el *html.Node) (string, bool) {
	if el == nil || !Contains(root, el) {
		return "", false
	}
	var steps []string
	for n := el; n != nil && n != root; n = ParentElement(n) {
		if !IsElement(n) {
			break
		}
		steps = append(steps, Step(n))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, PathSeparator), true
}

// Step renders one path step for an element.
func Step(n *html.Node) string {
	var sb strings.Builder
	sb.WriteString(n.Data)
	for _, c := range pathClasses(n) {
		sb.WriteByte('.')
		sb.WriteString(c)
	}
	idx, _ := NthOfType(n)
	fmt.Fprintf(&sb, "%s%d)", nthPrefix, idx)
	return sb.String()
}

// ResolvePath follows a structural path from root. It returns nil when any
// step has no element at the recorded position or the classes disagree.
func ResolvePath(root *html.Node, path string) *html.Node {
	if root == nil {
		return nil
	}
	if path == "" {
		return root
	}
	cur := root
	for _, step := range strings.Split(path, PathSeparator) {
		tag, classes, nth, ok := parseStep(step)
		if !ok {
			return nil
		}
		var match *html.Node
		count := 0
		for _, c := range ElementChildren(cur) {
			if c.Data != tag {
				continue
			}
			count++
			if count == nth {
				match = c
				break
			}
		}
		if match == nil || !hasClasses(match, classes) {
			return nil
		}
		cur = match
	}
	return cur
}

// NthOfType returns the 1-based position of n among same-tag element
// siblings, and how many such siblings exist. Wrappers are looked through.
func NthOfType(n *html.Node) (int, int) {
	idx, total := 0, 0
	for _, s := range ElementChildren(logicalParent(n)) {
		if s.Data != n.Data {
			continue
		}
		total++
		if s == n {
			idx = total
		}
	}
	return idx, total
}

// SiblingTags returns the tags of n's element siblings before and after it.
func SiblingTags(n *html.Node) (before, after []string) {
	seen := false
	for _, s := range ElementChildren(logicalParent(n)) {
		switch {
		case s == n:
			seen = true
		case seen:
			after = append(after, s.Data)
		default:
			before = append(before, s.Data)
		}
	}
	return before, after
}

// SiblingPosition returns the 0-based index of n among its element siblings
// and their count.
func SiblingPosition(n *html.Node) (int, int) {
	sibs := ElementChildren(logicalParent(n))
	for i, s := range sibs {
		if s == n {
			return i, len(sibs)
		}
	}
	return -1, len(sibs)
}

func logicalParent(n *html.Node) *html.Node {
	p := n.Parent
	for p != nil && IsWrapper(p) {
		p = p.Parent
	}
	if p == nil {
		return n
	}
	return p
}

func pathClasses(n *html.Node) []string {
	var out []string
	for _, c := range strings.Fields(Attr(n, "class")) {
		if strings.ContainsAny(c, ".:>()") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasClasses(n *html.Node, classes []string) bool {
	have := make(map[string]bool)
	for _, c := range strings.Fields(Attr(n, "class")) {
		have[c] = true
	}
	for _, c := range classes {
		if !have[c] {
			return false
		}
	}
	return true
}

// parseStep parses "tag.a.b:nth-of-type(2)".
func parseStep(step string) (tag string, classes []string, nth int, ok bool) {
	idx := strings.LastIndex(step, nthPrefix)
	if idx < 0 || !strings.HasSuffix(step, ")") {
		return "", nil, 0, false
	}
	n, err := strconv.Atoi(step[idx+len(nthPrefix) : len(step)-1])
	if err != nil || n < 1 {
		return "", nil, 0, false
	}
	parts := strings.Split(step[:idx], ".")
	if parts[0] == "" {
		return "", nil, 0, false
	}
	return parts[0], parts[1:], n, true
}
