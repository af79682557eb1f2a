package locate

import (
	"math"
	"sort"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/anchor/internal/serialize"
	"github.com/hazyhaar/textanchor/dom"
)

// Fingerprint score weights.
const (
	weightClass      = 30
	weightAttributes = 20
	weightTextLength = 15
	weightChildCount = 10
	weightDepth      = 10
	weightChainLevel = 5
	weightPosition   = 10
	weightSiblings   = 10
)

// Candidate is an element scored against a fingerprint.
type Candidate struct {
	Node  *html.Node
	Score float64
}

// Score rates how well el matches fp.
func Score(root *html.Node, fp *descriptor.Fingerprint, el *html.Node) float64 {
	var score float64
	if dom.ClassName(el) == fp.ClassName {
		score += weightClass
	}
	if sameAttributes(serialize.Attributes(el), fp.Attributes) {
		score += weightAttributes
	}

	tl := dom.RuneLen(dom.TextContent(el))
	rel := math.Abs(float64(tl-fp.TextLength)) / math.Max(float64(fp.TextLength), 1)
	score += weightTextLength / (1 + rel)
	score += weightChildCount / (1 + math.Abs(float64(len(dom.ElementChildren(el))-fp.ChildCount)))
	score += weightDepth / (1 + math.Abs(float64(dom.Depth(root, el)-fp.Depth)))

	chain := serialize.Chain(root, el)
	for i := 0; i < len(chain) && i < len(fp.ParentChain); i++ {
		if chain[i] != fp.ParentChain[i] {
			break
		}
		score += weightChainLevel
	}

	pos, _ := dom.SiblingPosition(el)
	if pos == fp.SiblingPattern.Position {
		score += weightPosition
	}
	before, after := dom.SiblingTags(el)
	j := (jaccard(before, fp.SiblingPattern.BeforeTags) + jaccard(after, fp.SiblingPattern.AfterTags)) / 2
	score += weightSiblings * j
	return score
}

// Rank scores every element carrying fp's tag and returns those at or above
// threshold, best first. Equal scores keep document order.
func Rank(root *html.Node, fp *descriptor.Fingerprint, threshold float64) []Candidate {
	var out []Candidate
	for _, el := range dom.Elements(root, fp.TagName) {
		if s := Score(root, fp, el); s >= threshold {
			out = append(out, Candidate{Node: el, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (a *attempt) fingerprint() *dom.Range {
	fp := a.d.Restore.Fingerprint
	want := 0
	if c := a.d.Restore.Context; c != nil {
		want = c.TextPosition.Start
	}
	occ := a.ti.IndexAll(a.text)
	for _, c := range Rank(a.root, fp, a.l.threshold) {
		lo, hi, ok := a.bounds(c.Node)
		if !ok {
			continue
		}
		// TextPosition is relative to the enclosing block, not to the
		// fingerprinted element.
		base, ok := a.ti.ElementStart(serialize.BlockOf(a.root, c.Node))
		if !ok {
			base = lo
		}
		pick, dist := -1, 0
		for _, o := range occ {
			if o < lo || o+len(a.text) > hi {
				continue
			}
			d := abs(o - base - want)
			if pick < 0 || d < dist {
				pick, dist = o, d
			}
		}
		if pick >= 0 {
			a.l.logger.Debug("locate: fingerprint candidate", "selection_id", a.d.ID, "score", c.Score)
			return a.exact(pick, pick+len(a.text))
		}
	}
	return nil
}

func sameAttributes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// jaccard is |A∩B| / |A∪B| over tag multisets; two empty sets agree fully.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	count := make(map[string]int)
	for _, t := range a {
		count[t]++
	}
	inter := 0
	for _, t := range b {
		if count[t] > 0 {
			count[t]--
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
