package locate

import (
	"strings"

	"github.com/hazyhaar/textanchor/dom"
)

// contextMatch is one occurrence of the captured parent text in the tree.
type contextMatch struct {
	start, end int // raw flattened span of the parent text
	s, e       int // raw flattened span of the selection
	agreement  int
}

// context searches the captured parent text in the flattened text, exactly
// first and then on whitespace-normalised text, and positions the selection
// inside the occurrence that best fits the hint or the context windows.
func (a *attempt) context() *dom.Range {
	c := a.d.Restore.Context
	if c.ParentText == "" || c.TextPosition.End <= c.TextPosition.Start {
		return nil
	}
	matches := a.exactParent()
	if len(matches) == 0 {
		matches = a.normalizedParent()
	}
	for _, m := range a.orderMatches(matches) {
		if m.s < m.start || m.e > m.end || m.s >= m.e {
			continue
		}
		got := a.ti.Slice(m.s, m.e)
		degraded := got != a.d.Text
		if degraded && dom.NormalizeSpace(got) != dom.NormalizeSpace(a.d.Text) {
			continue
		}
		rng, err := a.ti.Range(m.s, m.e)
		if err != nil {
			continue
		}
		if degraded {
			a.l.logger.Warn("locate: context match with divergent whitespace",
				"selection_id", a.d.ID, "want", a.d.Text, "got", got)
		}
		return rng
	}
	return nil
}

func (a *attempt) exactParent() []contextMatch {
	c := a.d.Restore.Context
	parent := []rune(c.ParentText)
	var out []contextMatch
	for _, o := range a.ti.IndexAll(parent) {
		out = append(out, contextMatch{
			start: o,
			end:   o + len(parent),
			s:     o + c.TextPosition.Start,
			e:     o + c.TextPosition.End,
		})
	}
	return out
}

// normalizedParent matches on collapsed whitespace and maps every span back
// to raw offsets through the normalisation index maps.
func (a *attempt) normalizedParent() []contextMatch {
	c := a.d.Restore.Context
	pNorm, pIdx := dom.NormalizeRunes([]rune(c.ParentText))
	if len(pNorm) == 0 {
		return nil
	}
	tNorm, tIdx := dom.NormalizeRunes(a.ti.Runes())
	ks := firstAtOrAfter(pIdx, len(pNorm), c.TextPosition.Start)
	ke := firstAtOrAfter(pIdx, len(pNorm), c.TextPosition.End)

	var out []contextMatch
	for _, i := range dom.IndexRunes(tNorm, pNorm) {
		m := contextMatch{
			start: tIdx[i],
			end:   tIdx[i+len(pNorm)-1] + 1,
		}
		m.s = tIdx[i+ks]
		if ks == len(pNorm) {
			m.s = m.end
		}
		m.e = tIdx[i+ke]
		if ke == len(pNorm) {
			m.e = m.end
		}
		out = append(out, m)
	}
	return out
}

// firstAtOrAfter returns the first normalised index whose raw offset is at
// least raw, or n when none is.
func firstAtOrAfter(idx []int, n, raw int) int {
	for k := 0; k < n; k++ {
		if idx[k] >= raw {
			return k
		}
	}
	return n
}

// orderMatches puts the most plausible occurrence first: nearest to the hint
// when one is given, otherwise the best agreement with the context windows.
// Ties keep document order.
func (a *attempt) orderMatches(ms []contextMatch) []contextMatch {
	if len(ms) < 2 {
		return ms
	}
	c := a.d.Restore.Context
	out := make([]contextMatch, len(ms))
	copy(out, ms)
	better := func(x, y contextMatch) bool {
		if a.opts.HasHint {
			return abs(x.s-a.opts.Hint) < abs(y.s-a.opts.Hint)
		}
		return x.agreement > y.agreement
	}
	for i := range out {
		out[i].agreement = a.agreement(out[i], c.PrecedingText, c.FollowingText)
	}
	// insertion sort keeps equal elements in document order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && better(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (a *attempt) agreement(m contextMatch, preceding, following string) int {
	n := 0
	pl, fl := dom.RuneLen(preceding), dom.RuneLen(following)
	before := dom.NormalizeSpace(a.ti.Slice(m.s-pl, m.s))
	after := dom.NormalizeSpace(a.ti.Slice(m.e, m.e+fl))
	if p := dom.NormalizeSpace(preceding); p != "" && strings.HasSuffix(before, p) {
		n++
	}
	if f := dom.NormalizeSpace(following); f != "" && strings.HasPrefix(after, f) {
		n++
	}
	return n
}
