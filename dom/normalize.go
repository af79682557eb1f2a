package dom

import (
	"strings"
	"unicode"
)

// NormalizeSpace maps every run of Unicode white space to a single ASCII
// space and trims both ends. It is idempotent.
func NormalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// NormalizeRunes applies NormalizeSpace to rs and also returns, for every
// rune of the result, the offset of the raw rune it came from. The map has
// one extra trailing entry holding the raw offset just past the last kept
// rune, so spans can be mapped back end-exclusive.
func NormalizeRunes(rs []rune) ([]rune, []int) {
	out := make([]rune, 0, len(rs))
	idx := make([]int, 0, len(rs)+1)
	pendingSpace := -1
	for i, r := range rs {
		if unicode.IsSpace(r) {
			if pendingSpace < 0 && len(out) > 0 {
				pendingSpace = i
			}
			continue
		}
		if pendingSpace >= 0 {
			out = append(out, ' ')
			idx = append(idx, pendingSpace)
			pendingSpace = -1
		}
		out = append(out, r)
		idx = append(idx, i)
	}
	end := 0
	if len(idx) > 0 {
		end = idx[len(idx)-1] + 1
	}
	idx = append(idx, end)
	return out, idx
}
