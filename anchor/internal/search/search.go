// Package search finds keyword occurrences in scoped regions of a tree and
// maps each surviving occurrence to a range.
package search

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/dom"
)

// surround is how many runes of text around a match a filter sees.
const surround = 30

// Options tunes a search.
type Options struct {
	CaseSensitive bool
	WholeWord     bool
	// MaxMatches caps the matches kept per keyword; zero means no cap.
	MaxMatches int
	// Filter prunes matches before the cap applies.
	Filter func(Match) bool
	// FilterExpr is a boolean expr-lang expression over the fields of Env,
	// e.g. `Index < 3 && After startsWith " fox"`.
	FilterExpr string
}

// Match is one keyword occurrence.
type Match struct {
	Keyword string
	Scope   int // index of the scope container
	Index   int // occurrence number across scopes, before filtering
	Start   int // rune offsets in the scope's flattened text
	End     int
	Text    string
	Before  string
	After   string
	Range   *dom.Range
}

// Env is the variable set visible to FilterExpr.
type Env struct {
	Keyword string
	Text    string
	Index   int
	Scope   int
	Start   int
	End     int
	Before  string
	After   string
}

// CompileFilter compiles a FilterExpr into a predicate.
func CompileFilter(src string) (func(Match) bool, error) {
	program, err := exprlang.Compile(src, exprlang.Env(Env{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("search: compile filter %q: %w", src, err)
	}
	return func(m Match) bool { return runFilter(program, m) }, nil
}

func runFilter(program *exprvm.Program, m Match) bool {
	out, err := exprlang.Run(program, Env{
		Keyword: m.Keyword, Text: m.Text, Index: m.Index, Scope: m.Scope,
		Start: m.Start, End: m.End, Before: m.Before, After: m.After,
	})
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Find returns the occurrences of keyword under each scope, in scope then
// document order.
func Find(keyword string, scopes []*html.Node, opts Options) ([]Match, error) {
	if keyword == "" {
		return nil, nil
	}
	filters := []func(Match) bool{}
	if opts.Filter != nil {
		filters = append(filters, opts.Filter)
	}
	if opts.FilterExpr != "" {
		f, err := CompileFilter(opts.FilterExpr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	re, err := compileQuery(keyword, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	var out []Match
	index := 0
	for si, scope := range scopes {
		if scope == nil {
			continue
		}
		ti := dom.NewTextIndex(scope)
		text := ti.String()
		offs := runeOffsets(text)
		for _, loc := range re.FindAllStringIndex(text, -1) {
			s, e := offs[loc[0]], offs[loc[1]]
			if opts.WholeWord && !wordBounded(ti.Runes(), s, e) {
				continue
			}
			m := Match{
				Keyword: keyword,
				Scope:   si,
				Index:   index,
				Start:   s,
				End:     e,
				Text:    ti.Slice(s, e),
				Before:  ti.Slice(s-surround, s),
				After:   ti.Slice(e, e+surround),
			}
			index++
			if !keep(m, filters) {
				continue
			}
			rng, err := ti.Range(s, e)
			if err != nil {
				continue
			}
			m.Range = rng
			out = append(out, m)
			if opts.MaxMatches > 0 && len(out) >= opts.MaxMatches {
				return out, nil
			}
		}
	}
	return out, nil
}

func keep(m Match, filters []func(Match) bool) bool {
	for _, f := range filters {
		if !f(m) {
			return false
		}
	}
	return true
}

func compileQuery(keyword string, caseSensitive bool) (*regexp.Regexp, error) {
	pattern := regexp.QuoteMeta(keyword)
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("search: compile %q: %w", keyword, err)
	}
	return re, nil
}

// runeOffsets maps every byte offset of s that starts a rune, plus len(s),
// to its rune offset.
func runeOffsets(s string) map[int]int {
	offs := make(map[int]int, utf8.RuneCountInString(s)+1)
	i := 0
	for b := range s {
		offs[b] = i
		i++
	}
	offs[len(s)] = i
	return offs
}

// wordBounded reports whether [s, e) is delimited by non-word runes or the
// text edges.
func wordBounded(rs []rune, s, e int) bool {
	if s > 0 && isWord(rs[s-1]) {
		return false
	}
	if e < len(rs) && isWord(rs[e]) {
		return false
	}
	return true
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
