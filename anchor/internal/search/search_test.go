package search

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/dom"
)

func scopes(t *testing.T, src string, ids ...string) []*html.Node {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out []*html.Node
	for _, id := range ids {
		n := dom.FindByID(doc.Root, id)
		if n == nil {
			t.Fatalf("scope %s not found", id)
		}
		out = append(out, n)
	}
	return out
}

const fivefold = `<div id="c">Fox one. fox two. <b>FOX</b> three. foxes four. The fox five.</div>` +
	`<div id="d">fox outside</div>`

func TestFind_CaseAndCap(t *testing.T) {
	sc := scopes(t, fivefold, "c")
	all, err := Find("fox", sc, Options{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("case-insensitive: got %d matches, want 5", len(all))
	}
	capped, _ := Find("fox", sc, Options{MaxMatches: 2})
	if len(capped) != 2 {
		t.Errorf("MaxMatches=2: got %d", len(capped))
	}
	exact, _ := Find("fox", sc, Options{CaseSensitive: true})
	if len(exact) != 3 {
		t.Errorf("case-sensitive: got %d, want 3", len(exact))
	}
	if all[2].Text != "FOX" || all[2].Range.Text() != "FOX" {
		t.Errorf("match across element: %+v", all[2])
	}
}

func TestFind_WholeWord(t *testing.T) {
	sc := scopes(t, fivefold, "c")
	got, _ := Find("fox", sc, Options{WholeWord: true})
	if len(got) != 4 {
		t.Errorf("whole word: got %d, want 4 (foxes excluded)", len(got))
	}
	for _, m := range got {
		if m.After != "" && isWord([]rune(m.After)[0]) {
			t.Errorf("match %d followed by a word rune: %q", m.Index, m.After)
		}
	}
}

func TestFind_Scopes(t *testing.T) {
	sc := scopes(t, fivefold, "c", "d")
	got, _ := Find("fox", sc, Options{WholeWord: true})
	if len(got) != 5 || got[4].Scope != 1 || got[4].Start != 0 {
		t.Errorf("second scope: got %d matches, last %+v", len(got), got[len(got)-1])
	}
}

func TestFind_Filters(t *testing.T) {
	sc := scopes(t, fivefold, "c")
	got, err := Find("fox", sc, Options{Filter: func(m Match) bool { return m.Text == "fox" }})
	if err != nil || len(got) != 3 {
		t.Errorf("Filter: got %d, %v", len(got), err)
	}
	got, err = Find("fox", sc, Options{FilterExpr: `Index >= 1 && After startsWith " t"`})
	if err != nil {
		t.Fatalf("FilterExpr: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FilterExpr: got %d matches, want 2", len(got))
	}
	if _, err := Find("fox", sc, Options{FilterExpr: `Index +`}); err == nil {
		t.Error("invalid FilterExpr accepted")
	}
}

func TestFind_Unicode(t *testing.T) {
	sc := scopes(t, `<p id="u">Ça été café, CAFÉ et cafés</p>`, "u")
	got, _ := Find("café", sc, Options{WholeWord: true})
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Start != 7 || got[0].End != 11 || got[1].Text != "CAFÉ" {
		t.Errorf("offsets: %+v", got)
	}
}
