// Package overlap finds active selections whose spans intersect a candidate.
package overlap

import "github.com/hazyhaar/textanchor/dom"

// Entry is an active selection as the detector sees it.
type Entry struct {
	ID    string
	Type  string
	Range *dom.Range
}

// Overlapped describes an active selection intersecting the candidate.
type Overlapped struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Detect returns the entries whose range has a non-empty intersection with
// candidate, in the order given. Ranges that merely touch do not overlap.
// The entry named exclude is skipped so a selection never overlaps itself.
func Detect(candidate *dom.Range, entries []Entry, exclude string) []Overlapped {
	if candidate == nil {
		return nil
	}
	var out []Overlapped
	for _, e := range entries {
		if e.Range == nil || (exclude != "" && e.ID == exclude) {
			continue
		}
		if candidate.Intersects(e.Range) {
			out = append(out, Overlapped{ID: e.ID, Type: e.Type, Text: e.Range.Text()})
		}
	}
	return out
}

// Any reports whether candidate intersects at least one entry.
func Any(candidate *dom.Range, entries []Entry, exclude string) bool {
	for _, e := range entries {
		if e.Range != nil && e.ID != exclude && candidate.Intersects(e.Range) {
			return true
		}
	}
	return false
}
