// Package registry is the single source of truth for the selections that
// are currently active. Every transition queues a change notification that
// is coalesced over a short window before listeners see the full id list.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/textanchor/anchor/internal/debounce"
	"github.com/hazyhaar/textanchor/dom"
)

// DefaultNotifyWindow coalesces notifications of batch operations.
const DefaultNotifyWindow = 50 * time.Millisecond

// Entry is an active selection.
type Entry struct {
	ID    string
	Type  string
	Class string // resolved style class
	Range *dom.Range
	// Keyword is set for entries created by keyword search.
	Keyword string
	Created time.Time
}

// Listener receives the ids of every active selection in document order.
type Listener func(ids []string)

// Registry maps selection ids to live ranges. Register, Remove and Clear
// must be called by the goroutine that owns the tree: they snapshot the
// document order, and the delayed notification only ever reads that
// snapshot.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	listeners map[int]Listener
	nextL     int
	pending   []string
	notify    *debounce.Debouncer
	logger    *slog.Logger
}

// New creates a Registry. A zero window means DefaultNotifyWindow; a nil
// clock means the wall clock.
func New(window time.Duration, clock debounce.Clock, logger *slog.Logger) *Registry {
	if window <= 0 {
		window = DefaultNotifyWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries:   make(map[string]*Entry),
		listeners: make(map[int]Listener),
		notify:    debounce.New(window, clock),
		logger:    logger,
	}
}

// Register makes e active. Registering an id that is already active
// replaces its entry and reports true.
func (r *Registry) Register(e Entry) bool {
	if e.Created.IsZero() {
		e.Created = time.Now()
	}
	r.mu.Lock()
	_, replaced := r.entries[e.ID]
	r.entries[e.ID] = &e
	r.mu.Unlock()
	r.schedule()
	return replaced
}

// Remove evicts id and reports whether it was active.
func (r *Registry) Remove(id string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	r.schedule()
	return *e, true
}

// Clear evicts every entry and returns what was removed, in document order.
func (r *Registry) Clear() []Entry {
	r.mu.Lock()
	removed := sorted(r.entries)
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()
	if len(removed) > 0 {
		r.schedule()
	}
	return removed
}

// Get returns a copy of the entry for id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len counts active entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a snapshot of every entry in document order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.entries)
}

// IDs returns the active ids in document order, then by id.
func (r *Registry) IDs() []string {
	return idsOf(r.Entries())
}

func idsOf(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// ByKeyword returns the ids created for keyword, in document order.
func (r *Registry) ByKeyword(keyword string) []string {
	var ids []string
	for _, e := range r.Entries() {
		if e.Keyword != "" && (keyword == "" || e.Keyword == keyword) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// OnChange subscribes l and returns a function that unsubscribes it.
func (r *Registry) OnChange(l Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.nextL
	r.nextL++
	r.listeners[k] = l
	return func() {
		r.mu.Lock()
		delete(r.listeners, k)
		r.mu.Unlock()
	}
}

// Flush delivers a pending notification immediately.
func (r *Registry) Flush() {
	if r.notify.Cancel() {
		r.emit()
	}
}

// Close cancels the pending notification and drops every listener.
func (r *Registry) Close() {
	r.notify.Close()
	r.mu.Lock()
	r.listeners = make(map[int]Listener)
	r.mu.Unlock()
}

func (r *Registry) schedule() {
	r.mu.Lock()
	r.pending = idsOf(sorted(r.entries))
	r.mu.Unlock()
	r.notify.Schedule(r.emit)
}

// emit runs on the timer goroutine and must not touch the tree.
func (r *Registry) emit() {
	r.mu.RLock()
	ids := r.pending
	keys := make([]int, 0, len(r.listeners))
	for k := range r.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	ls := make([]Listener, 0, len(keys))
	for _, k := range keys {
		ls = append(ls, r.listeners[k])
	}
	r.mu.RUnlock()

	r.logger.Debug("registry: change notified", "active", len(ids))
	for _, l := range ls {
		l(append([]string(nil), ids...))
	}
}

// sorted orders entries by start point, then end point, then id.
func sorted(m map[string]*Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Range != nil && b.Range != nil {
			if c := dom.ComparePoints(a.Range.Start, b.Range.Start); c != 0 {
				return c < 0
			}
			if c := dom.ComparePoints(a.Range.End, b.Range.End); c != 0 {
				return c < 0
			}
		}
		return a.ID < b.ID
	})
	return out
}
