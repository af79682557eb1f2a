package highlight

import (
	"sort"
	"sync"

	"github.com/hazyhaar/textanchor/dom"
)

// HighlightStore is a platform registry of highlighted ranges keyed by style
// class name, like the CSS Custom Highlight registry. The engine treats it
// as a write-only mirror of its own registry.
type HighlightStore interface {
	Set(class, id string, rng *dom.Range)
	Delete(class, id string)
	Clear()
}

// NativeRenderer mirrors ranges into a HighlightStore. It never mutates the
// document tree.
type NativeRenderer struct {
	store   HighlightStore
	classes map[string]string // id -> class
}

// NewNativeRenderer creates a renderer over store.
func NewNativeRenderer(store HighlightStore) *NativeRenderer {
	return &NativeRenderer{store: store, classes: make(map[string]string)}
}

func (r *NativeRenderer) Name() string { return "native" }

func (r *NativeRenderer) Paint(id string, rng *dom.Range, style Style) error {
	r.store.Set(style.ClassName, id, rng)
	r.classes[id] = style.ClassName
	return nil
}

func (r *NativeRenderer) Unpaint(id string) {
	if class, ok := r.classes[id]; ok {
		r.store.Delete(class, id)
		delete(r.classes, id)
	}
}

func (r *NativeRenderer) ClearAll() {
	r.store.Clear()
	r.classes = make(map[string]string)
}

// MemoryStore is an in-process HighlightStore, used when the host has no
// native registry of its own but still wants an untouched tree.
type MemoryStore struct {
	mu      sync.RWMutex
	classes map[string]map[string]*dom.Range
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{classes: make(map[string]map[string]*dom.Range)}
}

func (s *MemoryStore) Set(class, id string, rng *dom.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.classes[class]
	if !ok {
		m = make(map[string]*dom.Range)
		s.classes[class] = m
	}
	m[id] = rng
}

func (s *MemoryStore) Delete(class, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.classes[class], id)
	if len(s.classes[class]) == 0 {
		delete(s.classes, class)
	}
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = make(map[string]map[string]*dom.Range)
}

// Classes lists the classes holding at least one range.
func (s *MemoryStore) Classes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.classes))
	for c := range s.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Ranges returns the ids registered under class with their ranges.
func (s *MemoryStore) Ranges(class string) map[string]*dom.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*dom.Range, len(s.classes[class]))
	for id, r := range s.classes[class] {
		out[id] = r
	}
	return out
}

// Len counts the ranges across all classes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.classes {
		n += len(m)
	}
	return n
}
