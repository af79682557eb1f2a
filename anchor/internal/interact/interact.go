// Package interact hit-tests pointer events against active selections and
// raises typed interactions. Clicks fire at once; hovers are debounced and
// fire once per entry until the pointer leaves it.
package interact

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/textanchor/anchor/internal/debounce"
	"github.com/hazyhaar/textanchor/anchor/internal/registry"
	"github.com/hazyhaar/textanchor/dom"
)

// DefaultHoverWindow is the hover debounce window.
const DefaultHoverWindow = 50 * time.Millisecond

// Kind is the kind of a pointer event or interaction.
type Kind string

const (
	Click       Kind = "click"
	DblClick    Kind = "dblclick"
	ContextMenu Kind = "contextmenu"
	Move        Kind = "move"
	Leave       Kind = "leave"
	Hover       Kind = "hover"
)

// Event is a pointer event forwarded by the host.
type Event struct {
	Kind   Kind
	Target dom.Point
}

// Hit is an active selection under the pointer.
type Hit struct {
	ID      string
	Type    string
	Keyword string
	Range   *dom.Range
}

// Interaction is delivered to handlers. Hits lists every selection under
// the pointer, innermost first; ID is the innermost.
type Interaction struct {
	Kind    Kind
	ID      string
	Type    string
	Keyword string
	Hits    []Hit
	Target  dom.Point
}

// Handler receives interactions.
type Handler func(Interaction)

// Source yields the active selections to test against.
type Source interface {
	Entries() []registry.Entry
}

// Layer dispatches pointer events.
type Layer struct {
	mu       sync.Mutex
	src      Source
	hover    *debounce.Debouncer
	handlers map[int]Handler
	nextH    int
	pending  string // entry id waiting for the hover window
	current  string // entry id whose hover already fired
	closed   bool
	logger   *slog.Logger
}

// New creates a Layer reading entries from src.
func New(src Source, window time.Duration, clock debounce.Clock, logger *slog.Logger) *Layer {
	if window <= 0 {
		window = DefaultHoverWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		src:      src,
		hover:    debounce.New(window, clock),
		handlers: make(map[int]Handler),
		logger:   logger,
	}
}

// OnInteraction subscribes h and returns a function that unsubscribes it.
func (l *Layer) OnInteraction(h Handler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.nextH
	l.nextH++
	l.handlers[k] = h
	return func() {
		l.mu.Lock()
		delete(l.handlers, k)
		l.mu.Unlock()
	}
}

// HitTest returns the active selections containing p, innermost first and
// then in document order.
func (l *Layer) HitTest(p dom.Point) []Hit {
	var hits []Hit
	var sizes []int
	for _, e := range l.src.Entries() {
		if e.Range == nil || !e.Range.ContainsPoint(p) {
			continue
		}
		hits = append(hits, Hit{ID: e.ID, Type: e.Type, Keyword: e.Keyword, Range: e.Range})
		sizes = append(sizes, dom.RuneLen(e.Range.Text()))
	}
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return sizes[idx[a]] < sizes[idx[b]] })
	out := make([]Hit, len(hits))
	for i, j := range idx {
		out[i] = hits[j]
	}
	return out
}

// Dispatch handles one pointer event.
func (l *Layer) Dispatch(ev Event) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	switch ev.Kind {
	case Click, DblClick, ContextMenu:
		if hits := l.HitTest(ev.Target); len(hits) > 0 {
			l.emit(newInteraction(ev.Kind, ev.Target, hits))
		}
	case Move:
		hits := l.HitTest(ev.Target)
		if len(hits) == 0 {
			l.leave(ev.Target)
			return
		}
		l.enter(ev.Target, hits)
	case Leave:
		l.leave(ev.Target)
	}
}

func (l *Layer) enter(target dom.Point, hits []Hit) {
	id := hits[0].ID
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == l.current {
		if l.pending != "" {
			l.hover.Cancel()
			l.pending = ""
		}
		return
	}
	if id == l.pending {
		return
	}
	l.current = ""
	l.pending = id
	l.hover.Schedule(func() {
		l.mu.Lock()
		if l.closed || l.pending != id {
			l.mu.Unlock()
			return
		}
		l.pending = ""
		l.current = id
		l.mu.Unlock()
		l.emit(newInteraction(Hover, target, hits))
	})
}

// leave cancels a pending hover and resets the dedupe key right away.
func (l *Layer) leave(target dom.Point) {
	l.mu.Lock()
	l.hover.Cancel()
	l.pending = ""
	last := l.current
	l.current = ""
	l.mu.Unlock()
	if last != "" {
		l.emit(Interaction{Kind: Leave, ID: last, Target: target})
	}
}

func newInteraction(kind Kind, target dom.Point, hits []Hit) Interaction {
	return Interaction{
		Kind:    kind,
		ID:      hits[0].ID,
		Type:    hits[0].Type,
		Keyword: hits[0].Keyword,
		Hits:    hits,
		Target:  target,
	}
}

func (l *Layer) emit(in Interaction) {
	l.mu.Lock()
	keys := make([]int, 0, len(l.handlers))
	for k := range l.handlers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	hs := make([]Handler, 0, len(keys))
	for _, k := range keys {
		hs = append(hs, l.handlers[k])
	}
	l.mu.Unlock()
	l.logger.Debug("interact: event", "kind", in.Kind, "selection_id", in.ID)
	for _, h := range hs {
		h(in)
	}
}

// Close cancels the pending hover and detaches every handler.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.hover.Close()
	l.handlers = make(map[int]Handler)
	l.pending, l.current = "", ""
}
