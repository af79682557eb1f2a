// Package highlight renders active selections. A Renderer is picked once by
// Probe and the rest of the engine never knows which variant it got: the
// native renderer mirrors ranges into a platform highlight store without
// touching the tree, the wrap renderer splits text nodes and wraps each run
// in a styled span.
package highlight

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hazyhaar/textanchor/dom"
)

// Style is the visual treatment of a selection type.
type Style struct {
	ClassName   string `json:"class" yaml:"class"`
	CSS         string `json:"css,omitempty" yaml:"css"`
	Label       string `json:"label,omitempty" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// DefaultStyle is used for types nobody registered.
var DefaultStyle = Style{ClassName: "anchor-highlight", CSS: "background-color: #fff59d;"}

// Renderer paints ranges. Implementations are not safe for concurrent use;
// the Highlighter serialises calls.
type Renderer interface {
	Name() string
	Paint(id string, rng *dom.Range, style Style) error
	Unpaint(id string)
	ClearAll()
}

// Highlighter resolves styles and guarantees a painted id is never painted
// twice.
type Highlighter struct {
	mu       sync.Mutex
	renderer Renderer
	def      Style
	styles   map[string]Style
	painted  map[string]Style
	logger   *slog.Logger
}

// New wraps r. A zero def means DefaultStyle.
func New(r Renderer, def Style, logger *slog.Logger) *Highlighter {
	if def.ClassName == "" {
		def = DefaultStyle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Highlighter{
		renderer: r,
		def:      def,
		styles:   make(map[string]Style),
		painted:  make(map[string]Style),
		logger:   logger,
	}
}

// Renderer returns the active renderer.
func (h *Highlighter) Renderer() Renderer { return h.renderer }

// RegisterStyle binds a style to a selection type. An empty class name
// becomes "anchor-<type>".
func (h *Highlighter) RegisterStyle(typ string, s Style) {
	if s.ClassName == "" {
		s.ClassName = "anchor-" + typ
	}
	h.mu.Lock()
	h.styles[typ] = s
	h.mu.Unlock()
}

// StyleFor returns the style registered for typ, or the default style.
func (h *Highlighter) StyleFor(typ string) Style {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.styleLocked(typ)
}

func (h *Highlighter) styleLocked(typ string) Style {
	if s, ok := h.styles[typ]; ok {
		return s
	}
	return h.def
}

// Styles returns a copy of the registered styles.
func (h *Highlighter) Styles() map[string]Style {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]Style, len(h.styles))
	for k, v := range h.styles {
		out[k] = v
	}
	return out
}

// Paint renders rng under id with the style of typ.
func (h *Highlighter) Paint(id string, rng *dom.Range, typ string) (Style, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.painted[id]; ok {
		h.renderer.Unpaint(id)
		delete(h.painted, id)
	}
	style := h.styleLocked(typ)
	if err := h.renderer.Paint(id, rng, style); err != nil {
		return style, fmt.Errorf("highlight: paint %s: %w", id, err)
	}
	h.painted[id] = style
	return style, nil
}

// Unpaint removes the rendering of id.
func (h *Highlighter) Unpaint(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.painted[id]; !ok {
		return
	}
	h.renderer.Unpaint(id)
	delete(h.painted, id)
}

// ClearAll removes every rendering.
func (h *Highlighter) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renderer.ClearAll()
	h.painted = make(map[string]Style)
}

// Painted reports whether id is currently rendered.
func (h *Highlighter) Painted(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.painted[id]
	return ok
}

// Stylesheet renders CSS for every registered style plus the default, for
// both the native highlight pseudo-element and wrapper spans.
func (h *Highlighter) Stylesheet() string {
	h.mu.Lock()
	styles := []Style{h.def}
	keys := make([]string, 0, len(h.styles))
	for k := range h.styles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		styles = append(styles, h.styles[k])
	}
	h.mu.Unlock()

	var sb strings.Builder
	for _, s := range styles {
		if s.CSS == "" {
			continue
		}
		fmt.Fprintf(&sb, "::highlight(%s), .%s { %s }\n", s.ClassName, s.ClassName, s.CSS)
	}
	return sb.String()
}
