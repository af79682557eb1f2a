package anchor

import (
	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/anchor/internal/highlight"
	"github.com/hazyhaar/textanchor/anchor/internal/interact"
	"github.com/hazyhaar/textanchor/anchor/internal/locate"
	"github.com/hazyhaar/textanchor/anchor/internal/overlap"
	"github.com/hazyhaar/textanchor/anchor/internal/store"
)

// Re-export internal types for external consumers.
type (
	Descriptor      = descriptor.Descriptor
	Restore         = descriptor.Restore
	Anchors         = descriptor.Anchors
	Paths           = descriptor.Paths
	MultipleAnchors = descriptor.MultipleAnchors
	Fingerprint     = descriptor.Fingerprint
	Context         = descriptor.Context

	EmptySelectionError        = descriptor.EmptySelectionError
	OutOfScopeError            = descriptor.OutOfScopeError
	UnresolvableSelectionError = descriptor.UnresolvableSelectionError
	EngineNotInitializedError  = descriptor.EngineNotInitializedError

	Style          = highlight.Style
	HighlightStore = highlight.HighlightStore
	Layer          = locate.Layer

	Event           = interact.Event
	EventKind       = interact.Kind
	Interaction     = interact.Interaction
	Hit             = interact.Hit
	InteractionFn   = interact.Handler
	OverlappedRange = overlap.Overlapped

	StoredDocument  = store.Document
	StoredSelection = store.Selection
	StoreStats      = store.Stats
)

// Interaction kinds.
const (
	Click       = interact.Click
	DblClick    = interact.DblClick
	ContextMenu = interact.ContextMenu
	Move        = interact.Move
	Leave       = interact.Leave
	Hover       = interact.Hover
)

// Locator layers, most precise first.
const (
	LayerAnchors         = locate.LayerAnchors
	LayerPaths           = locate.LayerPaths
	LayerMultipleAnchors = locate.LayerMultipleAnchors
	LayerFingerprint     = locate.LayerFingerprint
	LayerContext         = locate.LayerContext
)

// ParseDescriptor validates raw JSON against the wire schema and decodes it.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	return descriptor.Unmarshal(raw)
}

// TypeConfig registers a selection type and its style.
type TypeConfig struct {
	Type        string `json:"type" yaml:"type"`
	Style       Style  `json:"style" yaml:"style"`
	Label       string `json:"label,omitempty" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// RestoreResult reports one successful relocation.
type RestoreResult struct {
	ID       string            `json:"id"`
	Layer    Layer             `json:"layer"`
	Text     string            `json:"text"`
	Class    string            `json:"class"`
	Overlaps []OverlappedRange `json:"overlaps,omitempty"`
}

// RestoreFailure reports one descriptor that could not be relocated.
type RestoreFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchResult is the outcome of HighlightSelections. The batch never stops
// at a failing item.
type BatchResult struct {
	Restored []RestoreResult  `json:"restored"`
	Failed   []RestoreFailure `json:"failed,omitempty"`
}

// FailedIDs lists the ids that could not be restored.
func (b *BatchResult) FailedIDs() []string {
	ids := make([]string, len(b.Failed))
	for i, f := range b.Failed {
		ids[i] = f.ID
	}
	return ids
}

// SearchOptions tunes HighlightTextInContainers.
type SearchOptions struct {
	CaseSensitive bool `json:"case_sensitive,omitempty"`
	WholeWord     bool `json:"whole_word,omitempty"`
	MaxMatches    int  `json:"max_matches,omitempty"`
	// FilterMatches prunes matches before the cap applies.
	FilterMatches func(SearchMatch) bool `json:"-"`
	// FilterExpr is a boolean expr-lang expression over the match, e.g.
	// `Index < 3 && After startsWith " "`.
	FilterExpr string `json:"filter,omitempty"`
}

// SearchMatch is the view of a keyword occurrence handed to FilterMatches.
type SearchMatch struct {
	Keyword string
	Text    string
	Index   int
	Scope   int
	Before  string
	After   string
}

// SearchResult is the outcome of HighlightTextInContainers.
type SearchResult struct {
	Keyword      string   `json:"keyword"`
	Success      int      `json:"success"`
	HighlightIDs []string `json:"highlight_ids"`
}
