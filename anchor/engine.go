// Package anchor captures text selections inside an HTML document as durable
// descriptors and relocates them later, after the document structure changed.
//
// A descriptor carries five independent locating layers, from the most
// precise to the fuzziest:
//
//	anchors → paths → multipleAnchors → fingerprint → context
//
// Relocation runs them in that order and the first layer whose candidate
// matches the captured text wins. Relocated selections are painted by a
// renderer picked once at startup and tracked in a registry that notifies
// listeners, coalesced over a short window.
//
// Usage:
//
//	doc, _ := dom.ParseString(page)
//	e, err := anchor.New(doc, anchor.Config{}, logger)
//	defer e.Destroy()
//	e.SelectText(4, 15)
//	d, _ := e.Serialize("")
//	...
//	res, err := e.RestoreWithoutClear(ctx, d, false)
package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/hazyhaar/textanchor/anchor/internal/debounce"
	"github.com/hazyhaar/textanchor/anchor/internal/highlight"
	"github.com/hazyhaar/textanchor/anchor/internal/interact"
	"github.com/hazyhaar/textanchor/anchor/internal/locate"
	"github.com/hazyhaar/textanchor/anchor/internal/overlap"
	"github.com/hazyhaar/textanchor/anchor/internal/registry"
	"github.com/hazyhaar/textanchor/anchor/internal/search"
	"github.com/hazyhaar/textanchor/anchor/internal/serialize"
	"github.com/hazyhaar/textanchor/dom"
	"github.com/hazyhaar/textanchor/idgen"
)

// Scroller brings a selection into view. Hosts without a viewport leave it
// unset.
type Scroller interface {
	ScrollTo(id string, rng *dom.Range)
}

// Option customises New.
type Option func(*Engine)

// WithScroller sets the platform scroller used by autoScroll restores.
func WithScroller(s Scroller) Option { return func(e *Engine) { e.scroller = s } }

// WithHighlightStore hands the engine a platform highlight registry. With the
// "auto" renderer its presence selects the native renderer.
func WithHighlightStore(s HighlightStore) Option { return func(e *Engine) { e.store = s } }

// WithClock replaces the wall clock driving the notification and hover
// debouncers.
func WithClock(c debounce.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithIDGenerator replaces the selection id generator.
func WithIDGenerator(g idgen.Generator) Option { return func(e *Engine) { e.newID = g } }

// WithLayerObserver is called after every layer attempt of every relocation.
func WithLayerObserver(o func(id string, layer Layer, ok bool)) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine is the selection engine of one document. All operations are
// serialised by the engine lock, so a relocation either fully resolves or
// fully fails before the tree can change again.
type Engine struct {
	mu        sync.Mutex
	doc       *dom.Document
	cfg       Config
	root      *html.Node
	selection *dom.Range

	locator  *locate.Locator
	hl       *highlight.Highlighter
	reg      *registry.Registry
	inter    *interact.Layer
	markdown *converter.Converter

	scroller Scroller
	store    HighlightStore
	clock    debounce.Clock
	newID    idgen.Generator
	observer func(string, Layer, bool)
	types    map[string]TypeConfig

	destroyed bool
	logger    *slog.Logger
}

// New creates an engine over doc.
func New(doc *dom.Document, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if doc == nil || doc.Root == nil {
		return nil, &EngineNotInitializedError{Op: "new"}
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		doc:    doc,
		cfg:    cfg,
		clock:  debounce.System,
		newID:  idgen.Selection,
		types:  make(map[string]TypeConfig),
		logger: logger,
	}
	for _, o := range opts {
		o(e)
	}

	root, err := e.resolveRoot(cfg.RootNodeID)
	if err != nil {
		return nil, err
	}
	e.root = root

	var observer locate.Observer
	if e.observer != nil {
		observer = func(id string, l locate.Layer, ok bool) { e.observer(id, l, ok) }
	}
	e.locator = locate.New(locate.Options{
		CustomIDAttr: cfg.CustomIDAttribute,
		Threshold:    cfg.FingerprintThreshold,
		Observer:     observer,
		Logger:       logger,
	})

	renderer := highlight.Probe(cfg.Renderer, e.store, doc, logger)
	e.hl = highlight.New(renderer, cfg.DefaultStyle, logger)
	for typ, s := range cfg.Styles {
		e.hl.RegisterStyle(typ, s)
		e.types[typ] = TypeConfig{Type: typ, Style: s, Label: s.Label, Description: s.Description}
	}

	e.reg = registry.New(cfg.NotifyDebounce, e.clock, logger)
	e.inter = interact.New(e.reg, cfg.HoverDebounce, e.clock, logger)
	e.markdown = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	logger.Info("anchor: engine ready", "renderer", renderer.Name(), "root", cfg.RootNodeID)
	return e, nil
}

func (e *Engine) resolveRoot(id string) (*html.Node, error) {
	if id == "" {
		if b := dom.Body(e.doc.Root); b != nil {
			return b, nil
		}
		return e.doc.Root, nil
	}
	n := dom.FindByID(e.doc.Root, id)
	if n == nil {
		return nil, fmt.Errorf("anchor: root node %q not found", id)
	}
	return n, nil
}

// lock takes the engine lock and fails on a nil or destroyed engine.
func (e *Engine) lock(op string) error {
	if e == nil {
		return &EngineNotInitializedError{Op: op}
	}
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return &EngineNotInitializedError{Op: op}
	}
	return nil
}

// Document returns the document the engine works on.
func (e *Engine) Document() *dom.Document { return e.doc }

// Root returns the current root scope.
func (e *Engine) Root() *html.Node {
	if err := e.lock("root"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	return e.root
}

// SetRootNodeID rescopes capture and relocation. An empty id selects the
// document body; an unknown id leaves the scope unchanged.
func (e *Engine) SetRootNodeID(id string) error {
	if err := e.lock("setRootNodeId"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	root, err := e.resolveRoot(id)
	if err != nil {
		return err
	}
	e.root = root
	e.cfg.RootNodeID = id
	return nil
}

// SetSelection replaces the current selection, as the platform would after
// the user dragged over text. nil clears it.
func (e *Engine) SetSelection(rng *dom.Range) error {
	if err := e.lock("setSelection"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.setSelectionLocked(rng)
	return nil
}

func (e *Engine) setSelectionLocked(rng *dom.Range) {
	if e.selection != nil {
		e.doc.Untrack(e.selection)
	}
	e.selection = rng
	if rng != nil && dom.IsText(rng.Start.Node) && dom.IsText(rng.End.Node) {
		e.doc.Track(rng)
	}
}

// SelectText selects the flattened-text span [start, end) of the root scope.
func (e *Engine) SelectText(start, end int) error {
	if err := e.lock("selectText"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if start == end {
		return &EmptySelectionError{}
	}
	rng, err := dom.NewTextIndex(e.root).Range(start, end)
	if err != nil {
		return fmt.Errorf("anchor: select: %w", err)
	}
	e.setSelectionLocked(rng)
	return nil
}

// Selection returns a copy of the current selection, or nil.
func (e *Engine) Selection() *dom.Range {
	if err := e.lock("selection"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	if e.selection == nil {
		return nil
	}
	return e.selection.Clone()
}

// Serialize captures the current selection under the default type. It
// returns nil, nil when nothing is selected. An empty id generates one.
func (e *Engine) Serialize(id string) (*Descriptor, error) {
	if err := e.lock("serialize"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if e.selection == nil {
		return nil, nil
	}
	return e.captureLocked(e.selection, id, e.cfg.DefaultType)
}

// Capture serialises rng under typ. An empty typ means the default type.
func (e *Engine) Capture(rng *dom.Range, id, typ string) (*Descriptor, error) {
	if err := e.lock("capture"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if typ == "" {
		typ = e.cfg.DefaultType
	}
	return e.captureLocked(rng, id, typ)
}

// CaptureText selects the flattened-text span [start, end) of the root scope
// and serialises it under typ in one step, so concurrent callers cannot
// capture each other's selection.
func (e *Engine) CaptureText(start, end int, id, typ string) (*Descriptor, error) {
	if err := e.lock("captureText"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if start == end {
		return nil, &EmptySelectionError{}
	}
	rng, err := dom.NewTextIndex(e.root).Range(start, end)
	if err != nil {
		return nil, fmt.Errorf("anchor: select: %w", err)
	}
	e.setSelectionLocked(rng)
	if typ == "" {
		typ = e.cfg.DefaultType
	}
	return e.captureLocked(rng, id, typ)
}

func (e *Engine) captureLocked(rng *dom.Range, id, typ string) (*Descriptor, error) {
	d, err := serialize.Capture(e.root, rng, serialize.Options{
		ID:            id,
		NewID:         e.newID,
		Type:          typ,
		CustomIDAttr:  e.cfg.CustomIDAttribute,
		ContextWindow: e.cfg.ContextWindow,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("anchor: captured", "selection_id", d.ID, "type", d.Type, "length", dom.RuneLen(d.Text))
	return d, nil
}

// Locate relocates d without painting or registering it. A negative hint
// means none; otherwise the context layer prefers occurrences near that
// flattened offset.
func (e *Engine) Locate(d *Descriptor, hint int) (*dom.Range, Layer, error) {
	if err := e.lock("locate"); err != nil {
		return nil, "", err
	}
	defer e.mu.Unlock()
	return e.locator.Locate(e.root, d, locate.LocateOptions{Hint: hint, HasHint: hint >= 0})
}

// RestoreWithoutClear relocates d and paints it, leaving every other active
// selection in place. An already active selection with the same id is
// replaced.
func (e *Engine) RestoreWithoutClear(ctx context.Context, d *Descriptor, autoScroll bool) (*RestoreResult, error) {
	if err := e.lock("restoreWithoutClear"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := e.restoreLocked(d)
	if err != nil {
		return nil, err
	}
	if autoScroll {
		e.scrollLocked(res.ID)
	}
	return res, nil
}

func (e *Engine) restoreLocked(d *Descriptor) (*RestoreResult, error) {
	if d == nil {
		return nil, &EmptySelectionError{}
	}
	rng, layer, err := e.locator.Locate(e.root, d, locate.LocateOptions{})
	if err != nil {
		e.logger.Warn("anchor: restore failed", "selection_id", d.ID, "error", err)
		return nil, err
	}
	e.doc.Track(rng)
	e.removeLocked(d.ID)

	overlaps := overlap.Detect(rng, e.overlapEntries(), d.ID)
	style, err := e.hl.Paint(d.ID, rng, d.Type)
	if err != nil {
		e.doc.Untrack(rng)
		return nil, err
	}
	e.reg.Register(registry.Entry{ID: d.ID, Type: d.Type, Class: style.ClassName, Range: rng})

	e.logger.Debug("anchor: restored", "selection_id", d.ID, "layer", layer, "overlaps", len(overlaps))
	return &RestoreResult{
		ID:       d.ID,
		Layer:    layer,
		Text:     rng.Text(),
		Class:    style.ClassName,
		Overlaps: overlaps,
	}, nil
}

// HighlightSelections clears every active selection, then restores descs.
// Failing descriptors are reported in the result and never stop the batch.
// When scrollIndex is in range and that item was restored, it is scrolled
// into view.
func (e *Engine) HighlightSelections(ctx context.Context, descs []*Descriptor, scrollIndex int) (*BatchResult, error) {
	if err := e.lock("highlightSelections"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	e.clearLocked()

	out := &BatchResult{}
	scrollID := ""
	for i, d := range descs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := e.restoreLocked(d)
		if err != nil {
			id := ""
			if d != nil {
				id = d.ID
			}
			out.Failed = append(out.Failed, RestoreFailure{ID: id, Error: err.Error(), Err: err})
			continue
		}
		out.Restored = append(out.Restored, *res)
		if i == scrollIndex {
			scrollID = res.ID
		}
	}
	if scrollID != "" {
		e.scrollLocked(scrollID)
	}
	e.logger.Info("anchor: batch restored", "restored", len(out.Restored), "failed", len(out.Failed))
	return out, nil
}

func (e *Engine) scrollLocked(id string) {
	if e.scroller == nil {
		return
	}
	if entry, ok := e.reg.Get(id); ok {
		e.scroller.ScrollTo(id, entry.Range.Clone())
	}
}

// ClearHighlight unpaints every selection and empties the registry.
func (e *Engine) ClearHighlight() error {
	if err := e.lock("clearHighlight"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.clearLocked()
	return nil
}

func (e *Engine) clearLocked() {
	e.hl.ClearAll()
	for _, entry := range e.reg.Clear() {
		e.doc.Untrack(entry.Range)
	}
}

// RemoveSelection unpaints and evicts one selection. It reports whether the
// id was active.
func (e *Engine) RemoveSelection(id string) (bool, error) {
	if err := e.lock("removeSelection"); err != nil {
		return false, err
	}
	defer e.mu.Unlock()
	return e.removeLocked(id), nil
}

func (e *Engine) removeLocked(id string) bool {
	entry, ok := e.reg.Remove(id)
	if !ok {
		return false
	}
	e.hl.Unpaint(id)
	e.doc.Untrack(entry.Range)
	return true
}

// RegisterSelectionType binds a style to a selection type. An empty class
// name becomes "anchor-<type>".
func (e *Engine) RegisterSelectionType(tc TypeConfig) error {
	if err := e.lock("registerSelectionType"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if tc.Type == "" {
		return errors.New("anchor: selection type is empty")
	}
	s := tc.Style
	if tc.Label != "" {
		s.Label = tc.Label
	}
	if tc.Description != "" {
		s.Description = tc.Description
	}
	e.hl.RegisterStyle(tc.Type, s)
	tc.Style = e.hl.StyleFor(tc.Type)
	e.types[tc.Type] = tc
	return nil
}

// SelectionTypes returns the registered types.
func (e *Engine) SelectionTypes() []TypeConfig {
	if err := e.lock("selectionTypes"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	out := make([]TypeConfig, 0, len(e.types))
	for _, tc := range e.types {
		out = append(out, tc)
	}
	return out
}

// Stylesheet renders the CSS for every registered style.
func (e *Engine) Stylesheet() string {
	if err := e.lock("stylesheet"); err != nil {
		return ""
	}
	defer e.mu.Unlock()
	return e.hl.Stylesheet()
}

// scopes resolves container ids under the root. No ids means the root.
func (e *Engine) scopes(containers []string) ([]*html.Node, error) {
	if len(containers) == 0 {
		return []*html.Node{e.root}, nil
	}
	out := make([]*html.Node, 0, len(containers))
	for _, id := range containers {
		n := dom.FindByID(e.root, id)
		if n == nil {
			return nil, fmt.Errorf("anchor: container %q not found", id)
		}
		out = append(out, n)
	}
	return out, nil
}

// HighlightTextInContainers finds keyword in the given containers (ids;
// none means the root scope) and registers and paints every kept occurrence
// as a selection of typ.
func (e *Engine) HighlightTextInContainers(keyword, typ string, containers []string, opts SearchOptions) (*SearchResult, error) {
	if err := e.lock("highlightTextInContainers"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if typ == "" {
		typ = e.cfg.DefaultType
	}
	scopes, err := e.scopes(containers)
	if err != nil {
		return nil, err
	}
	sopts := search.Options{
		CaseSensitive: opts.CaseSensitive,
		WholeWord:     opts.WholeWord,
		MaxMatches:    opts.MaxMatches,
		FilterExpr:    opts.FilterExpr,
	}
	if opts.FilterMatches != nil {
		sopts.Filter = func(m search.Match) bool {
			return opts.FilterMatches(SearchMatch{
				Keyword: m.Keyword, Text: m.Text, Index: m.Index,
				Scope: m.Scope, Before: m.Before, After: m.After,
			})
		}
	}
	matches, err := search.Find(keyword, scopes, sopts)
	if err != nil {
		return nil, fmt.Errorf("anchor: search %q: %w", keyword, err)
	}

	// Painting splits text nodes; every match range must be live before the
	// first paint.
	for _, m := range matches {
		e.doc.Track(m.Range)
	}
	res := &SearchResult{Keyword: keyword, HighlightIDs: []string{}}
	for _, m := range matches {
		id := idgen.Keyword()
		style, err := e.hl.Paint(id, m.Range, typ)
		if err != nil {
			e.doc.Untrack(m.Range)
			e.logger.Warn("anchor: keyword paint failed", "keyword", keyword, "error", err)
			continue
		}
		e.reg.Register(registry.Entry{ID: id, Type: typ, Class: style.ClassName, Range: m.Range, Keyword: keyword})
		res.HighlightIDs = append(res.HighlightIDs, id)
	}
	res.Success = len(res.HighlightIDs)
	e.logger.Debug("anchor: keyword highlighted", "keyword", keyword, "matches", res.Success)
	return res, nil
}

// ClearTextHighlights removes the keyword selections created for keyword,
// or for every keyword when it is empty, restricted to the given containers
// when any are named. It returns the removed ids.
func (e *Engine) ClearTextHighlights(keyword string, containers []string) ([]string, error) {
	if err := e.lock("clearTextHighlights"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	var scopes []*html.Node
	if len(containers) > 0 {
		var err error
		if scopes, err = e.scopes(containers); err != nil {
			return nil, err
		}
	}
	ids := e.reg.ByKeyword(keyword)
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		entry, ok := e.reg.Get(id)
		if !ok || (scopes != nil && !within(entry.Range, scopes)) {
			continue
		}
		if e.removeLocked(id) {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func within(rng *dom.Range, scopes []*html.Node) bool {
	for _, s := range scopes {
		if dom.Contains(s, rng.Start.Node) && dom.Contains(s, rng.End.Node) {
			return true
		}
	}
	return false
}

// GetAllActiveSelectionIDs returns the active ids in document order.
func (e *Engine) GetAllActiveSelectionIDs() []string {
	if err := e.lock("getAllActiveSelectionIds"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	return e.reg.IDs()
}

// GetActiveRange returns a copy of the range of an active selection, or nil.
func (e *Engine) GetActiveRange(id string) *dom.Range {
	if err := e.lock("getActiveRange"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	entry, ok := e.reg.Get(id)
	if !ok {
		return nil
	}
	return entry.Range.Clone()
}

// ActiveText returns the text of an active selection.
func (e *Engine) ActiveText(id string) (string, bool) {
	if err := e.lock("activeText"); err != nil {
		return "", false
	}
	defer e.mu.Unlock()
	entry, ok := e.reg.Get(id)
	if !ok {
		return "", false
	}
	return entry.Range.Text(), true
}

// OnChange subscribes to coalesced registry notifications. The listener
// receives the full list of active ids in document order.
func (e *Engine) OnChange(l func(ids []string)) (func(), error) {
	if err := e.lock("onChange"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.reg.OnChange(l), nil
}

// FlushNotifications delivers a pending change notification immediately.
func (e *Engine) FlushNotifications() {
	if err := e.lock("flushNotifications"); err != nil {
		return
	}
	e.mu.Unlock()
	e.reg.Flush()
}

// Overlaps returns the active selections intersecting rng.
func (e *Engine) Overlaps(rng *dom.Range) ([]OverlappedRange, error) {
	if err := e.lock("overlaps"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return overlap.Detect(rng, e.overlapEntries(), ""), nil
}

func (e *Engine) overlapEntries() []overlap.Entry {
	entries := e.reg.Entries()
	out := make([]overlap.Entry, len(entries))
	for i, en := range entries {
		out[i] = overlap.Entry{ID: en.ID, Type: en.Type, Range: en.Range}
	}
	return out
}

// Rebuild repaints every active selection from the registry, in document
// order. The platform highlight store is only a mirror; this regenerates it.
func (e *Engine) Rebuild() error {
	if err := e.lock("rebuild"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.hl.ClearAll()
	var errs []error
	for _, entry := range e.reg.Entries() {
		if _, err := e.hl.Paint(entry.ID, entry.Range, entry.Type); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportMarkdown renders the fragment covered by an active selection as
// markdown.
func (e *Engine) ExportMarkdown(id string) (string, error) {
	if err := e.lock("exportMarkdown"); err != nil {
		return "", err
	}
	defer e.mu.Unlock()
	entry, ok := e.reg.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s is not active", ErrUnknownSelection, id)
	}
	frag := dom.RenderNode(entry.Range.Fragment())
	md, err := e.markdown.ConvertString(frag)
	if err != nil {
		return "", fmt.Errorf("anchor: markdown %s: %w", id, err)
	}
	return md, nil
}

// HTML renders the current document, highlight wrappers included.
func (e *Engine) HTML() (string, error) {
	if err := e.lock("html"); err != nil {
		return "", err
	}
	defer e.mu.Unlock()
	return dom.RenderNode(e.doc.Root), nil
}

// Dispatch forwards a pointer event to the interaction layer. Events must
// be delivered from the goroutine that mutates the document.
func (e *Engine) Dispatch(ev Event) error {
	if err := e.lock("dispatch"); err != nil {
		return err
	}
	e.mu.Unlock()
	e.inter.Dispatch(ev)
	return nil
}

// OnInteraction subscribes to click, hover and leave interactions.
func (e *Engine) OnInteraction(h InteractionFn) (func(), error) {
	if err := e.lock("onInteraction"); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.inter.OnInteraction(h), nil
}

// HitTest returns the active selections containing p, innermost first.
func (e *Engine) HitTest(p dom.Point) []Hit {
	if err := e.lock("hitTest"); err != nil {
		return nil
	}
	defer e.mu.Unlock()
	return e.inter.HitTest(p)
}

// Destroy cancels pending timers, detaches every listener, unpaints and
// releases the registry. Every later call fails with
// EngineNotInitializedError.
func (e *Engine) Destroy() error {
	if err := e.lock("destroy"); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.inter.Close()
	e.reg.Close()
	e.clearLocked()
	e.setSelectionLocked(nil)
	e.destroyed = true
	e.logger.Info("anchor: engine destroyed")
	return nil
}
