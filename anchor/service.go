package anchor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hazyhaar/textanchor/anchor/internal/docsource"
	"github.com/hazyhaar/textanchor/anchor/internal/store"
	"github.com/hazyhaar/textanchor/audit"
	"github.com/hazyhaar/textanchor/dom"
	"github.com/hazyhaar/textanchor/guard"
	"github.com/hazyhaar/textanchor/kit"
)

// ErrUnknownDocument is returned for a document id that is not loaded.
var ErrUnknownDocument = errors.New("anchor: unknown document")

// ErrUnknownSelection is returned for a selection id that is not stored.
var ErrUnknownSelection = errors.New("anchor: unknown selection")

// ErrSelectionOwned is returned when saving a selection id that another
// document already stores.
var ErrSelectionOwned = store.ErrSelectionOwned

// Service hosts one engine per loaded document and persists their
// descriptors, so selections survive both daemon restarts and document
// re-renders.
//
// Usage:
//
//	svc, err := anchor.NewService(cfg, logger)
//	defer svc.Close()
//	svc.Start(ctx)
//	http.ListenAndServe(cfg.Listen, svc.Handler())
type Service struct {
	cfg    *ServerConfig
	store  *store.Store
	audit  *audit.SQLiteLogger
	logger *slog.Logger
	// resolve is used by URL confinement; nil means DNS.
	resolve guard.Resolver

	mu      sync.RWMutex
	docs    map[string]*loaded
	byPath  map[string]string
	watcher *docsource.Watcher
}

type loaded struct {
	engine *Engine
	source docsource.Source
}

// DocumentInfo describes a loaded document.
type DocumentInfo struct {
	ID      string       `json:"id"`
	Source  string       `json:"source"`
	Kind    string       `json:"kind,omitempty"`
	Loaded  bool         `json:"loaded"`
	Active  []string     `json:"active"`
	Restore *BatchResult `json:"restore,omitempty"`
}

// CaptureRequest selects the flattened-text span [Start, End) of a
// document's root scope.
type CaptureRequest struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// NewService opens the store at cfg.DBPath.
func NewService(cfg *ServerConfig, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	cfg.defaults()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("anchor: open store: %w", err)
	}
	s, err := newService(st, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}

func newService(st *store.Store, cfg *ServerConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:    cfg,
		store:  st,
		logger: logger,
		docs:   make(map[string]*loaded),
		byPath: make(map[string]string),
	}
	if !cfg.DisableAudit {
		s.audit = audit.NewSQLiteLogger(st.DB, audit.WithLogger(logger))
		if err := s.audit.Init(); err != nil {
			s.audit.Close()
			return nil, fmt.Errorf("anchor: init audit: %w", err)
		}
	}
	return s, nil
}

// chain wraps a transport endpoint with logging and, for mutating
// operations, the audit log.
func (s *Service) chain(action string, mutating bool) kit.Middleware {
	mws := []kit.Middleware{kit.Logging(s.logger, action)}
	if mutating && s.audit != nil {
		mws = append(mws, audit.Middleware(s.audit, action))
	}
	return kit.Chain(mws...)
}

// AuditLog returns the latest audited operations, for one document or all
// of them.
func (s *Service) AuditLog(ctx context.Context, docID string, limit int) ([]*audit.Entry, error) {
	if s.audit == nil {
		return []*audit.Entry{}, nil
	}
	return s.audit.Recent(ctx, docID, limit)
}

// Start loads the configured documents and, when enabled, watches the file
// ones. A document that fails to load is logged and skipped.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.Watch {
		w, err := docsource.NewWatcher(0, func(path string) { s.onFileChange(ctx, path) }, s.logger)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
	}

	ids := make([]string, 0, len(s.cfg.Documents))
	for id := range s.cfg.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		src, err := docsource.Parse(s.cfg.Documents[id])
		if err == nil {
			_, err = s.load(ctx, id, src)
		}
		if err != nil {
			s.logger.Error("anchor: load document", "document_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) onFileChange(ctx context.Context, path string) {
	s.mu.RLock()
	id, ok := s.byPath[path]
	s.mu.RUnlock()
	if !ok {
		return
	}
	info, err := s.Reload(ctx, id)
	if err != nil {
		s.logger.Error("anchor: reload after change", "document_id", id, "error", err)
		return
	}
	s.logger.Info("anchor: document reloaded", "document_id", id,
		"restored", len(info.Restore.Restored), "failed", len(info.Restore.Failed))
}

// LoadDocument fetches ref (see docsource.Parse) and opens it under id.
// File paths resolve under DocumentRoot and URLs may not target private
// networks unless AllowPrivateURLs is set.
func (s *Service) LoadDocument(ctx context.Context, id, ref string) (*DocumentInfo, error) {
	src, err := docsource.Parse(ref)
	if err != nil {
		return nil, err
	}
	if err := s.confine(src); err != nil {
		return nil, err
	}
	return s.load(ctx, id, src)
}

func (s *Service) confine(src docsource.Source) error {
	switch v := src.(type) {
	case *docsource.File:
		p, err := guard.SafePath(s.cfg.DocumentRoot, v.Path)
		if err != nil {
			return err
		}
		v.Path = p
	case *docsource.HTTP:
		if !s.cfg.AllowPrivateURLs {
			v.Validate = func(u string) error { return guard.ValidateURL(u, s.resolve) }
			return v.Validate(v.URL)
		}
	case *docsource.Rendered:
		if !s.cfg.AllowPrivateURLs {
			return guard.ValidateURL(v.URL, s.resolve)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string, src docsource.Source) (*DocumentInfo, error) {
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	info, err := s.open(ctx, id, src.Location(), raw, src)
	if err != nil {
		return nil, err
	}
	if f, ok := src.(*docsource.File); ok {
		s.watch(id, f.Path)
	}
	return info, nil
}

func (s *Service) watch(id, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if err := s.watcher.Add(abs); err != nil {
		s.logger.Warn("anchor: watch document", "document_id", id, "error", err)
		return
	}
	s.byPath[abs] = id
}

// OpenDocument parses raw HTML and opens it under id, replacing any loaded
// version. Every stored selection of the document is restored against the
// new tree and the outcome is recorded.
func (s *Service) OpenDocument(ctx context.Context, id, source string, raw []byte) (*DocumentInfo, error) {
	return s.open(ctx, id, source, raw, nil)
}

func (s *Service) open(ctx context.Context, id, source string, raw []byte, src docsource.Source) (*DocumentInfo, error) {
	if err := guard.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("anchor: document id: %w", err)
	}
	var popts []dom.ParseOption
	if s.cfg.Sanitize {
		popts = append(popts, dom.WithSanitize())
	}
	doc, err := dom.Parse(bytes.NewReader(raw), popts...)
	if err != nil {
		return nil, err
	}
	e, err := New(doc, s.cfg.Engine, s.logger.With("document_id", id))
	if err != nil {
		return nil, err
	}
	if err := s.store.PutDocument(ctx, &store.Document{ID: id, Name: id, Source: source}); err != nil {
		e.Destroy()
		return nil, err
	}

	res, err := s.restoreStored(ctx, id, e)
	if err != nil {
		e.Destroy()
		return nil, err
	}

	s.mu.Lock()
	old := s.docs[id]
	s.docs[id] = &loaded{engine: e, source: src}
	s.mu.Unlock()
	if old != nil {
		old.engine.Destroy()
	}
	info := &DocumentInfo{ID: id, Source: source, Loaded: true, Active: e.GetAllActiveSelectionIDs(), Restore: res}
	if src != nil {
		info.Kind = src.Kind()
	}
	s.logger.Info("anchor: document opened", "document_id", id,
		"restored", len(res.Restored), "failed", len(res.Failed))
	return info, nil
}

func (s *Service) restoreStored(ctx context.Context, id string, e *Engine) (*BatchResult, error) {
	sels, err := s.store.ListSelections(ctx, id)
	if err != nil {
		return nil, err
	}
	descs := make([]*Descriptor, len(sels))
	for i, sel := range sels {
		descs[i] = sel.Descriptor
	}
	res, err := e.HighlightSelections(ctx, descs, -1)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Restored {
		if err := s.store.RecordRestore(ctx, r.ID, string(r.Layer), true); err != nil {
			s.logger.Warn("anchor: record restore", "selection_id", r.ID, "error", err)
		}
	}
	for _, f := range res.Failed {
		if err := s.store.RecordRestore(ctx, f.ID, "", false); err != nil {
			s.logger.Warn("anchor: record restore", "selection_id", f.ID, "error", err)
		}
	}
	return res, nil
}

// Reload fetches the document again from the source it was loaded from.
func (s *Service) Reload(ctx context.Context, id string) (*DocumentInfo, error) {
	s.mu.RLock()
	d, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	if d.source == nil {
		return nil, fmt.Errorf("anchor: document %s was opened from raw HTML and has no source", id)
	}
	raw, err := d.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, id, d.source.Location(), raw, d.source)
}

// Engine returns the engine of a loaded document.
func (s *Service) Engine(id string) (*Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	return d.engine, nil
}

// Documents lists the stored documents and whether each is loaded.
func (s *Service) Documents(ctx context.Context) ([]DocumentInfo, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		info := DocumentInfo{ID: d.ID, Source: d.Source, Active: []string{}}
		if l, ok := s.docs[d.ID]; ok {
			info.Loaded = true
			info.Active = l.engine.GetAllActiveSelectionIDs()
			if l.source != nil {
				info.Kind = l.source.Kind()
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Capture selects [Start, End) in the document, serialises it, stores the
// descriptor and paints it.
func (s *Service) Capture(ctx context.Context, docID string, req CaptureRequest) (*Descriptor, *RestoreResult, error) {
	e, err := s.Engine(docID)
	if err != nil {
		return nil, nil, err
	}
	d, err := e.CaptureText(req.Start, req.End, req.ID, req.Type)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.save(ctx, docID, e, d)
	if err != nil {
		return nil, nil, err
	}
	return d, res, nil
}

// Save stores a descriptor produced elsewhere and restores it.
func (s *Service) Save(ctx context.Context, docID string, d *Descriptor) (*RestoreResult, error) {
	e, err := s.Engine(docID)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, docID, e, d)
}

func (s *Service) save(ctx context.Context, docID string, e *Engine, d *Descriptor) (*RestoreResult, error) {
	if err := s.store.SaveSelection(ctx, docID, d); err != nil {
		return nil, err
	}
	return s.restore(ctx, e, d)
}

func (s *Service) restore(ctx context.Context, e *Engine, d *Descriptor) (*RestoreResult, error) {
	res, err := e.RestoreWithoutClear(ctx, d, false)
	if err != nil {
		if rerr := s.store.RecordRestore(ctx, d.ID, "", false); rerr != nil {
			s.logger.Warn("anchor: record restore", "selection_id", d.ID, "error", rerr)
		}
		return nil, err
	}
	if err := s.store.RecordRestore(ctx, d.ID, string(res.Layer), true); err != nil {
		s.logger.Warn("anchor: record restore", "selection_id", d.ID, "error", err)
	}
	return res, nil
}

// Restore relocates a stored selection again.
func (s *Service) Restore(ctx context.Context, docID, selID string) (*RestoreResult, error) {
	e, err := s.Engine(docID)
	if err != nil {
		return nil, err
	}
	sel, err := s.store.GetSelection(ctx, selID)
	if err != nil {
		return nil, err
	}
	if sel == nil || sel.DocumentID != docID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelection, selID)
	}
	return s.restore(ctx, e, sel.Descriptor)
}

// Selections lists the stored selections of a document.
func (s *Service) Selections(ctx context.Context, docID string) ([]*StoredSelection, error) {
	return s.store.ListSelections(ctx, docID)
}

// Remove unpaints a selection and deletes it from the store.
func (s *Service) Remove(ctx context.Context, docID, selID string) error {
	e, err := s.Engine(docID)
	if err != nil {
		return err
	}
	active, err := e.RemoveSelection(selID)
	if err != nil {
		return err
	}
	stored, err := s.store.DeleteSelection(ctx, docID, selID)
	if err != nil {
		return err
	}
	if !active && !stored {
		return fmt.Errorf("%w: %s", ErrUnknownSelection, selID)
	}
	return nil
}

// Search highlights keyword occurrences in a document. Keyword selections
// are transient and never stored.
func (s *Service) Search(docID, keyword, typ string, containers []string, opts SearchOptions) (*SearchResult, error) {
	e, err := s.Engine(docID)
	if err != nil {
		return nil, err
	}
	return e.HighlightTextInContainers(keyword, typ, containers, opts)
}

// ClearSearch removes keyword selections from a document.
func (s *Service) ClearSearch(docID, keyword string, containers []string) ([]string, error) {
	e, err := s.Engine(docID)
	if err != nil {
		return nil, err
	}
	return e.ClearTextHighlights(keyword, containers)
}

// Stats summarises the store.
func (s *Service) Stats(ctx context.Context) (*StoreStats, error) {
	return s.store.Stats(ctx)
}

// Close destroys every engine, stops watching and closes the store.
func (s *Service) Close() error {
	s.mu.Lock()
	docs := s.docs
	s.docs = make(map[string]*loaded)
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	for _, d := range docs {
		d.engine.Destroy()
	}
	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}
