package anchor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/textanchor/kit"
)

// RegisterMCP registers the anchor tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListDocumentsTool(srv)
	s.registerLoadDocumentTool(srv)
	s.registerCaptureTool(srv)
	s.registerSaveSelectionTool(srv)
	s.registerRestoreTool(srv)
	s.registerListSelectionsTool(srv)
	s.registerRemoveSelectionTool(srv)
	s.registerSearchTool(srv)
	s.registerClearSearchTool(srv)
	s.registerExportMarkdownTool(srv)
	s.registerStatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	docIDProp = map[string]any{"type": "string", "description": "Document id"}
	selIDProp = map[string]any{"type": "string", "description": "Selection id"}
)

type documentScoped interface{ documentID() string }

// decode unmarshals the arguments into T and scopes the context to the
// document the request names.
func decode[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	res, err := kit.DecodeArgs[T](req)
	if err != nil {
		return nil, err
	}
	if ds, ok := res.Request.(documentScoped); ok {
		id := ds.documentID()
		res.EnrichCtx = func(ctx context.Context) context.Context {
			return kit.WithDocumentID(ctx, id)
		}
	}
	return res, nil
}

// register adds a tool; mutating tools are audited.
func (s *Service) register(srv *mcp.Server, tool *mcp.Tool, mutating bool, endpoint kit.Endpoint, dec func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, s.chain(tool.Name, mutating)(endpoint), dec)
}

// --- documents ---

type emptyRequest struct{}

func (s *Service) registerListDocumentsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_list_documents",
		Description: "List stored documents, whether they are loaded, and their active selection ids.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Documents(ctx)
	}
	s.register(srv, tool, false, endpoint, decode[emptyRequest])
}

type loadDocumentRequest struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source,omitempty"`
	HTML       string `json:"html,omitempty"`
}

func (r loadDocumentRequest) documentID() string { return r.DocumentID }

func (s *Service) registerLoadDocumentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_load_document",
		Description: "Load or replace a document from a file path, an http(s) URL, a rendered+URL, or inline HTML. Stored selections are restored against the new version.",
		InputSchema: inputSchema(map[string]any{
			"document_id": docIDProp,
			"source":      map[string]any{"type": "string", "description": "File path, http(s) URL, or rendered+https://... for a headless-browser render"},
			"html":        map[string]any{"type": "string", "description": "Inline HTML, used instead of source"},
		}, []string{"document_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*loadDocumentRequest)
		switch {
		case rr.HTML != "":
			return s.OpenDocument(ctx, rr.DocumentID, "upload", []byte(rr.HTML))
		case rr.Source != "":
			return s.LoadDocument(ctx, rr.DocumentID, rr.Source)
		}
		return nil, errors.New("source or html is required")
	}
	s.register(srv, tool, true, endpoint, decode[loadDocumentRequest])
}

// --- selections ---

type captureRequest struct {
	DocumentID string `json:"document_id"`
	CaptureRequest
}

func (r captureRequest) documentID() string { return r.DocumentID }

func (s *Service) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_capture",
		Description: "Capture the text span [start, end) of a document (rune offsets into its flattened text), store the descriptor and highlight it.",
		InputSchema: inputSchema(map[string]any{
			"document_id": docIDProp,
			"start":       map[string]any{"type": "integer", "description": "Start offset (inclusive)"},
			"end":         map[string]any{"type": "integer", "description": "End offset (exclusive)"},
			"type":        map[string]any{"type": "string", "description": "Selection type (default: highlight)"},
			"id":          map[string]any{"type": "string", "description": "Selection id (generated when empty)"},
		}, []string{"document_id", "start", "end"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*captureRequest)
		d, res, err := s.Capture(ctx, rr.DocumentID, rr.CaptureRequest)
		if err != nil {
			return nil, err
		}
		return map[string]any{"descriptor": d, "restore": res}, nil
	}
	s.register(srv, tool, true, endpoint, decode[captureRequest])
}

type saveSelectionRequest struct {
	DocumentID string          `json:"document_id"`
	Descriptor json.RawMessage `json:"descriptor"`
}

func (r saveSelectionRequest) documentID() string { return r.DocumentID }

func (s *Service) registerSaveSelectionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_save_selection",
		Description: "Store a serialized selection descriptor for a document and restore it.",
		InputSchema: inputSchema(map[string]any{
			"document_id": docIDProp,
			"descriptor":  map[string]any{"type": "object", "description": "Selection descriptor as produced by anchor_capture"},
		}, []string{"document_id", "descriptor"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*saveSelectionRequest)
		d, err := ParseDescriptor(rr.Descriptor)
		if err != nil {
			return nil, err
		}
		return s.Save(ctx, rr.DocumentID, d)
	}
	s.register(srv, tool, true, endpoint, decode[saveSelectionRequest])
}

type selectionRequest struct {
	DocumentID  string `json:"document_id"`
	SelectionID string `json:"selection_id"`
}

func (r selectionRequest) documentID() string { return r.DocumentID }

func (s *Service) registerRestoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_restore",
		Description: "Relocate a stored selection in the current version of its document. Reports the layer that matched.",
		InputSchema: inputSchema(map[string]any{
			"document_id":  docIDProp,
			"selection_id": selIDProp,
		}, []string{"document_id", "selection_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*selectionRequest)
		return s.Restore(ctx, rr.DocumentID, rr.SelectionID)
	}
	s.register(srv, tool, true, endpoint, decode[selectionRequest])
}

type documentRequest struct {
	DocumentID string `json:"document_id"`
}

func (r documentRequest) documentID() string { return r.DocumentID }

func (s *Service) registerListSelectionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_list_selections",
		Description: "List the stored selections of a document with their last restore layer and failure count.",
		InputSchema: inputSchema(map[string]any{"document_id": docIDProp}, []string{"document_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*documentRequest)
		sels, err := s.Selections(ctx, rr.DocumentID)
		if err != nil {
			return nil, err
		}
		if sels == nil {
			sels = []*StoredSelection{}
		}
		return sels, nil
	}
	s.register(srv, tool, false, endpoint, decode[documentRequest])
}

func (s *Service) registerRemoveSelectionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_remove_selection",
		Description: "Remove a selection's highlight and delete it from the store.",
		InputSchema: inputSchema(map[string]any{
			"document_id":  docIDProp,
			"selection_id": selIDProp,
		}, []string{"document_id", "selection_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*selectionRequest)
		if err := s.Remove(ctx, rr.DocumentID, rr.SelectionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted", "selection_id": rr.SelectionID}, nil
	}
	s.register(srv, tool, true, endpoint, decode[selectionRequest])
}

func (s *Service) registerExportMarkdownTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_export_markdown",
		Description: "Render the content covered by an active selection as Markdown.",
		InputSchema: inputSchema(map[string]any{
			"document_id":  docIDProp,
			"selection_id": selIDProp,
		}, []string{"document_id", "selection_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*selectionRequest)
		e, err := s.Engine(rr.DocumentID)
		if err != nil {
			return nil, err
		}
		md, err := e.ExportMarkdown(rr.SelectionID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"selection_id": rr.SelectionID, "markdown": md}, nil
	}
	s.register(srv, tool, false, endpoint, decode[selectionRequest])
}

// --- keyword search ---

type searchToolRequest struct {
	DocumentID    string   `json:"document_id"`
	Keyword       string   `json:"keyword"`
	Type          string   `json:"type,omitempty"`
	Containers    []string `json:"containers,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	WholeWord     bool     `json:"whole_word,omitempty"`
	MaxMatches    int      `json:"max_matches,omitempty"`
	Filter        string   `json:"filter,omitempty"`
}

func (r searchToolRequest) documentID() string { return r.DocumentID }

func (s *Service) registerSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_search",
		Description: "Highlight every occurrence of a keyword in a document, optionally limited to container element ids. Keyword highlights are not stored.",
		InputSchema: inputSchema(map[string]any{
			"document_id":    docIDProp,
			"keyword":        map[string]any{"type": "string", "description": "Literal text to find"},
			"type":           map[string]any{"type": "string", "description": "Selection type used for the highlights"},
			"containers":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Element ids to search in (default: whole root)"},
			"case_sensitive": map[string]any{"type": "boolean"},
			"whole_word":     map[string]any{"type": "boolean"},
			"max_matches":    map[string]any{"type": "integer", "description": "Cap on highlighted matches (0: no cap)"},
			"filter":         map[string]any{"type": "string", "description": "Boolean expression over Keyword, Text, Index, Scope, Before, After"},
		}, []string{"document_id", "keyword"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*searchToolRequest)
		return s.Search(rr.DocumentID, rr.Keyword, rr.Type, rr.Containers, SearchOptions{
			CaseSensitive: rr.CaseSensitive,
			WholeWord:     rr.WholeWord,
			MaxMatches:    rr.MaxMatches,
			FilterExpr:    rr.Filter,
		})
	}
	s.register(srv, tool, true, endpoint, decode[searchToolRequest])
}

type clearSearchRequest struct {
	DocumentID string   `json:"document_id"`
	Keyword    string   `json:"keyword,omitempty"`
	Containers []string `json:"containers,omitempty"`
}

func (r clearSearchRequest) documentID() string { return r.DocumentID }

func (s *Service) registerClearSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_clear_search",
		Description: "Remove keyword highlights, for one keyword or all of them, optionally within container element ids.",
		InputSchema: inputSchema(map[string]any{
			"document_id": docIDProp,
			"keyword":     map[string]any{"type": "string", "description": "Keyword to clear (default: all keywords)"},
			"containers":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, []string{"document_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*clearSearchRequest)
		ids, err := s.ClearSearch(rr.DocumentID, rr.Keyword, rr.Containers)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []string{}
		}
		return map[string]any{"removed": ids}, nil
	}
	s.register(srv, tool, true, endpoint, decode[clearSearchRequest])
}

// --- stats ---

func (s *Service) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "anchor_stats",
		Description: "Store statistics: document and selection counts, selections by last restore layer, and selections currently failing to restore.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	}
	s.register(srv, tool, false, endpoint, decode[emptyRequest])
}
