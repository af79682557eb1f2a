package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/textanchor/audit"
	"github.com/hazyhaar/textanchor/guard"
	"github.com/hazyhaar/textanchor/kit"
	"github.com/hazyhaar/textanchor/shield"
)

// Handler returns the HTTP API of the service.
//
//	GET    /health
//	GET    /api/stats
//	GET    /api/audit?document=&limit=
//	GET    /api/documents
//	PUT    /api/documents/{docID}                        JSON {"source"} or raw text/html
//	POST   /api/documents/{docID}/reload
//	GET    /api/documents/{docID}/html
//	GET    /api/documents/{docID}/stylesheet.css
//	GET    /api/documents/{docID}/active
//	GET    /api/documents/{docID}/selections
//	POST   /api/documents/{docID}/selections              CaptureRequest
//	PUT    /api/documents/{docID}/selections/{selID}      descriptor JSON
//	POST   /api/documents/{docID}/selections/{selID}/restore
//	GET    /api/documents/{docID}/selections/{selID}/markdown
//	DELETE /api/documents/{docID}/selections/{selID}
//	POST   /api/documents/{docID}/search                  searchRequest
//	DELETE /api/documents/{docID}/search?keyword=&container=
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Stats(r.Context())
		if err != nil {
			writeError(w, r, statusOf(err, 500), err)
			return
		}
		writeJSON(w, 200, st)
	})

	r.Get("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := s.AuditLog(r.Context(), r.URL.Query().Get("document"), limit)
		if err != nil {
			writeError(w, r, statusOf(err, 500), err)
			return
		}
		if entries == nil {
			entries = []*audit.Entry{}
		}
		writeJSON(w, 200, entries)
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			docs, err := s.Documents(r.Context())
			if err != nil {
				writeError(w, r, statusOf(err, 500), err)
				return
			}
			writeJSON(w, 200, docs)
		})

		r.Route("/{docID}", func(r chi.Router) {
			r.Use(documentContext)

			r.Put("/", s.handleOpen)

			r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
				info, err := s.call(r, "anchor_reload_document", nil, func(ctx context.Context) (any, error) {
					return s.Reload(ctx, chi.URLParam(r, "docID"))
				})
				if err != nil {
					writeError(w, r, statusOf(err, 502), err)
					return
				}
				writeJSON(w, 200, info)
			})

			r.Get("/html", func(w http.ResponseWriter, r *http.Request) {
				e, err := s.Engine(chi.URLParam(r, "docID"))
				if err != nil {
					writeError(w, r, statusOf(err, 500), err)
					return
				}
				out, err := e.HTML()
				if err != nil {
					writeError(w, r, statusOf(err, 500), err)
					return
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				io.WriteString(w, out)
			})

			r.Get("/stylesheet.css", func(w http.ResponseWriter, r *http.Request) {
				e, err := s.Engine(chi.URLParam(r, "docID"))
				if err != nil {
					writeError(w, r, statusOf(err, 500), err)
					return
				}
				w.Header().Set("Content-Type", "text/css; charset=utf-8")
				io.WriteString(w, e.Stylesheet())
			})

			r.Get("/active", func(w http.ResponseWriter, r *http.Request) {
				e, err := s.Engine(chi.URLParam(r, "docID"))
				if err != nil {
					writeError(w, r, statusOf(err, 500), err)
					return
				}
				writeJSON(w, 200, map[string]any{"ids": e.GetAllActiveSelectionIDs()})
			})

			r.Route("/selections", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					sels, err := s.Selections(r.Context(), chi.URLParam(r, "docID"))
					if err != nil {
						writeError(w, r, statusOf(err, 500), err)
						return
					}
					if sels == nil {
						sels = []*StoredSelection{}
					}
					writeJSON(w, 200, sels)
				})

				r.Post("/", func(w http.ResponseWriter, r *http.Request) {
					var req CaptureRequest
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						writeError(w, r, 400, err)
						return
					}
					out, err := s.call(r, "anchor_capture", req, func(ctx context.Context) (any, error) {
						d, res, err := s.Capture(ctx, chi.URLParam(r, "docID"), req)
						if err != nil {
							return nil, err
						}
						return map[string]any{"descriptor": d, "restore": res}, nil
					})
					if err != nil {
						writeError(w, r, statusOf(err, 400), err)
						return
					}
					writeJSON(w, 201, out)
				})

				r.Put("/{selID}", func(w http.ResponseWriter, r *http.Request) {
					raw, err := io.ReadAll(r.Body)
					if err != nil {
						writeError(w, r, 400, err)
						return
					}
					d, err := ParseDescriptor(raw)
					if err != nil {
						writeError(w, r, 400, err)
						return
					}
					if d.ID != chi.URLParam(r, "selID") {
						writeJSON(w, 400, map[string]string{"error": "descriptor id does not match the URL"})
						return
					}
					res, err := s.call(r, "anchor_save_selection", d, func(ctx context.Context) (any, error) {
						return s.Save(ctx, chi.URLParam(r, "docID"), d)
					})
					if err != nil {
						writeError(w, r, statusOf(err, 400), err)
						return
					}
					writeJSON(w, 200, res)
				})

				r.Post("/{selID}/restore", func(w http.ResponseWriter, r *http.Request) {
					res, err := s.call(r, "anchor_restore", selectionParams(r), func(ctx context.Context) (any, error) {
						return s.Restore(ctx, chi.URLParam(r, "docID"), chi.URLParam(r, "selID"))
					})
					if err != nil {
						writeError(w, r, statusOf(err, 500), err)
						return
					}
					writeJSON(w, 200, res)
				})

				r.Get("/{selID}/markdown", func(w http.ResponseWriter, r *http.Request) {
					e, err := s.Engine(chi.URLParam(r, "docID"))
					if err != nil {
						writeError(w, r, statusOf(err, 500), err)
						return
					}
					md, err := e.ExportMarkdown(chi.URLParam(r, "selID"))
					if err != nil {
						writeError(w, r, statusOf(err, 500), err)
						return
					}
					w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
					io.WriteString(w, md)
				})

				r.Delete("/{selID}", func(w http.ResponseWriter, r *http.Request) {
					_, err := s.call(r, "anchor_remove_selection", selectionParams(r), func(ctx context.Context) (any, error) {
						return nil, s.Remove(ctx, chi.URLParam(r, "docID"), chi.URLParam(r, "selID"))
					})
					if err != nil {
						writeError(w, r, statusOf(err, 500), err)
						return
					}
					writeJSON(w, 200, map[string]string{"status": "deleted"})
				})
			})

			r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
				var req searchRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, r, 400, err)
					return
				}
				res, err := s.call(r, "anchor_search", req, func(context.Context) (any, error) {
					return s.Search(chi.URLParam(r, "docID"), req.Keyword, req.Type, req.Containers, req.Options)
				})
				if err != nil {
					writeError(w, r, statusOf(err, 400), err)
					return
				}
				writeJSON(w, 200, res)
			})

			r.Delete("/search", func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				params := map[string]any{"keyword": q.Get("keyword"), "containers": q["container"]}
				out, err := s.call(r, "anchor_clear_search", params, func(context.Context) (any, error) {
					ids, err := s.ClearSearch(chi.URLParam(r, "docID"), q.Get("keyword"), q["container"])
					if ids == nil {
						ids = []string{}
					}
					return map[string]any{"removed": ids}, err
				})
				if err != nil {
					writeError(w, r, statusOf(err, 400), err)
					return
				}
				writeJSON(w, 200, out)
			})
		})
	})

	return r
}

type openRequest struct {
	Source string `json:"source"`
	HTML   string `json:"html"`
}

type searchRequest struct {
	Keyword    string        `json:"keyword"`
	Type       string        `json:"type,omitempty"`
	Containers []string      `json:"containers,omitempty"`
	Options    SearchOptions `json:"options"`
}

func (s *Service) handleOpen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docID")
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req openRequest
	if ct == "text/html" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, statusOf(err, 400), err)
			return
		}
		req.HTML = string(raw)
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, statusOf(err, 400), err)
		return
	}
	if req.HTML == "" && req.Source == "" {
		writeJSON(w, 400, map[string]string{"error": "source or html is required"})
		return
	}

	params := map[string]any{"source": req.Source, "html_bytes": len(req.HTML)}
	info, err := s.call(r, "anchor_load_document", params, func(ctx context.Context) (any, error) {
		if req.HTML != "" {
			return s.OpenDocument(ctx, id, "upload", []byte(req.HTML))
		}
		return s.LoadDocument(ctx, id, req.Source)
	})
	if err != nil {
		writeError(w, r, statusOf(err, 502), err)
		return
	}
	writeJSON(w, 200, info)
}

// call runs fn as the endpoint named action, through the same logging and
// audit chain as the MCP tools. params is what gets audited.
func (s *Service) call(r *http.Request, action string, params any, fn func(context.Context) (any, error)) (any, error) {
	ep := s.chain(action, true)(func(ctx context.Context, _ any) (any, error) {
		return fn(ctx)
	})
	return ep(r.Context(), params)
}

func selectionParams(r *http.Request) map[string]string {
	return map[string]string{"selection_id": chi.URLParam(r, "selID")}
}

func documentContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithDocumentID(r.Context(), chi.URLParam(r, "docID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusOf maps the typed errors of the package to HTTP status codes;
// anything else gets def.
func statusOf(err error, def int) int {
	var (
		empty   *EmptySelectionError
		scope   *OutOfScopeError
		unres   *UnresolvableSelectionError
		notInit *EngineNotInitializedError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ErrUnknownDocument), errors.Is(err, ErrUnknownSelection):
		return 404
	case errors.As(err, &empty), errors.As(err, &scope):
		return 400
	case errors.As(err, &unres):
		return 422
	case errors.As(err, &notInit), errors.Is(err, ErrSelectionOwned):
		return 409
	case errors.As(err, &tooBig):
		return 413
	case guard.Forbidden(err):
		return 403
	case errors.Is(err, guard.ErrInvalidIdentifier):
		return 400
	case strings.HasPrefix(err.Error(), "descriptor:"):
		return 400
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= 500 {
		shield.GetLogger(r.Context()).Error("anchor: http", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
