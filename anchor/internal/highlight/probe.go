package highlight

import (
	"log/slog"

	"github.com/hazyhaar/textanchor/dom"
)

// Renderer modes accepted by Probe.
const (
	ModeAuto   = "auto"
	ModeNative = "native"
	ModeWrap   = "wrap"
)

// Probe picks the renderer once: the native renderer when the host offers a
// highlight store and the mode allows it, the wrap renderer otherwise.
func Probe(mode string, store HighlightStore, doc *dom.Document, logger *slog.Logger) Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case ModeWrap:
		return NewWrapRenderer(doc)
	case ModeNative:
		if store == nil {
			logger.Warn("highlight: native renderer requested without a highlight store, using in-memory store")
			store = NewMemoryStore()
		}
		return NewNativeRenderer(store)
	}
	if store != nil {
		return NewNativeRenderer(store)
	}
	return NewWrapRenderer(doc)
}
