package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/keys"
	"verigate/pkg/platform/httputil"
)

// Handler serves the service DID document.
type Handler struct {
	document *keys.Document
	logger   *slog.Logger
}

// New creates a Handler for a fixed document. Keys are loaded once at startup.
func New(document *keys.Document, logger *slog.Logger) *Handler {
	return &Handler{document: document, logger: logger}
}

// Register mounts the DID document route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/did.json", h.HandleDIDDocument)
}

// HandleDIDDocument returns the did:web document of the service keys.
func (h *Handler) HandleDIDDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	httputil.WriteJSON(w, http.StatusOK, h.document)
}
