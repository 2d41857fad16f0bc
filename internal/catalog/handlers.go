package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kitstore/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

// Kits handles GET /api/kits.
func (h *Handler) Kits(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	kits, err := h.service.ListKits(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": kits})
}

// Search handles GET /api/kits/search/{query}.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	kits, err := h.service.SearchKits(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": kits})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if !common.WriteError(w, err) && h.service.Logger != nil {
		h.service.Logger.Error().Err(err).Msg("catalog_request_failed")
	}
}
