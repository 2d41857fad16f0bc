package order

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/kitstore/internal/common"
)

// Handler exposes order placement over HTTP.
type Handler struct {
	Service *Service
}

// Create handles POST /api/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, common.ErrorBody{Code: "BAD_REQUEST", Message: "invalid JSON payload"})
		return
	}
	resp, err := h.Service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, resp)
}

// writeFailure keeps the success flag alongside the canonical error body.
func writeFailure(w http.ResponseWriter, status int, body common.ErrorBody) {
	common.JSON(w, status, map[string]any{
		"success": false,
		"error":   body,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, body, _ := common.Describe(err)
	writeFailure(w, status, body)
}
