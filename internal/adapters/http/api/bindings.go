package api

import (
	"context"
	"net/http"

	"github.com/okian/slashboard/internal/domain/model"
)

// BindingDependencies registers game accounts.
type BindingDependencies interface {
	Bind(ctx context.Context, row model.BindingRow) error
}

// bindingRequest mirrors the OpenAPI schema for POST /bindings.
type bindingRequest struct {
	Scope       string `json:"scope"`
	AccountID   string `json:"account_id"`
	ExternalUID string `json:"external_uid"`
	Primary     bool   `json:"primary"`
	Token       string `json:"token"`
}

// BindingsHandler handles binding requests.
type BindingsHandler struct {
	deps BindingDependencies
}

// NewBindingsHandler creates a new bindings handler.
func NewBindingsHandler(deps BindingDependencies) *BindingsHandler {
	return &BindingsHandler{deps: deps}
}

// HandlePostBinding handles POST /bindings requests.
func (h *BindingsHandler) HandlePostBinding(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_binding"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req bindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	err := h.deps.Bind(r.Context(), model.BindingRow{
		Scope:       req.Scope,
		AccountID:   req.AccountID,
		ExternalUID: req.ExternalUID,
		Primary:     req.Primary,
		Token:       req.Token,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{Status: "bound"})
}

type statusResponse struct {
	Status string `json:"status"`
}
