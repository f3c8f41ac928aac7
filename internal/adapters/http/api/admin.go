package api

import "net/http"

// AdminHandler handles maintenance requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandlePurge handles POST /admin/purge. It clears every record without
// waiting for the retention cycle.
func (h *AdminHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_purge"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.Purge(r.Context()); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "purged"})
}

// HandleRefresh handles POST /admin/refresh and reports the batch outcome.
func (h *AdminHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
