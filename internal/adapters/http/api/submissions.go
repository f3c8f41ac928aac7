package api

import (
	"context"
	"net/http"

	"github.com/okian/slashboard/internal/domain/model"
)

// SubmissionDependencies defines the interface for submission intake.
type SubmissionDependencies interface {
	// Submit validates and queues a run. Returns queue.ErrFull on backpressure.
	Submit(ctx context.Context, sub model.Submission) error
}

// SubmissionsHandler handles submission requests.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var sub model.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Submit(r.Context(), sub); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}
