package api

import (
	"context"
	"net/http"

	service "github.com/okian/slashboard/internal/app"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, q service.Query) (service.Result, error)
	GlobalLeaderboard(ctx context.Context, q service.Query) (service.Result, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?scope=&account=&uid=&limit=&format=.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q, ok := h.query(w, r, op)
	if !ok {
		return
	}
	if q.Scope == "" {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.Leaderboard(r.Context(), q)
	h.respond(w, op, q, res, err)
}

// HandleGetGlobal handles GET /leaderboard/global.
func (h *LeaderboardHandler) HandleGetGlobal(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_global_leaderboard"
	q, ok := h.query(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.GlobalLeaderboard(r.Context(), q)
	h.respond(w, op, q, res, err)
}

func (h *LeaderboardHandler) query(w http.ResponseWriter, r *http.Request, op string) (service.Query, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return service.Query{}, false
	}
	params := r.URL.Query()
	limit, code, err := parseLimit(params.Get("limit"), h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, wrapKind(op, ErrBadRequest, err))
		return service.Query{}, false
	}
	format, err := service.ParseFormat(params.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return service.Query{}, false
	}
	return service.Query{
		Scope:   params.Get("scope"),
		Account: params.Get("account"),
		UID:     params.Get("uid"),
		Limit:   limit,
		Format:  format,
	}, true
}

func (h *LeaderboardHandler) respond(w http.ResponseWriter, op string, q service.Query, res service.Result, err error) {
	switch {
	case err != nil:
		writeServiceError(w, op, err)
	case res.Message != "":
		writeText(w, http.StatusOK, res.Message)
	case q.Format == service.FormatJSON:
		writeJSON(w, http.StatusOK, res.Board)
	default:
		w.Header().Set("Content-Type", res.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Body)
	}
}
