package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/slashboard/internal/adapters/mq/queue"
	service "github.com/okian/slashboard/internal/app"
	"github.com/okian/slashboard/internal/domain/model"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeServiceError maps service failures to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidBinding),
		errors.Is(err, service.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", newKind(op, ErrBackpressure))
	case errors.Is(err, queue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", newKind(op, ErrUnavailable))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// parseLimit reads ?limit. Absent means the service default.
func parseLimit(v string, maxLimit int) (int, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, "bad_request", errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		return 0, "limit_exceeded", errors.New("limit must be at most " + strconv.Itoa(maxLimit))
	}
	return n, "", nil
}
