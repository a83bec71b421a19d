package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/orchestrator"
	"inferd/internal/task"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps well-known service errors to HTTP status codes. A
// backend-unavailable error carries the per-tier attempt record so clients
// can see what was tried.
func writeServiceError(w http.ResponseWriter, err error) int {
	switch {
	case orchestrator.IsBackendUnavailable(err):
		status := http.StatusServiceUnavailable
		attempts := make([]types.Attempt, 0)
		for _, a := range orchestrator.AttemptsFromError(err) {
			attempts = append(attempts, types.Attempt{
				TierID:    a.TierID,
				OK:        a.OK,
				Reason:    a.Reason,
				LatencyMS: a.Latency.Milliseconds(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(types.ErrorResponse{
			Error:    err.Error(),
			Code:     status,
			Attempts: attempts,
		})
		return status
	case orchestrator.IsTierNotFound(err), task.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
		return http.StatusNotFound
	case task.IsNotPaused(err), task.IsNotRunning(err):
		writeJSONError(w, http.StatusConflict, err.Error())
		return http.StatusConflict
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return he.StatusCode()
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return http.StatusInternalServerError
	}
}
