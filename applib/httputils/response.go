package httputils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleAPIResponse writes resp as JSON with the given status, or, when err is
// set, an ErrorResponse carrying err's message.
func HandleAPIResponse(w http.ResponseWriter, r *http.Request, resp interface{}, err error, status int) {
	if err != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "API error",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		WriteJSON(w, r, status, ErrorResponse{Error: err.Error()})
		return
	}
	WriteJSON(w, r, status, resp)
}

// WriteJSON marshals v before writing any header so that an encoding failure
// can still be reported as a 500.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode response",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
