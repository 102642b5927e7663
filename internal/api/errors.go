package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes carried in the error envelope.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeRateLimited = "RATE_LIMITED"
	codeExternal    = "EXTERNAL_SERVICE_ERROR"
	codeInternal    = "INTERNAL_ERROR"
	codeNotFound    = "NOT_FOUND"
)

// errorBody is the envelope every non-2xx response carries.
type errorBody struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	Details   map[string]any `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	s.logger.Warn("request failed",
		"code", code,
		"status", status,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error:     code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Details:   details,
	})
}
