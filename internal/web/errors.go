package web

// errors.go turns pipeline errors into HTTP responses. The technical error
// is logged with the request ID; clients get the mapped UserMessage.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/onboard/internal/logging"
	"github.com/JonMunkholm/onboard/internal/onboarding"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Set when a fatal parse error finalized a job.
	JobID       *uuid.UUID                 `json:"job_id,omitempty"`
	Diagnostics []onboarding.RowDiagnostic `json:"diagnostics,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, onboarding.ErrMalformedInput), errors.Is(err, onboarding.ErrSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, onboarding.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, onboarding.ErrJobFinalized):
		return http.StatusConflict
	case errors.Is(err, onboarding.ErrTooManyImports):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped message, as an HTMX fragment
// or JSON depending on the request.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorWith(w, r, err, ErrorResponse{})
}

func (s *Server) respondErrorWith(w http.ResponseWriter, r *http.Request, err error, body ErrorResponse) {
	status := statusFor(err)
	msg := onboarding.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := ErrorAlert(msg).Render(r.Context(), w); err != nil {
			log.Error("render error alert", "error", err)
		}
		return
	}

	body.Error = msg.Message
	body.Message = msg.Message
	body.Action = msg.Action
	body.Code = msg.Code
	writeJSON(w, r, status, body)
}

// writeError writes a JSON error for request problems caught before the
// pipeline runs.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", message,
	)
	writeJSON(w, r, status, ErrorResponse{Error: message, Message: message, Code: code})
}

// writeJSON encodes v as JSON. Encoding errors are only logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
