package web

// errors.go turns pipeline errors into API responses.
//
// The technical error is logged with the request id; the client gets the
// mapped user message and its support code from core.MapError.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrJobInProgress), errors.Is(err, core.ErrJobTerminal):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message. A zero
// status is derived from err.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	if status >= 500 {
		log.Error("request error", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err, "code", msg.Code)
	}

	// Technical detail of server faults stays in the log.
	detail := err.Error()
	if status >= 500 {
		detail = msg.Message
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   detail,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
