package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-eufy/internal/bridges/eufy"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnsupported    = "unsupported"
	ErrCodeUnreachable    = "device_unreachable"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCommandError maps a bridge execution error onto an HTTP response.
func writeCommandError(w http.ResponseWriter, err error) {
	// Timeouts arrive wrapped in transport errors; check them first.
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, ErrCodeUnreachable, err.Error())
		return
	}

	switch eufy.AckCodeFor(err) {
	case eufy.ErrCodeNotConfigured:
		writeNotFound(w, "device not found")
	case eufy.ErrCodeInvalidCommand, eufy.ErrCodeInvalidParameters:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case eufy.ErrCodeUnsupported:
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupported, err.Error())
	case eufy.ErrCodeDeviceUnreachable, eufy.ErrCodeProtocolError:
		writeError(w, http.StatusBadGateway, ErrCodeUnreachable, err.Error())
	default:
		writeInternalError(w, "command failed")
	}
}
