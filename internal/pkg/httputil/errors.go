// Package httputil provides HTTP utilities including consistent error responses.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

// ErrorResponse represents a consistent error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes for consistent error identification.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeNotConfigured      = "NOT_CONFIGURED"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
)

// WriteError writes a consistent JSON error response.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details string) {
	sanitizedMessage := SanitizeString(message)
	sanitizedDetails := SanitizeString(details)

	attrs := []any{
		"status", status,
		"code", code,
		"message", sanitizedMessage,
		"path", r.URL.Path,
		"method", r.Method,
	}
	if sanitizedDetails != "" {
		attrs = append(attrs, "details", sanitizedDetails)
	}
	if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("HTTP error", attrs...)
	} else {
		logger.Warn("HTTP error", attrs...)
	}

	resp := ErrorResponse{
		Error:   sanitizedMessage,
		Code:    code,
		Details: sanitizedDetails,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError writes the response matching err's place in the domain error
// taxonomy. Unknown errors become a 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr  *errs.ConfigurationError
		preErr  *errs.PreconditionError
		connErr *errs.ConnectionError
	)

	switch {
	case errors.As(err, &cfgErr):
		WriteError(w, r, http.StatusServiceUnavailable, CodeNotConfigured, err.Error(), cfgErr.Field)
	case errors.As(err, &preErr):
		WriteError(w, r, http.StatusConflict, CodePreconditionFailed, err.Error(), "")
	case errors.As(err, &connErr):
		BadGateway(w, r, "Cannot reach the managed host", err)
	default:
		InternalError(w, r, err)
	}
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, CodeBadRequest, message, "")
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	WriteError(w, r, http.StatusUnauthorized, CodeUnauthorized, message, "")
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Not found"
	}
	WriteError(w, r, http.StatusNotFound, CodeNotFound, message, "")
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "Internal server error", details)
}

// BadGateway writes a 502 Bad Gateway error response.
func BadGateway(w http.ResponseWriter, r *http.Request, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteError(w, r, http.StatusBadGateway, CodeBadGateway, message, details)
}

// RequestTooLarge writes a 413 Request Entity Too Large error response.
func RequestTooLarge(w http.ResponseWriter, r *http.Request, maxSize int64) {
	details := ""
	if maxSize > 0 {
		details = "Maximum allowed size: " + formatBytes(maxSize)
	}
	WriteError(w, r, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large", details)
}

// TooManyRequests writes a 429 Too Many Requests error response.
func TooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Too many requests"
	}
	WriteError(w, r, http.StatusTooManyRequests, CodeTooManyRequests, message, "")
}

// formatBytes formats bytes into human readable format.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%d %cB", b/div, "KMGTPE"[exp])
}
