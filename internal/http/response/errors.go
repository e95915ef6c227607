package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// TransitionDetails names both sides of a rejected status change.
type TransitionDetails struct {
	Current   domain.BookingStatus `json:"current"`
	Requested domain.BookingStatus `json:"requested"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code string, details any) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// Common error codes
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnsupportedMedia  = "UNSUPPORTED_MEDIA"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// FromError maps a service error onto a status and code. Token rejections
// all look the same from outside.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	var te *domain.InvalidTransitionError
	switch {
	case errors.As(err, &te):
		WriteErrorWithDetails(w, http.StatusUnprocessableEntity, "status transition not allowed", CodeInvalidTransition,
			TransitionDetails{Current: te.Current, Requested: te.Requested})
	case domain.IsAccessDenied(err):
		AccessDenied(w)
	case errors.Is(err, domain.ErrValidation):
		BadRequest(w, validationMessage(err))
	case errors.Is(err, domain.ErrInvalidCredentials):
		Unauthorized(w, "invalid credentials")
	case errors.Is(err, domain.ErrUnsupportedMedia):
		WriteError(w, http.StatusUnsupportedMediaType, "file type not allowed", CodeUnsupportedMedia)
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "not found")
	case errors.Is(err, domain.ErrConflict):
		Conflict(w, "the resource was changed by another request; reload and retry")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "request timed out", CodeInternalError)
	default:
		logger.ErrorContext(ctx, "Request failed", "error", err)
		InternalError(w, "internal error")
	}
}

// validationMessage strips the sentinel prefix that domain.Validationf adds.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(domain.ErrValidation.Error())+2:]
	}
	return msg
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func AccessDenied(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, "access denied", CodeAccessDenied)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message, CodeConflict)
}
