package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"occasio/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeAlreadyRegistered  = "already_registered"
	ErrCodeEventFull          = "event_full"
	ErrCodeRegistrationClosed = "registration_closed"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeEmailNotVerified   = "email_not_verified"
	ErrCodeInternalError      = "internal_error"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// Warnings carries non-fatal problems of a successful request.
// swagger:model APIResponse
type APIResponse struct {
	Data     any       `json:"data"`
	Error    *APIError `json:"error"`
	Warnings []string  `json:"warnings,omitempty"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any, warnings ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Warnings: warnings})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string // empty: use the sentinel's own text
}

// serviceErrors is checked in order; the first sentinel found in the chain wins.
var serviceErrors = []errorMapping{
	{domain.ErrAlreadyRegistered, http.StatusConflict, ErrCodeAlreadyRegistered, ""},
	{domain.ErrEventFull, http.StatusBadRequest, ErrCodeEventFull, ""},
	{domain.ErrRegistrationClosed, http.StatusBadRequest, ErrCodeRegistrationClosed, ""},
	{domain.ErrInvalidState, http.StatusBadRequest, ErrCodeInvalidState, ""},
	{domain.ErrInvalidTransition, http.StatusBadRequest, ErrCodeInvalidTransition, ""},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, ""},
	{domain.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized, ""},
	{domain.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, ""},
	{domain.ErrEmailNotVerified, http.StatusForbidden, ErrCodeEmailNotVerified, ""},
	{domain.ErrDuplicateEmail, http.StatusConflict, ErrCodeConflict, ""},
	{domain.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, ""},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, ""},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{domain.ErrNotificationFailure, http.StatusInternalServerError, ErrCodeInternalError, "could not send email, please try again"},
}

// clientMessage returns the part of a validation or not-found error that is
// safe to show: the wrapped detail when the error was built as
// fmt.Errorf("%w: detail", sentinel), the sentinel text otherwise.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return sentinel.Error()
}

// WriteServiceError maps a service error to its status and code. Unknown
// errors are logged and answered with a generic 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = clientMessage(err, m.err)
			}
			if m.status >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
			}
			WriteJSONError(w, m.status, m.code, msg)
			return
		}
	}
	logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
