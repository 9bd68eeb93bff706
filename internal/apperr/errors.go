// Package apperr is the uniform error boundary. Services return classified
// errors; the handler turns any error into a user-facing message and
// severity so callers never inspect internal error types.
package apperr

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Code classifies an error for the boundary.
type Code string

const (
	CodeAuth       Code = "AUTH_ERROR"
	CodeValidation Code = "VALIDATION_ERROR"
	CodeApp        Code = "APP_ERROR"
)

// Severity is the display level of a handled error.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth creates a user-correctable authentication error.
func Auth(message string) *Error {
	return &Error{Code: CodeAuth, Message: message}
}

// Validation creates a malformed-input error.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// Handled is what callers receive from the boundary instead of a raw fault.
type Handled struct {
	UserMessage string   `json:"userMessage"`
	Severity    Severity `json:"severity"`
}

// Handler funnels every failure through one classification point.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a handler that logs unexpected faults through logger.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle classifies err. Auth and validation errors surface their own
// message at warning level; anything else is logged with the context string
// and surfaced as a generic error.
func (h *Handler) Handle(err error, context string) Handled {
	var appErr *Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeAuth, CodeValidation:
			return Handled{UserMessage: appErr.Message, Severity: SeverityWarning}
		}
	}

	h.logger.Error("unexpected error", zap.String("context", context), zap.Error(err))
	return Handled{UserMessage: "an unexpected error occurred", Severity: SeverityError}
}
