package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeProtocol   = "PROTOCOL_ERROR"
	ErrCodeRender     = "RENDER_ERROR"
	ErrCodeUpstream   = "UPSTREAM_ERROR"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeCancelled  = "CANCELLED"
)

// DiagenError is the structured error type for all diagen operations.
type DiagenError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DiagenError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DiagenError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DiagenError.
func NewError(code, message string) *DiagenError {
	return &DiagenError{Code: code, Message: message}
}

// NewErrorf creates a new DiagenError with a formatted message.
func NewErrorf(code, format string, args ...any) *DiagenError {
	return &DiagenError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *DiagenError) WithCause(err error) *DiagenError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DiagenError) WithDetails(details map[string]any) *DiagenError {
	e.Details = details
	return e
}
