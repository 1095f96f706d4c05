package errors

import "fmt"

// ErrorCode represents a venueindex error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrUnsupported    ErrorCode = "UNSUPPORTED"     // 422
	ErrPersistence    ErrorCode = "PERSISTENCE"     // 500, storage unavailable or corrupt
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// IndexError represents a structured error with code, status, and details.
type IndexError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *IndexError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *IndexError {
	return &IndexError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an event cannot be found.
func NewNotFound(eventID string) *IndexError {
	return &IndexError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("event not found: %s", eventID),
		Details: map[string]any{"event_id": eventID},
	}
}

// NewUnsupported creates a 422 error for a value the index does not understand,
// such as an unknown store backend or source type.
func NewUnsupported(field, value string) *IndexError {
	return &IndexError{
		Code:    ErrUnsupported,
		Status:  422,
		Message: fmt.Sprintf("unsupported %s: %q", field, value),
		Details: map[string]any{"field": field, "value": value},
	}
}

// NewPersistence wraps a storage failure. op names the failed step ("load", "save", ...).
func NewPersistence(op string, err error) *IndexError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &IndexError{
		Code:    ErrPersistence,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *IndexError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &IndexError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is an IndexError with the given code.
func Is(err error, code ErrorCode) bool {
	if iErr, ok := err.(*IndexError); ok {
		return iErr.Code == code
	}
	return false
}
