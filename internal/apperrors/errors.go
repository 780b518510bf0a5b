package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates that the resource is not in a state that permits the operation.
var ErrConflict = errors.New("resource state conflict")

// ErrUnauthorized indicates the caller is not a participant of the session they addressed.
var ErrUnauthorized = errors.New("not a session participant")

// ErrReaderUnavailable indicates the reader has no open slot or is already in a live session.
var ErrReaderUnavailable = errors.New("reader unavailable")

// ErrInsufficientFunds indicates the client balance cannot cover the next charge.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrSystemFault indicates an internal storage or transient failure. It is terminal for the
// affected session but is reported to end users generically, never as a balance problem.
var ErrSystemFault = errors.New("system fault")

// ErrInternal indicates an unexpected internal error.
var ErrInternal = errors.New("internal error")

// AppError carries an HTTP-ish status code alongside the wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError wrapping the given cause.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
