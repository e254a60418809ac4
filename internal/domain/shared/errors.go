package shared

import (
	"errors"
	"fmt"
)

// Domain error codes
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeInternal      = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error with the given message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewStorageError wraps a backing store failure
func NewStorageError(op string, err error) *DomainError {
	return &DomainError{
		Code:    CodeInternal,
		Message: op + " failed",
		Err:     err,
	}
}

// Common domain errors
var (
	ErrNotFoundOrNoPermission = NewDomainError(CodeNotFound, "Record not found or no permission")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Record already exists")
	ErrMissingOwner           = NewDomainError(CodeValidation, "Missing userEmail")
	ErrMissingData            = NewDomainError(CodeValidation, "Missing userEmail or data")
	ErrMissingID              = NewDomainError(CodeValidation, "Missing id field in data")
	ErrInvalidBatch           = NewDomainError(CodeValidation, "Missing userEmail or invalid batch array")
)

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == CodeValidation
}
