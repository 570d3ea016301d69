package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeLoad       ErrorType = "LOAD"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeQuery      ErrorType = "QUERY"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeAudit      ErrorType = "AUDIT"
	ErrTypeNumeric    ErrorType = "NUMERIC"
)

// Numeric edge cases reported by the stats package.
var (
	ErrEmptyInput           = errors.New("empty input")
	ErrInvalidInput         = errors.New("invalid input")
	ErrLengthMismatch       = errors.New("length mismatch")
	ErrSingular             = errors.New("singular design matrix")
	ErrNoConvergence        = errors.New("optimizer did not converge")
	ErrInsufficientClusters = errors.New("at least two clusters required")
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// Helper functions for common error types

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewLoadError creates an error for a failed raw table load
func NewLoadError(table string, cause error) *AppError {
	return NewAppError(ErrTypeLoad, fmt.Sprintf("failed to load table %s", table), cause).
		WithContext("table", table)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewQueryError creates an error for a failed SQL statement
func NewQueryError(statement string, cause error) *AppError {
	return NewAppError(ErrTypeQuery, fmt.Sprintf("query %s failed", statement), cause).
		WithContext("statement", statement)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewAuditError creates an audit error
func NewAuditError(message string, cause error) *AppError {
	return NewAppError(ErrTypeAudit, message, cause)
}

// NewNumericError wraps a stats failure with the name of the recipe that produced it
func NewNumericError(recipe string, cause error) *AppError {
	return NewAppError(ErrTypeNumeric, fmt.Sprintf("%s failed", recipe), cause).
		WithContext("recipe", recipe)
}
