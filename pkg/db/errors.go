package db

import (
	"errors"
	"fmt"
)

// Store error codes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInternal        = "INTERNAL_ERROR"
)

// StoreError is a structured error returned by the coordination store.
type StoreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StoreError) Error() string {
	return e.Code + ": " + e.Message
}

// NewStoreError creates a new StoreError.
func NewStoreError(code, format string, args ...any) *StoreError {
	return &StoreError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the StoreError code of err, or CodeInternal.
func ErrorCode(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
