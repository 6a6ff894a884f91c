package core

import (
	"errors"
	"fmt"
)

// Code classifies a failure for the callable surface.
type Code string

const (
	CodeUnauthenticated    Code = "unauthenticated"
	CodeInvalidArgument    Code = "invalid-argument"
	CodeFailedPrecondition Code = "failed-precondition"
	CodePermissionDenied   Code = "permission-denied"
	CodeNotFound           Code = "not-found"
	CodeInternal           Code = "internal"
)

// Error is a classified failure returned by every service operation.
type Error struct {
	Code    Code
	Message string
	// Details is optional structured data returned to the caller (e.g. the gateway record).
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by code, so errors.Is(err, ErrInternal) holds for any internal failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

var (
	ErrUnauthenticated    = &Error{Code: CodeUnauthenticated}
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument}
	ErrFailedPrecondition = &Error{Code: CodeFailedPrecondition}
	ErrPermissionDenied   = &Error{Code: CodePermissionDenied}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrInternal           = &Error{Code: CodeInternal}
)

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func unauthenticated(message string) *Error {
	return newError(CodeUnauthenticated, message, nil)
}

func invalidArgument(message string) *Error {
	return newError(CodeInvalidArgument, message, nil)
}

func internal(message string, err error) *Error {
	return newError(CodeInternal, message, err)
}

// CodeOf returns the classification of err, CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// asError passes a classified error through, wrapping anything else as internal.
func asError(err error, message string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internal(message, err)
}
