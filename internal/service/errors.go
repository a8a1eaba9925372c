// Package service implements the business logic that coordinates across
// repositories: account registration, membership resolution, the deal lifecycle
// engine, and the cached analytics rollups. Services return *Error values with a
// kind that maps onto an HTTP status; handlers translate them without inspecting
// messages.
package service

import (
	"errors"
	"net/http"
)

// ErrorKind classifies a domain failure.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindUnauthorized
	KindPermissionDenied
	KindNotFound
	KindConflict
)

// Error is a domain failure with a client-safe message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Validation creates a 400-class error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unauthorized creates a 401-class error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// PermissionDenied creates a 403-class error.
func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

// NotFound creates a 404-class error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict creates a 409-class error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// AsError extracts a domain error from an error chain.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
