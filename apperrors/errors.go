// Package apperrors carries an HTTP status alongside an error so that a
// single middleware can render every failure the same way.
package apperrors

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap attaches a status and client-facing message to err.
func Wrap(err error, status int, message string) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return New(http.StatusConflict, message) }

func Internal(err error) *Error {
	return Wrap(err, http.StatusInternalServerError, "Internal server error")
}

// StatusOf returns the status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err. Errors without a
// status never leak their text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
