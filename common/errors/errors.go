package errors

import (
	"fmt"
	"net/http"
)

// Error is an application error carrying the HTTP status to answer with and
// a message that is safe to show to callers. Err holds the internal cause
// and is never serialized.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
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

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, message, err)
}

func NotFound(message string, err error) *Error {
	return New(http.StatusNotFound, message, err)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

func Conflict(message string, err error) *Error {
	return New(http.StatusConflict, message, err)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}
