package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a failure carrying the status and code the API reports for it.
// Err is the internal cause and never reaches the response body.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetails attaches per-field details, typically validation failures.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Describe maps err onto the status and body the API reports. Errors that are
// not AppErrors become an opaque 500 and ok is false so the caller can log them.
func Describe(err error) (status int, body ErrorBody, ok bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal server error"}, false
	}
	status = appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := appErr.Code
	if code == "" {
		code = "INTERNAL"
	}
	return status, ErrorBody{Code: code, Message: appErr.Message, Details: appErr.Details}, true
}
