package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest          = "BAD_REQUEST"
	CodeConflict            = "CONFLICT"
	CodeAlreadyRated        = "ALREADY_RATED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeUnprocessable       = "UNPROCESSABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is the error type returned across service boundaries. Status is the
// HTTP status the transport should answer with.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, message string, status int, err error) *Error {
	return &Error{Code: code, Message: message, Status: status, Err: err}
}

func NotFound(resource string, err error) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func BadRequest(message string, err error) *Error {
	return New(CodeBadRequest, message, http.StatusBadRequest, err)
}

func Conflict(message string, err error) *Error {
	return New(CodeConflict, message, http.StatusConflict, err)
}

func AlreadyRated(saleID string, err error) *Error {
	return New(CodeAlreadyRated, fmt.Sprintf("sale %s already rated", saleID), http.StatusConflict, err)
}

func InvalidTransition(from, to string, err error) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot move from %s to %s", from, to), http.StatusConflict, err)
}

func InsufficientBalance(message string, err error) *Error {
	return New(CodeInsufficientBalance, message, http.StatusPaymentRequired, err)
}

func Unprocessable(message string, err error) *Error {
	return New(CodeUnprocessable, message, http.StatusUnprocessableEntity, err)
}

func Internal(message string, err error) *Error {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

// Is reports whether err carries an *Error with the given code.
func Is(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// StatusOf maps err to an HTTP status, 500 for anything that is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the code of err, CodeInternal for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
