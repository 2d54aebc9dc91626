// Package errors defines the service error taxonomy and its mapping to
// HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration    = errors.New("invalid index configuration")
	ErrNotReady         = errors.New("index not ready")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrSnapshotLoad     = errors.New("snapshot load failed")
	ErrStoreUnavailable = errors.New("person store unavailable")
	ErrNotFound         = errors.New("record not found")
	ErrInternal         = errors.New("internal error")
)

// AppError decorates a sentinel with a message and an explicit HTTP
// status code.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// NotReadyError is returned for search requests that arrive before the
// index build has completed. Progress is the current build percentage.
type NotReadyError struct {
	Progress int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("index not ready: build at %d%%", e.Progress)
}

func (e *NotReadyError) Unwrap() error {
	return ErrNotReady
}

// HTTPStatusCode maps an error to the HTTP status the handlers should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
