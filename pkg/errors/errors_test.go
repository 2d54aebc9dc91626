package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidQuery, http.StatusBadRequest, "limit must be between 1 and %d", 100)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Error("AppError does not unwrap to its sentinel")
	}
	if err.Message != "limit must be between 1 and 100" {
		t.Errorf("message = %q", err.Message)
	}

	wrapped := fmt.Errorf("handling request: %w", err)
	var appErr *AppError
	if !errors.As(wrapped, &appErr) || appErr.StatusCode != http.StatusBadRequest {
		t.Errorf("wrapped error lost the AppError: %v", wrapped)
	}
}

func TestNotReadyError(t *testing.T) {
	err := &NotReadyError{Progress: 37}
	if !errors.Is(err, ErrNotReady) {
		t.Error("NotReadyError does not unwrap to ErrNotReady")
	}
	if got := err.Error(); got != "index not ready: build at 37%" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(ErrStoreUnavailable, http.StatusServiceUnavailable, "down"), http.StatusServiceUnavailable},
		{&NotReadyError{Progress: 50}, http.StatusServiceUnavailable},
		{ErrInvalidQuery, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
		{fmt.Errorf("outer: %w", ErrInvalidQuery), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
