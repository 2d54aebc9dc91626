package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Timeout bounds each request with a context deadline. If the handler
// has not produced any output when the deadline fires, the client gets
// a 504; a handler that already started writing is left alone.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if tw.wrote.CompareAndSwap(false, true) {
					slog.Warn("request deadline exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

// deadlineWriter flips wrote on first output so the timeout path never
// races the handler into a second response.
type deadlineWriter struct {
	http.ResponseWriter
	wrote atomic.Bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	if dw.wrote.CompareAndSwap(false, true) {
		dw.ResponseWriter.WriteHeader(code)
	}
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.wrote.Store(true)
	return dw.ResponseWriter.Write(b)
}
