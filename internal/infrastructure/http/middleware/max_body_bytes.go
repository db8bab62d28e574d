// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rezkam/shopfloor/internal/infrastructure/http/response"
)

// MaxBodyBytes limits request bodies to maxBytes. Requests that declare a
// larger Content-Length are rejected with 413 before the handler runs; bodies
// without a usable Content-Length are capped by http.MaxBytesReader and the
// handler reports the *http.MaxBytesError when decoding.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				slog.WarnContext(r.Context(), "Request body size limit exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"content_length", r.ContentLength,
					"limit", maxBytes)
				response.PayloadTooLarge(w)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
