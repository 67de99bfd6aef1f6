package httpmiddleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns a middleware that caps each request's context at d. Storage
// calls inherit the deadline, so a stalled backend surfaces as a context
// deadline instead of a hung request.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
