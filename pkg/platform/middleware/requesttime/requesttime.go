// Package requesttime pins a single "now" for each request. Audit rows,
// grant window checks and export timestamps within one request all observe
// the same instant.
package requesttime

import (
	"net/http"
	"time"

	"gatehouse/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context for consistent time references throughout.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
