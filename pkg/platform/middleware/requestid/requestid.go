// Package requestid assigns a correlation id to every request. An incoming
// X-Request-ID is trusted for correlation across services; absent one, a new
// uuid is minted. The id is echoed back on the response.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"gatehouse/pkg/requestcontext"
)

const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
