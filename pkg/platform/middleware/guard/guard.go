// Package guard blocks platform-operator routes while impersonation is
// active. The check runs before any evaluation: an operator browsing as a
// tenant must not see operator surfaces at all, regardless of what their own
// grants would allow.
package guard

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"gatehouse/internal/platform/metrics"
	"gatehouse/pkg/requestcontext"
)

// OperatorRoutes denies requests whose path starts with any of the
// configured operator prefixes while the request carries an active
// impersonation session.
func OperatorRoutes(prefixes []string, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ep, ok := requestcontext.Principal(ctx)
			if ok && ep.ImpersonationActive && matches(r.URL.Path, prefixes) {
				logger.WarnContext(ctx, "operator route blocked during impersonation",
					"log_type", "audit",
					"path", r.URL.Path,
					"session_id", ep.SessionID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				if m != nil {
					m.OperatorRouteBlocked.Inc()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = fmt.Fprint(w, `{"error":"forbidden"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
