// Package auth authenticates the bearer credential and resolves the
// effective principal for the request. The impersonation credential travels
// in its own header and is verified independently of the bearer token; the
// two never share a signing key.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/platform/middleware/metadata"
	"gatehouse/pkg/requestcontext"
)

// ImpersonationHeader carries the impersonation session credential.
const ImpersonationHeader = "X-Impersonation-Token"

// BearerVerifier validates an access token and returns the authenticated
// principal.
type BearerVerifier interface {
	VerifyAccessToken(raw string) (id.PrincipalID, error)
}

// SessionVerifier validates an impersonation credential and returns the
// session and operator it is bound to.
type SessionVerifier interface {
	Verify(raw string) (id.SessionID, id.PrincipalID, error)
}

// PrincipalResolver maps an authenticated principal plus an optional
// impersonation session to the effective principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, authenticatedID id.PrincipalID, sessionID id.SessionID) (requestcontext.EffectivePrincipal, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth authenticates the bearer token, resolves impersonation when the
// dedicated header is present, and stores the effective principal in the
// context. Requests with no valid bearer credential never reach the handler;
// evaluator-level fail-closed handling covers everything past this point.
func RequireAuth(bearer BearerVerifier, sessions SessionVerifier, resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
					"client", metadata.Describe(r.Header.Get("User-Agent")),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			authenticatedID, err := bearer.VerifyAccessToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
					"client", metadata.Describe(r.Header.Get("User-Agent")),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			var sessionID id.SessionID
			if credential := r.Header.Get(ImpersonationHeader); credential != "" {
				sid, operatorID, err := sessions.Verify(credential)
				if err != nil || operatorID != authenticatedID {
					logger.WarnContext(ctx, "rejected impersonation credential",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid impersonation credential")
					return
				}
				sessionID = sid
			}

			ep, err := resolver.Resolve(ctx, authenticatedID, sessionID)
			if err != nil {
				logger.ErrorContext(ctx, "failed to resolve effective principal",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve principal")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, ep)))
		})
	}
}
