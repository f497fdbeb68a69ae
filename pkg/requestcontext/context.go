// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by middleware and consumed by services. The package stays
// free of net/http so services never pull in transport code. Impersonation
// state is carried here explicitly rather than through any ambient global:
// every evaluator call reads the effective principal from the context it was
// handed.
//
// Usage in services (read values):
//
//	ep, ok := requestcontext.Principal(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithPrincipal(ctx, ep)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "gatehouse/pkg/domain"
)

// EffectivePrincipal is the identity actually used for evaluation, after
// impersonation is accounted for. PrincipalID is never silently blank-filled:
// when no principal could be resolved the whole value is absent from the
// context.
type EffectivePrincipal struct {
	// PrincipalID is the identity evaluations run as.
	PrincipalID id.PrincipalID
	// AuthenticatedID is the identity that presented credentials. Equal to
	// PrincipalID unless impersonation is active with an individual selected.
	AuthenticatedID id.PrincipalID
	// ImpersonationActive is true while an impersonation session is live,
	// regardless of whether a tenant context or individual is selected.
	ImpersonationActive bool
	// TenantContext is the tenant the operator is acting within, when set.
	// Independent axis from ImpersonationActive.
	TenantContext *id.TenantID
	// SessionID is the impersonation session, when active.
	SessionID id.SessionID
}

// Context key types (unexported for encapsulation).
type (
	principalKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	routeKey       struct{}
	methodKey      struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRoute       = routeKey{}
	ContextKeyMethod      = methodKey{}
)

// Principal retrieves the effective principal from the context. The second
// return is false when no principal was resolved; callers must fail closed.
func Principal(ctx context.Context) (EffectivePrincipal, bool) {
	ep, ok := ctx.Value(ContextKeyPrincipal).(EffectivePrincipal)
	return ep, ok
}

// WithPrincipal injects the effective principal into the context.
func WithPrincipal(ctx context.Context, ep EffectivePrincipal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, ep)
}

// RequestID retrieves the request correlation id from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// UserAgent retrieves the normalized User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// Route retrieves the matched route pattern recorded for audit rows.
func Route(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRoute).(string); ok {
		return v
	}
	return ""
}

// WithRoute records the matched route pattern.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ContextKeyRoute, route)
}

// Method retrieves the HTTP method recorded for audit rows.
func Method(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyMethod).(string); ok {
		return v
	}
	return ""
}

// WithMethod records the HTTP method.
func WithMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, ContextKeyMethod, method)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests without injection).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request-time
// middleware and by tests that need deterministic clocks.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
