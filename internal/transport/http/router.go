// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services and never re-implement evaluation rules; every protected
// route calls the evaluator before doing anything else.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/policy"
	"gatehouse/internal/principal"
	"gatehouse/internal/proof"
	"gatehouse/internal/snapshot"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/platform/middleware/auth"
	"gatehouse/pkg/platform/middleware/guard"
	"gatehouse/pkg/platform/middleware/metadata"
	"gatehouse/pkg/platform/middleware/requestid"
	"gatehouse/pkg/platform/middleware/requesttime"
	"gatehouse/pkg/requestcontext"
)

// Evaluator is the capability evaluator slice the transport needs.
type Evaluator interface {
	HasCapability(ctx context.Context, effectivePrincipalID id.PrincipalID, capabilityCode string, scopeID id.ScopeID) (bool, error)
	CanAccessResource(ctx context.Context, effectivePrincipalID id.PrincipalID, capabilityCode string, scopeID id.ScopeID, resourceTable, resourceID string) (bool, error)
}

// SnapshotService aggregates reachable capabilities for the caller.
type SnapshotService interface {
	Snapshot(ctx context.Context) (*snapshot.CapabilitySnapshot, error)
}

// ImpersonationService owns session lifecycle.
type ImpersonationService interface {
	Start(ctx context.Context, operatorID id.PrincipalID, req principal.StartRequest) (*principal.ImpersonationSession, error)
	Stop(ctx context.Context, operatorID id.PrincipalID, sessionID id.SessionID) error
	Status(ctx context.Context, sessionID id.SessionID) (*principal.ImpersonationSession, error)
}

// ProofService builds export bundles.
type ProofService interface {
	BuildProofExport(ctx context.Context, tenantID id.TenantID, runID string, format proof.Format, exportedAtOverride *time.Time) (*proof.Bundle, error)
}

// ScopeDirectory resolves a tenant to its scope for capability gating.
type ScopeDirectory interface {
	TenantScopeID(ctx context.Context, tenantID id.TenantID) (id.ScopeID, error)
}

// Handler wires the engine's endpoints to its services.
type Handler struct {
	authz         Evaluator
	snapshots     SnapshotService
	impersonation ImpersonationService
	sessionTokens *principal.TokenIssuer
	exporter      ProofService
	policies      policy.Store
	scopes        ScopeDirectory
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewHandler(
	authz Evaluator,
	snapshots SnapshotService,
	impersonation ImpersonationService,
	sessionTokens *principal.TokenIssuer,
	exporter ProofService,
	policies policy.Store,
	scopes ScopeDirectory,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		authz:         authz,
		snapshots:     snapshots,
		impersonation: impersonation,
		sessionTokens: sessionTokens,
		exporter:      exporter,
		policies:      policies,
		scopes:        scopes,
		logger:        logger,
		metrics:       m,
	}
}

// NewRouter assembles the middleware chain and mounts all routes. Order
// matters: request id and time first, client metadata before anything that
// writes audit rows, authentication before the impersonation route guard.
func NewRouter(h *Handler, cfg config.Server, bearer auth.BearerVerifier, resolver auth.PrincipalResolver) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(routeRecorder)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Stop and status authenticate solely with the impersonation credential;
	// the bearer token never appears on these requests.
	r.Post("/impersonation/stop", h.HandleImpersonationStop)
	r.Get("/impersonation/status", h.HandleImpersonationStatus)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireAuth(bearer, h.sessionTokens, resolver, h.logger))
		pr.Use(guard.OperatorRoutes(cfg.OperatorRoutePrefixes, h.logger, h.metrics))

		pr.Get("/capabilities/snapshot", h.HandleSnapshot)
		pr.Post("/impersonation/start", h.HandleImpersonationStart)
		pr.Get("/exports/proof", h.HandleProofExport)
		pr.Post("/authz/check", h.HandleCheck)
		pr.Post("/authz/check-resource", h.HandleCheckResource)
		pr.Put("/platform/policies", h.HandlePolicyUpsert)
	})

	return r
}

func routeRecorder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRoute(r.Context(), r.URL.Path)
		ctx = requestcontext.WithMethod(ctx, r.Method)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
