package principal

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gatehouse/internal/audit"
	"gatehouse/internal/platform/metrics"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// Resolver owns impersonation session lifecycle and maps an authenticated
// principal plus an optional session to the effective principal used for
// every evaluation. It is the only component that computes effective
// identity; callers thread the result through requestcontext.
type Resolver struct {
	principals Store
	sessions   SessionStore
	ledger     audit.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(principals Store, sessions SessionStore, ledger audit.Recorder, opts ...ResolverOption) *Resolver {
	r := &Resolver{principals: principals, sessions: sessions, ledger: ledger}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Start opens an impersonation session for the operator. Reason and duration
// are both required; the session expires after DurationHours.
func (r *Resolver) Start(ctx context.Context, operatorID id.PrincipalID, req StartRequest) (*ImpersonationSession, error) {
	if operatorID.IsNil() {
		return nil, derrors.New(derrors.CodeValidation, "operator principal is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, derrors.New(derrors.CodeValidation, "impersonation reason is required")
	}
	if req.DurationHours <= 0 {
		return nil, derrors.New(derrors.CodeValidation, "impersonation duration_hours must be positive")
	}

	if req.IndividualID != nil {
		individual, err := r.principals.FindByID(ctx, *req.IndividualID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, derrors.New(derrors.CodeNotFound, "impersonated individual not found")
			}
			return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load individual")
		}
		if !individual.Active {
			return nil, derrors.New(derrors.CodeValidation, "cannot impersonate an inactive principal")
		}
	}

	now := requestcontext.Now(ctx)
	session := &ImpersonationSession{
		ID:           id.NewSessionID(),
		OperatorID:   operatorID,
		TenantID:     req.TenantID,
		IndividualID: req.IndividualID,
		Reason:       strings.TrimSpace(req.Reason),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(req.DurationHours) * time.Hour),
	}
	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to create impersonation session")
	}

	r.recordTransition(ctx, audit.ActionImpersonationStarted, operatorID, session)
	if r.metrics != nil {
		r.metrics.ImpersonationStarts.Inc()
	}
	return session, nil
}

// Stop ends a session immediately. Stopping a session that is not active is
// an invalid transition, not a no-op, so operator tooling surfaces races.
func (r *Resolver) Stop(ctx context.Context, operatorID id.PrincipalID, sessionID id.SessionID) error {
	session, err := r.sessions.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeInvalidTransition, "impersonation session is not active")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "failed to load impersonation session")
	}
	if err := r.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeInvalidTransition, "impersonation session is not active")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "failed to delete impersonation session")
	}

	r.recordTransition(ctx, audit.ActionImpersonationStopped, operatorID, session)
	if r.metrics != nil {
		r.metrics.ImpersonationStops.Inc()
	}
	return nil
}

// Status returns the session when it is still active.
func (r *Resolver) Status(ctx context.Context, sessionID id.SessionID) (*ImpersonationSession, error) {
	session, err := r.sessions.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "impersonation session is not active")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load impersonation session")
	}
	return session, nil
}

// Resolve computes the effective principal for this request. The effective
// id is the impersonated individual when a session is active and an
// individual is selected; otherwise it is the authenticated id. It is never
// blank-filled: a nil authenticated id resolves to an error.
func (r *Resolver) Resolve(ctx context.Context, authenticatedID id.PrincipalID, sessionID id.SessionID) (requestcontext.EffectivePrincipal, error) {
	if authenticatedID.IsNil() {
		return requestcontext.EffectivePrincipal{}, derrors.New(derrors.CodeValidation, "authenticated principal is required")
	}

	ep := requestcontext.EffectivePrincipal{
		PrincipalID:     authenticatedID,
		AuthenticatedID: authenticatedID,
	}
	if sessionID.IsNil() {
		return ep, nil
	}

	session, err := r.sessions.Find(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Session expired or stopped: fall back to the authenticated
		// principal with no impersonation state.
		return ep, nil
	}
	if err != nil {
		return requestcontext.EffectivePrincipal{}, derrors.Wrap(err, derrors.CodeInternal, "failed to load impersonation session")
	}

	ep.ImpersonationActive = true
	ep.SessionID = session.ID
	ep.TenantContext = session.TenantID
	if session.IndividualID != nil {
		ep.PrincipalID = *session.IndividualID
	}
	return ep, nil
}

func (r *Resolver) recordTransition(ctx context.Context, action string, operatorID id.PrincipalID, session *ImpersonationSession) {
	metadata := map[string]string{
		"reason":     session.Reason,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if session.IndividualID != nil {
		metadata["individual_id"] = session.IndividualID.String()
	}
	entry := audit.Entry{
		PrincipalID:          operatorID,
		EffectivePrincipalID: operatorID,
		Action:               action,
		Decision:             audit.DecisionAllow,
		Reason:               action,
		Route:                requestcontext.Route(ctx),
		RequestIP:            requestcontext.ClientIP(ctx),
		UserAgent:            requestcontext.UserAgent(ctx),
		SessionID:            session.ID.String(),
		TenantID:             session.TenantID,
		Metadata:             metadata,
	}
	if _, err := r.ledger.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to record impersonation transition",
			"action", action,
			"session_id", session.ID.String(),
			"error", err,
		)
	}
	r.logger.InfoContext(ctx, action,
		"log_type", "audit",
		"session_id", session.ID.String(),
		"operator_id", operatorID.String(),
		"duration_hours", strconv.Itoa(int(session.ExpiresAt.Sub(session.CreatedAt).Hours())),
	)
}
