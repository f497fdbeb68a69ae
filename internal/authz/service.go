// Package authz is the capability evaluator. Both entry points are
// fail-closed: any ambiguity, absence, or store failure resolves to deny, and
// every call appends exactly one audit ledger entry before its result is
// observable to the caller.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gatehouse/internal/audit"
	"gatehouse/internal/grant"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/principal"
	"gatehouse/internal/scope"
	id "gatehouse/pkg/domain"
	txcontext "gatehouse/pkg/platform/tx"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// Catalog is the capability vocabulary the evaluator consults.
type Catalog interface {
	KnownCapability(code string) bool
	RoleHasCapability(roleCode, capabilityCode string) bool
}

// Service evaluates capability checks. It keeps the rules centralized and
// testable; transports and domain handlers never re-implement any of them.
type Service struct {
	principals principal.Store
	scopes     scope.Store
	catalog    Catalog
	grants     grant.Store
	ledger     audit.Recorder
	db         *sql.DB
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDB turns on transactional evaluation for SQL-backed stores: the grant
// reads and the audit append of one decision run in a single transaction, so a
// revocation committing mid-evaluation cannot yield an allow whose audit row
// was recorded against grants the caller never saw.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

func New(principals principal.Store, scopes scope.Store, catalog Catalog, grants grant.Store, ledger audit.Recorder, opts ...Option) *Service {
	s := &Service{
		principals: principals,
		scopes:     scopes,
		catalog:    catalog,
		grants:     grants,
		ledger:     ledger,
		tracer:     otel.Tracer("gatehouse/authz"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// outcome is an internal evaluation result prior to auditing.
type outcome struct {
	allowed bool
	reason  string
	// tenantID is filled from the target scope when known, for the audit row.
	tenantID *id.TenantID
}

// HasCapability reports whether the effective principal holds the capability
// at the scope, via a role grant at the scope or any of its ancestors.
func (s *Service) HasCapability(ctx context.Context, effectivePrincipalID id.PrincipalID, capabilityCode string, scopeID id.ScopeID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "authz.HasCapability",
		trace.WithAttributes(attribute.String("capability", capabilityCode)))
	defer span.End()

	return s.decide(ctx, func(ctx context.Context) (bool, error) {
		out := s.evaluateCapability(ctx, effectivePrincipalID, capabilityCode, scopeID)
		return s.record(ctx, audit.Entry{
			EffectivePrincipalID: effectivePrincipalID,
			Action:               audit.ActionCapabilityCheck,
			CapabilityCode:       capabilityCode,
			ScopeID:              &scopeID,
			TenantID:             out.tenantID,
		}, out)
	})
}

// CanAccessResource reports whether the effective principal may perform the
// capability on one concrete resource: either through the scope path or
// through an explicit resource grant. The two paths stay separate so resource
// grants remain narrower and separately auditable.
func (s *Service) CanAccessResource(ctx context.Context, effectivePrincipalID id.PrincipalID, capabilityCode string, scopeID id.ScopeID, resourceTable, resourceID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "authz.CanAccessResource",
		trace.WithAttributes(
			attribute.String("capability", capabilityCode),
			attribute.String("resource_table", resourceTable),
		))
	defer span.End()

	return s.decide(ctx, func(ctx context.Context) (bool, error) {
		entry := audit.Entry{
			EffectivePrincipalID: effectivePrincipalID,
			Action:               audit.ActionResourceAccessCheck,
			CapabilityCode:       capabilityCode,
			ScopeID:              &scopeID,
			ResourceTable:        resourceTable,
			ResourceID:           resourceID,
		}

		if !grant.KnownResourceTable(resourceTable) {
			return s.record(ctx, entry, outcome{reason: audit.ReasonUnknownResourceTable})
		}

		out := s.evaluateCapability(ctx, effectivePrincipalID, capabilityCode, scopeID)
		entry.TenantID = out.tenantID
		if out.allowed {
			return s.record(ctx, entry, out)
		}
		// Principal and capability problems are terminal: a resource grant can
		// never resurrect an unknown principal or an unknown capability code.
		if out.reason == audit.ReasonNoEffectivePrincipal || out.reason == audit.ReasonUnknownCapability || out.reason == audit.ReasonEvaluationError {
			return s.record(ctx, entry, out)
		}

		asOf := requestcontext.Now(ctx)
		overrides, err := s.grants.ResourceGrantsFor(ctx, effectivePrincipalID, resourceTable, resourceID, asOf)
		if err != nil {
			s.logger.ErrorContext(ctx, "resource grant lookup failed", "error", err)
			return s.record(ctx, entry, outcome{reason: audit.ReasonEvaluationError, tenantID: out.tenantID})
		}
		for _, o := range overrides {
			if o.CapabilityCode == capabilityCode {
				return s.record(ctx, entry, outcome{allowed: true, reason: audit.ReasonResourceGrant, tenantID: out.tenantID})
			}
		}
		return s.record(ctx, entry, out)
	})
}

// decide runs one evaluation. With a database configured, the whole
// evaluation, grant reads through the audit append, shares one transaction
// threaded via txcontext; the transaction commits before the caller observes
// the decision. Begin or commit failure fails closed with no decision leaked.
func (s *Service) decide(ctx context.Context, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if s.db == nil {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "evaluation transaction begin failed, denying", "error", err)
		s.metrics.IncrementDecision(string(audit.DecisionDeny), audit.ReasonEvaluationError)
		return false, err
	}
	allowed, err := fn(txcontext.WithTx(ctx, sqlTx))
	if err != nil {
		_ = sqlTx.Rollback()
		return false, err
	}
	if err := sqlTx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "evaluation transaction commit failed, denying", "error", err)
		s.metrics.IncrementDecision(string(audit.DecisionDeny), audit.ReasonEvaluationError)
		return false, err
	}
	return allowed, nil
}

// evaluateCapability runs the scope-path rules without touching the ledger.
// Rule priority (fail-fast, each reason distinct):
//  1. Effective principal must exist and be active.
//  2. Capability code must be part of the vocabulary.
//  3. Target scope must exist.
//  4. Some active grant's role bundle must contain the capability at an
//     ancestor-or-self scope.
func (s *Service) evaluateCapability(ctx context.Context, principalID id.PrincipalID, capabilityCode string, scopeID id.ScopeID) outcome {
	if principalID.IsNil() {
		return outcome{reason: audit.ReasonNoEffectivePrincipal}
	}
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return outcome{reason: audit.ReasonNoEffectivePrincipal}
		}
		s.logger.ErrorContext(ctx, "principal lookup failed", "error", err)
		return outcome{reason: audit.ReasonEvaluationError}
	}
	if !p.Active {
		return outcome{reason: audit.ReasonNoEffectivePrincipal}
	}

	if !s.catalog.KnownCapability(capabilityCode) {
		return outcome{reason: audit.ReasonUnknownCapability}
	}

	target, err := s.scopes.FindByID(ctx, scopeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return outcome{reason: audit.ReasonUnknownScope}
		}
		s.logger.ErrorContext(ctx, "scope lookup failed", "error", err)
		return outcome{reason: audit.ReasonEvaluationError}
	}

	asOf := requestcontext.Now(ctx)
	grants, err := s.grants.GrantsFor(ctx, principalID, asOf)
	if err != nil {
		s.logger.ErrorContext(ctx, "grant lookup failed", "error", err)
		return outcome{reason: audit.ReasonEvaluationError, tenantID: target.TenantID}
	}

	chain, err := s.scopes.AncestorChain(ctx, scopeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "ancestor chain lookup failed", "error", err)
		return outcome{reason: audit.ReasonEvaluationError, tenantID: target.TenantID}
	}
	ancestors := make(map[id.ScopeID]struct{}, len(chain))
	for _, sc := range chain {
		ancestors[sc] = struct{}{}
	}

	for _, g := range grants {
		if _, ok := ancestors[g.ScopeID]; !ok {
			continue
		}
		if s.catalog.RoleHasCapability(g.RoleCode, capabilityCode) {
			return outcome{allowed: true, reason: audit.ReasonGranted, tenantID: target.TenantID}
		}
	}
	return outcome{reason: audit.ReasonNoMatchingGrant, tenantID: target.TenantID}
}

// record finishes the entry from request context, appends it, and only then
// returns the decision. A ledger failure fails closed: the caller sees deny
// and an error, never an unaudited allow.
func (s *Service) record(ctx context.Context, entry audit.Entry, out outcome) (bool, error) {
	entry.Decision = audit.DecisionDeny
	if out.allowed {
		entry.Decision = audit.DecisionAllow
	}
	entry.Reason = out.reason
	entry.Route = requestcontext.Route(ctx)
	entry.Method = requestcontext.Method(ctx)
	entry.RequestIP = requestcontext.ClientIP(ctx)
	entry.UserAgent = requestcontext.UserAgent(ctx)
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		entry.Metadata["request_id"] = requestID
	}
	if ep, ok := requestcontext.Principal(ctx); ok {
		entry.PrincipalID = ep.AuthenticatedID
		if ep.ImpersonationActive {
			entry.SessionID = ep.SessionID.String()
		}
		if entry.TenantID == nil {
			entry.TenantID = ep.TenantContext
		}
	} else {
		entry.PrincipalID = entry.EffectivePrincipalID
	}

	if _, err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed, denying",
			"action", entry.Action,
			"capability", entry.CapabilityCode,
			"error", err,
		)
		s.metrics.IncrementDecision(string(audit.DecisionDeny), audit.ReasonEvaluationError)
		return false, err
	}

	s.metrics.IncrementDecision(string(entry.Decision), entry.Reason)
	return out.allowed, nil
}
