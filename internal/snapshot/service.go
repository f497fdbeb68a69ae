package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gatehouse/internal/audit"
	"gatehouse/internal/grant"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/principal"
	"gatehouse/internal/scope"
	id "gatehouse/pkg/domain"
	pstrings "gatehouse/pkg/platform/strings"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// Catalog is the slice of the vocabulary the snapshot needs.
type Catalog interface {
	CapabilitiesOf(roleCode string) map[string]struct{}
}

// Service aggregates everything the effective principal can reach into one
// advisory snapshot. It applies the evaluator's grant-visibility rule (grant
// scope must be ancestor-or-self) per scope without writing per-check audit
// rows; the snapshot itself is audited as a single event.
type Service struct {
	principals principal.Store
	scopes     scope.Store
	catalog    Catalog
	grants     grant.Store
	ledger     audit.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(principals principal.Store, scopes scope.Store, catalog Catalog, grants grant.Store, ledger audit.Recorder, opts ...Option) *Service {
	s := &Service{principals: principals, scopes: scopes, catalog: catalog, grants: grants, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// snapshotConcurrency bounds the scope fan-out.
const snapshotConcurrency = 8

// Snapshot builds the capability snapshot for the request's effective
// principal. When no effective principal can be resolved it returns the
// fail-closed snapshot (version "1", empty sets) with a nil error so the
// endpoint stays versioned.
func (s *Service) Snapshot(ctx context.Context) (*CapabilitySnapshot, error) {
	now := requestcontext.Now(ctx)

	ep, ok := requestcontext.Principal(ctx)
	if !ok || ep.PrincipalID.IsNil() {
		return s.failClosed(ctx, ep, now, audit.ReasonNoEffectivePrincipal), nil
	}
	p, err := s.principals.FindByID(ctx, ep.PrincipalID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "snapshot principal lookup failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}
	if err != nil || !p.Active {
		return s.failClosed(ctx, ep, now, audit.ReasonNoEffectivePrincipal), nil
	}

	grants, err := s.grants.GrantsFor(ctx, ep.PrincipalID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot grant lookup failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}

	platformCodes, err := s.codesAt(ctx, id.PlatformScopeID, grants)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot platform fan-out failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}

	orgCodes, err := s.codesAcross(ctx, scope.TypeOrganization, grants)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot organization fan-out failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}

	tenantCodes, err := s.codesAcross(ctx, scope.TypeTenant, grants)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot tenant fan-out failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}

	resourceTypes, err := s.grants.ResourceGrantTablesFor(ctx, ep.PrincipalID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot resource grant lookup failed", "error", err)
		return s.failClosed(ctx, ep, now, audit.ReasonEvaluationError), nil
	}
	normalized := map[string][]string{}
	for table, codes := range resourceTypes {
		normalized[table] = pstrings.DedupeSorted(codes)
	}

	snap := &CapabilitySnapshot{
		Version:              Version,
		GeneratedAt:          now,
		PrincipalID:          ep.AuthenticatedID.String(),
		EffectivePrincipalID: ep.PrincipalID.String(),
		Capabilities: CapabilitySets{
			Platform:      platformCodes,
			Organization:  orgCodes,
			Tenant:        tenantCodes,
			ResourceTypes: normalized,
		},
	}

	s.recordEvent(ctx, ep, audit.ActionCapabilitySnapshotOK, audit.DecisionAllow, "snapshot_generated", map[string]string{
		"capability_count": strconv.Itoa(snap.Capabilities.Count()),
	})
	if s.metrics != nil {
		s.metrics.SnapshotsGenerated.Inc()
	}
	return snap, nil
}

// codesAt computes the capability codes visible at one scope: the union of
// the role bundles of every grant whose scope is in the target's ancestor
// chain.
func (s *Service) codesAt(ctx context.Context, scopeID id.ScopeID, grants []grant.Grant) ([]string, error) {
	chain, err := s.scopes.AncestorChain(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	ancestors := make(map[id.ScopeID]struct{}, len(chain))
	for _, sc := range chain {
		ancestors[sc] = struct{}{}
	}
	var codes []string
	for _, g := range grants {
		if _, ok := ancestors[g.ScopeID]; !ok {
			continue
		}
		for code := range s.catalog.CapabilitiesOf(g.RoleCode) {
			codes = append(codes, code)
		}
	}
	return pstrings.DedupeSorted(codes), nil
}

// codesAcross unions codesAt over every scope of the given type, fanned out
// with bounded concurrency.
func (s *Service) codesAcross(ctx context.Context, scopeType scope.Type, grants []grant.Grant) ([]string, error) {
	scopes, err := s.scopes.ListByType(ctx, scopeType)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		codes []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for _, sc := range scopes {
		g.Go(func() error {
			scopeCodes, err := s.codesAt(gctx, sc.ID, grants)
			if err != nil {
				return err
			}
			mu.Lock()
			codes = append(codes, scopeCodes...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pstrings.DedupeSorted(codes), nil
}

// failClosed builds the empty snapshot and records the failure event with the
// reason that actually caused it, so compliance readers can tell an identity
// problem from a store outage. The shape stays versioned so clients never
// branch on an error body.
func (s *Service) failClosed(ctx context.Context, ep requestcontext.EffectivePrincipal, now time.Time, reason string) *CapabilitySnapshot {
	snap := &CapabilitySnapshot{
		Version:      Version,
		GeneratedAt:  now,
		Capabilities: emptySets(),
	}
	if !ep.AuthenticatedID.IsNil() {
		snap.PrincipalID = ep.AuthenticatedID.String()
	}
	if !ep.PrincipalID.IsNil() {
		snap.EffectivePrincipalID = ep.PrincipalID.String()
	}

	s.recordEvent(ctx, ep, audit.ActionCapabilitySnapshotFail, audit.DecisionDeny, reason, nil)
	if s.metrics != nil {
		s.metrics.SnapshotFailures.Inc()
	}
	return snap
}

func (s *Service) recordEvent(ctx context.Context, ep requestcontext.EffectivePrincipal, action string, decision audit.Decision, reason string, metadata map[string]string) {
	entry := audit.Entry{
		PrincipalID:          ep.AuthenticatedID,
		EffectivePrincipalID: ep.PrincipalID,
		Action:               action,
		Decision:             decision,
		Reason:               reason,
		Route:                requestcontext.Route(ctx),
		RequestIP:            requestcontext.ClientIP(ctx),
		UserAgent:            requestcontext.UserAgent(ctx),
		TenantID:             ep.TenantContext,
		Metadata:             metadata,
	}
	if ep.ImpersonationActive {
		entry.SessionID = ep.SessionID.String()
	}
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "snapshot audit append failed", "action", action, "error", err)
	}
}
