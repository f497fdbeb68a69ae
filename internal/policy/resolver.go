package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/sentinel"
)

// Resolver answers "which policy governs this negotiation for this tenant".
// A tenant override wins over the platform default; the platform default is
// mandatory, so resolution fails rather than inventing behavior when the
// catalog has no row for the type.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective policy and a trace describing the resolution.
// The trace always names the platform row, even when an override wins, so an
// exported proof can show both what applied and what it displaced.
func (r *Resolver) Resolve(ctx context.Context, tenantID id.TenantID, negotiationType string) (NegotiationPolicy, Trace, error) {
	if negotiationType == "" {
		return NegotiationPolicy{}, Trace{}, derrors.New(derrors.CodeValidation, "negotiation type is required")
	}

	platform, err := r.store.FindPlatform(ctx, negotiationType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return NegotiationPolicy{}, Trace{}, derrors.New(derrors.CodeNotFound,
			fmt.Sprintf("no platform policy for negotiation type %q", negotiationType))
	}
	if err != nil {
		return NegotiationPolicy{}, Trace{}, fmt.Errorf("load platform policy: %w", err)
	}

	effective := platform
	trace := Trace{
		NegotiationType:  negotiationType,
		EffectiveSource:  SourcePlatform,
		PlatformPolicyID: platform.ID,
	}

	override, err := r.store.FindTenantOverride(ctx, tenantID, negotiationType)
	switch {
	case err == nil:
		effective = override
		trace.EffectiveSource = SourceTenantOverride
		trace.TenantPolicyID = &override.ID
	case errors.Is(err, sentinel.ErrNotFound):
		// No override, platform default stands.
	default:
		return NegotiationPolicy{}, Trace{}, fmt.Errorf("load tenant policy override: %w", err)
	}

	trace.EffectivePolicyID = effective.ID
	trace.EffectiveUpdatedAt = effective.UpdatedAt
	trace.EffectiveHash = ComputeHash(*effective)

	r.logger.DebugContext(ctx, "resolved negotiation policy",
		slog.String("negotiation_type", negotiationType),
		slog.String("tenant_id", tenantID.String()),
		slog.String("source", string(trace.EffectiveSource)),
		slog.String("policy_hash", trace.EffectiveHash),
	)
	return *effective, trace, nil
}
