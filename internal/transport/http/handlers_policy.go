package httptransport

import (
	"net/http"

	"gatehouse/internal/policy"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// HandlePolicyUpsert handles PUT /platform/policies. The route sits under the
// operator prefix, so the impersonation guard blocks it before this code runs
// while a session is active. Policy bodies are closed records: unknown keys
// are rejected by the decoder, never silently carried into the hash.
func (h *Handler) HandlePolicyUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ep, ok := requestcontext.Principal(ctx)
	if !ok {
		httputil.WriteForbidden(w)
		return
	}
	allowed, err := h.authz.HasCapability(ctx, ep.PrincipalID, "platform.configure", id.PlatformScopeID)
	if err != nil || !allowed {
		httputil.WriteForbidden(w)
		return
	}

	req, ok := httputil.DecodeAndPrepare[policyUpsertRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.NegotiationType == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "negotiation_type is required"))
		return
	}
	if req.MaxTurns <= 0 {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "maxTurns must be positive"))
		return
	}

	p := policy.NegotiationPolicy{
		ID:                     id.NewPolicyID(),
		NegotiationType:        req.NegotiationType,
		MaxTurns:               req.MaxTurns,
		AllowCounter:           req.AllowCounter,
		AllowProposalContext:   req.AllowProposalContext,
		CloseOnAccept:          req.CloseOnAccept,
		CloseOnDecline:         req.CloseOnDecline,
		ProviderCanInitiate:    req.ProviderCanInitiate,
		StakeholderCanInitiate: req.StakeholderCanInitiate,
		UpdatedAt:              requestcontext.Now(ctx),
	}
	if req.TenantID != nil {
		tenantID, err := id.ParseTenantID(*req.TenantID)
		if err != nil {
			httputil.WriteError(w, derrors.New(derrors.CodeValidation, "tenant_id must be a uuid"))
			return
		}
		p.TenantID = &tenantID
	}

	if err := h.policies.Put(ctx, &p); err != nil {
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "failed to store policy"))
		return
	}

	h.logger.InfoContext(ctx, "negotiation policy upserted",
		"log_type", "audit",
		"request_id", requestID,
		"negotiation_type", p.NegotiationType,
		"policy_id", p.ID.String(),
		"policy_hash", policy.ComputeHash(p),
	)
	httputil.WriteJSON(w, http.StatusOK, p)
}
