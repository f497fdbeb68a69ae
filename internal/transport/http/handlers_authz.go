package httptransport

import (
	"net/http"

	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// HandleCheck handles POST /authz/check. Denials of any kind collapse to the
// uniform forbidden envelope; only the audit ledger carries the reason.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ep, ok := requestcontext.Principal(ctx)
	if !ok {
		httputil.WriteForbidden(w)
		return
	}
	req, ok := httputil.DecodeAndPrepare[checkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	scopeID, err := id.ParseScopeID(req.ScopeID)
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "scope_id must be a uuid"))
		return
	}

	allowed, err := h.authz.HasCapability(ctx, ep.PrincipalID, req.CapabilityCode, scopeID)
	if err != nil || !allowed {
		httputil.WriteForbidden(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

// HandleCheckResource handles POST /authz/check-resource. The response never
// reveals whether the resource exists.
func (h *Handler) HandleCheckResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ep, ok := requestcontext.Principal(ctx)
	if !ok {
		httputil.WriteForbidden(w)
		return
	}
	req, ok := httputil.DecodeAndPrepare[checkResourceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	scopeID, err := id.ParseScopeID(req.ScopeID)
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "scope_id must be a uuid"))
		return
	}

	allowed, err := h.authz.CanAccessResource(ctx, ep.PrincipalID, req.CapabilityCode, scopeID, req.ResourceTable, req.ResourceID)
	if err != nil || !allowed {
		httputil.WriteForbidden(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}
