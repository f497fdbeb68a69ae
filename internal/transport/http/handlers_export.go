package httptransport

import (
	"errors"
	"fmt"
	"net/http"

	"gatehouse/internal/proof"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// HandleProofExport handles GET /exports/proof?tenant_id=&run_id=&format=.
// The route has its own capability gate (platform.audit_export at the
// tenant's scope) evaluated like any other check, audit row included.
func (h *Handler) HandleProofExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ep, ok := requestcontext.Principal(ctx)
	if !ok {
		httputil.WriteForbidden(w)
		return
	}

	q := r.URL.Query()
	runID := q.Get("run_id")
	if runID == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "run_id is required"))
		return
	}
	tenantID, err := id.ParseTenantID(q.Get("tenant_id"))
	if err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeValidation, "tenant_id must be a uuid"))
		return
	}
	format, err := proof.ParseFormat(q.Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	gateScope := id.PlatformScopeID
	if scopeID, err := h.scopes.TenantScopeID(ctx, tenantID); err == nil {
		gateScope = scopeID
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "failed to resolve tenant scope"))
		return
	}
	allowed, err := h.authz.HasCapability(ctx, ep.PrincipalID, "platform.audit_export", gateScope)
	if err != nil || !allowed {
		httputil.WriteForbidden(w)
		return
	}

	bundle, err := h.exporter.BuildProofExport(ctx, tenantID, runID, format, nil)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, err := bundle.Encode()
	if err != nil {
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "failed to encode bundle"))
		return
	}

	w.Header().Set("Content-Type", bundle.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundle.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
