package httptransport

import (
	"net/http"
	"time"

	"gatehouse/internal/principal"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/platform/middleware/auth"
	"gatehouse/pkg/requestcontext"
)

type impersonationStartResponse struct {
	SessionID string  `json:"session_id"`
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	TenantID  *string `json:"tenant_id,omitempty"`
}

type impersonationStatusResponse struct {
	SessionID           string  `json:"session_id"`
	OperatorID          string  `json:"operator_id"`
	ImpersonationActive bool    `json:"impersonation_active"`
	TenantID            *string `json:"tenant_id,omitempty"`
	IndividualID        *string `json:"individual_id,omitempty"`
	Reason              string  `json:"reason"`
	ExpiresAt           string  `json:"expires_at"`
}

// HandleImpersonationStart handles POST /impersonation/start. The operator
// authenticates with the bearer token and must hold platform.impersonate at
// the platform scope; the response carries the dedicated session credential
// used on subsequent requests.
func (h *Handler) HandleImpersonationStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ep, ok := requestcontext.Principal(ctx)
	if !ok {
		httputil.WriteForbidden(w)
		return
	}
	allowed, err := h.authz.HasCapability(ctx, ep.PrincipalID, "platform.impersonate", id.PlatformScopeID)
	if err != nil || !allowed {
		httputil.WriteForbidden(w)
		return
	}

	req, ok := httputil.DecodeAndPrepare[impersonationStartRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	startReq := principal.StartRequest{
		Reason:        req.Reason,
		DurationHours: req.DurationHours,
	}
	if req.TenantID != nil {
		tenantID, err := id.ParseTenantID(*req.TenantID)
		if err != nil {
			httputil.WriteError(w, derrors.New(derrors.CodeValidation, "tenant_id must be a uuid"))
			return
		}
		startReq.TenantID = &tenantID
	}
	if req.IndividualID != nil {
		individualID, err := id.ParsePrincipalID(*req.IndividualID)
		if err != nil {
			httputil.WriteError(w, derrors.New(derrors.CodeValidation, "individual_id must be a uuid"))
			return
		}
		startReq.IndividualID = &individualID
	}

	session, err := h.impersonation.Start(ctx, ep.AuthenticatedID, startReq)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.sessionTokens.Issue(session)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue impersonation credential",
			"request_id", requestID,
			"session_id", session.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, derrors.New(derrors.CodeInternal, "failed to issue credential"))
		return
	}

	resp := impersonationStartResponse{
		SessionID: session.ID.String(),
		Token:     token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if session.TenantID != nil {
		t := session.TenantID.String()
		resp.TenantID = &t
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleImpersonationStop handles POST /impersonation/stop, authenticated by
// the impersonation credential alone.
func (h *Handler) HandleImpersonationStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, operatorID, ok := h.verifySessionCredential(w, r)
	if !ok {
		return
	}
	if err := h.impersonation.Stop(ctx, operatorID, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// HandleImpersonationStatus handles GET /impersonation/status.
func (h *Handler) HandleImpersonationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, operatorID, ok := h.verifySessionCredential(w, r)
	if !ok {
		return
	}
	session, err := h.impersonation.Status(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := impersonationStatusResponse{
		SessionID:           session.ID.String(),
		OperatorID:          operatorID.String(),
		ImpersonationActive: true,
		Reason:              session.Reason,
		ExpiresAt:           session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if session.TenantID != nil {
		t := session.TenantID.String()
		resp.TenantID = &t
	}
	if session.IndividualID != nil {
		i := session.IndividualID.String()
		resp.IndividualID = &i
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) verifySessionCredential(w http.ResponseWriter, r *http.Request) (id.SessionID, id.PrincipalID, bool) {
	ctx := r.Context()
	credential := r.Header.Get(auth.ImpersonationHeader)
	if credential == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeForbidden, "impersonation credential required"))
		return id.SessionID{}, id.PrincipalID{}, false
	}
	sessionID, operatorID, err := h.sessionTokens.Verify(credential)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected impersonation credential",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, derrors.New(derrors.CodeForbidden, "invalid impersonation credential"))
		return id.SessionID{}, id.PrincipalID{}, false
	}
	return sessionID, operatorID, true
}
