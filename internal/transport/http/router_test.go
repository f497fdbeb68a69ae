package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/audit"
	"gatehouse/internal/authz"
	"gatehouse/internal/catalog"
	"gatehouse/internal/grant"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/policy"
	"gatehouse/internal/principal"
	"gatehouse/internal/proof"
	"gatehouse/internal/scope"
	"gatehouse/internal/snapshot"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/platform/middleware/auth"
)

// RouterSuite exercises the full middleware chain and handlers against real
// services over in-memory stores.
type RouterSuite struct {
	suite.Suite

	server *httptest.Server

	bearer        *principal.AccessTokenIssuer
	sessionTokens *principal.TokenIssuer
	proofs        *proof.InMemory
	ledger        *audit.InMemory

	operator    id.PrincipalID
	member      id.PrincipalID
	tenantID    id.TenantID
	tenantScope id.ScopeID
	runID       string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := s.T().Context()
	now := time.Now()
	logger := slog.Default()

	scopes := scope.NewInMemory()
	platformScope := &scope.Scope{ID: id.PlatformScopeID, Type: scope.TypePlatform, Path: "/"}
	s.Require().NoError(scopes.Put(ctx, platformScope))
	s.tenantID = id.TenantID(id.NewScopeID())
	s.tenantScope = id.NewScopeID()
	s.Require().NoError(scopes.Put(ctx, &scope.Scope{
		ID: s.tenantScope, Type: scope.TypeTenant, Path: "/t1", ParentID: &platformScope.ID, TenantID: &s.tenantID,
	}))

	principals := principal.NewInMemory()
	s.operator = id.NewPrincipalID()
	s.Require().NoError(principals.Put(ctx, &principal.Principal{
		ID: s.operator, Type: principal.TypeUser, DisplayName: "Operator", Active: true,
	}))
	s.member = id.NewPrincipalID()
	s.Require().NoError(principals.Put(ctx, &principal.Principal{
		ID: s.member, Type: principal.TypeUser, DisplayName: "Member", Active: true,
	}))

	grants := grant.NewInMemory()
	s.Require().NoError(grants.Put(ctx, grant.Grant{
		PrincipalID: s.operator, RoleCode: "platform_admin", ScopeID: id.PlatformScopeID,
		ValidFrom: now.Add(-time.Hour),
	}))
	s.Require().NoError(grants.Put(ctx, grant.Grant{
		PrincipalID: s.member, RoleCode: "tenant_member", ScopeID: s.tenantScope,
		ValidFrom: now.Add(-time.Hour),
	}))

	cat, err := catalog.Load(catalog.DefaultSeed())
	s.Require().NoError(err)
	s.ledger = audit.NewInMemory()

	evaluator := authz.New(principals, scopes, cat, grants, s.ledger, authz.WithLogger(logger))
	snapshots := snapshot.New(principals, scopes, cat, grants, s.ledger, snapshot.WithLogger(logger))
	resolver := principal.NewResolver(principals, principal.NewSessionInMemory(), s.ledger, principal.WithLogger(logger))

	policies := policy.NewInMemory()
	platformPolicy := policy.NegotiationPolicy{
		ID: id.NewPolicyID(), NegotiationType: "booking", MaxTurns: 6,
		AllowCounter: true, AllowProposalContext: true, CloseOnAccept: true, UpdatedAt: now,
	}
	s.Require().NoError(policies.Put(ctx, &platformPolicy))

	s.proofs = proof.NewInMemory()
	s.runID = "run-81"
	s.Require().NoError(s.proofs.PutRun(ctx, proof.Run{
		ID: s.runID, TenantID: s.tenantID, NegotiationType: "booking", CreatedAt: now,
	}))
	exporter := proof.NewExporter(s.proofs, policy.NewResolver(policies), s.ledger, proof.WithLogger(logger))

	s.bearer = principal.NewAccessTokenIssuer("router-test-bearer-key", time.Hour)
	s.sessionTokens = principal.NewTokenIssuer("router-test-session-key")

	handler := NewHandler(evaluator, snapshots, resolver, s.sessionTokens, exporter, policies, scope.NewDirectory(scopes), logger, nil)
	router := NewRouter(handler, config.Server{
		OperatorRoutePrefixes: []string{"/platform/"},
	}, s.bearer, resolver)

	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
}

func (s *RouterSuite) request(method, path, token, body string, headers map[string]string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().NoError(resp.Body.Close())
	return resp, string(raw)
}

func (s *RouterSuite) tokenFor(principalID id.PrincipalID) string {
	token, err := s.bearer.IssueAccessToken(principalID, time.Now())
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) TestUnauthenticatedRequestsRejected() {
	resp, _ := s.request(http.MethodGet, "/capabilities/snapshot", "", "", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.request(http.MethodPost, "/authz/check", "not-a-token", `{}`, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.request(http.MethodGet, "/healthz", "", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestCheckEndpoint() {
	body := fmt.Sprintf(`{"capability_code":"tenant.read","scope_id":%q}`, s.tenantScope.String())
	resp, got := s.request(http.MethodPost, "/authz/check", s.tokenFor(s.member), body, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"allowed":true}`, got)

	s.Run("denial is the uniform envelope", func() {
		body := fmt.Sprintf(`{"capability_code":"tenant.manage","scope_id":%q}`, s.tenantScope.String())
		resp, got := s.request(http.MethodPost, "/authz/check", s.tokenFor(s.member), body, nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	s.Run("unknown capability is the same envelope", func() {
		body := fmt.Sprintf(`{"capability_code":"tenant.fly","scope_id":%q}`, s.tenantScope.String())
		resp, got := s.request(http.MethodPost, "/authz/check", s.tokenFor(s.member), body, nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	s.Run("unknown body field rejected", func() {
		body := fmt.Sprintf(`{"capability_code":"tenant.read","scope_id":%q,"mystery":true}`, s.tenantScope.String())
		resp, _ := s.request(http.MethodPost, "/authz/check", s.tokenFor(s.member), body, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *RouterSuite) TestSnapshotEndpoint() {
	resp, got := s.request(http.MethodGet, "/capabilities/snapshot", s.tokenFor(s.member), "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var snap snapshot.CapabilitySnapshot
	s.Require().NoError(json.Unmarshal([]byte(got), &snap))
	s.Equal(snapshot.Version, snap.Version)
	s.Equal(s.member.String(), snap.EffectivePrincipalID)
	s.Contains(snap.Capabilities.Tenant, "tenant.read")
}

func (s *RouterSuite) TestImpersonationLifecycleAndGuard() {
	start := `{"reason":"support ticket 99","duration_hours":1}`

	s.Run("member cannot start", func() {
		resp, got := s.request(http.MethodPost, "/impersonation/start", s.tokenFor(s.member), start, nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	resp, got := s.request(http.MethodPost, "/impersonation/start", s.tokenFor(s.operator), start, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, got)
	var started struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal([]byte(got), &started))
	s.NotEmpty(started.Token)

	impHeader := map[string]string{auth.ImpersonationHeader: started.Token}

	s.Run("operator routes blocked while impersonating", func() {
		body := `{"negotiation_type":"booking","maxTurns":4}`
		resp, got := s.request(http.MethodPut, "/platform/policies", s.tokenFor(s.operator), body, impHeader)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	s.Run("status authenticates with the session credential alone", func() {
		resp, got := s.request(http.MethodGet, "/impersonation/status", "", "", impHeader)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Contains(got, started.SessionID)
	})

	s.Run("stop then status is not found", func() {
		resp, _ := s.request(http.MethodPost, "/impersonation/stop", "", "", impHeader)
		s.Equal(http.StatusOK, resp.StatusCode)

		resp, _ = s.request(http.MethodPost, "/impersonation/stop", "", "", impHeader)
		s.Equal(http.StatusConflict, resp.StatusCode)

		resp, _ = s.request(http.MethodGet, "/impersonation/status", "", "", impHeader)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("foreign session credential rejected at auth", func() {
		resp, _ := s.request(http.MethodGet, "/capabilities/snapshot", s.tokenFor(s.member),
			"", map[string]string{auth.ImpersonationHeader: started.Token})
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})
}

func (s *RouterSuite) TestPolicyUpsert() {
	body := `{"negotiation_type":"mediation","maxTurns":4,"allowCounter":true}`
	resp, got := s.request(http.MethodPut, "/platform/policies", s.tokenFor(s.operator), body, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var p policy.NegotiationPolicy
	s.Require().NoError(json.Unmarshal([]byte(got), &p))
	s.Equal("mediation", p.NegotiationType)
	s.Equal(4, p.MaxTurns)

	s.Run("member denied", func() {
		resp, got := s.request(http.MethodPut, "/platform/policies", s.tokenFor(s.member), body, nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	s.Run("unknown policy key rejected", func() {
		closed := `{"negotiation_type":"mediation","maxTurns":4,"surprise":true}`
		resp, _ := s.request(http.MethodPut, "/platform/policies", s.tokenFor(s.operator), closed, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("non-positive maxTurns rejected", func() {
		resp, _ := s.request(http.MethodPut, "/platform/policies", s.tokenFor(s.operator), `{"negotiation_type":"mediation","maxTurns":0}`, nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *RouterSuite) TestProofExportEndpoint() {
	path := fmt.Sprintf("/exports/proof?run_id=%s&tenant_id=%s&format=json", s.runID, s.tenantID.String())

	resp, got := s.request(http.MethodGet, path, s.tokenFor(s.operator), "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, got)
	s.Equal("application/json", resp.Header.Get("Content-Type"))
	s.Contains(resp.Header.Get("Content-Disposition"), "attachment; filename=")
	s.Contains(resp.Header.Get("Content-Disposition"), "proof-"+s.runID)

	var bundle proof.Bundle
	s.Require().NoError(json.Unmarshal([]byte(got), &bundle))
	s.Equal(proof.SchemaVersion, bundle.SchemaVersion)
	s.Equal(s.runID, bundle.RunID)

	s.Run("member without audit_export denied", func() {
		resp, got := s.request(http.MethodGet, path, s.tokenFor(s.member), "", nil)
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.JSONEq(`{"error":"forbidden"}`, got)
	})

	s.Run("unknown run is not found", func() {
		missing := fmt.Sprintf("/exports/proof?run_id=run-none&tenant_id=%s&format=json", s.tenantID.String())
		resp, _ := s.request(http.MethodGet, missing, s.tokenFor(s.operator), "", nil)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("bad format rejected", func() {
		bad := fmt.Sprintf("/exports/proof?run_id=%s&tenant_id=%s&format=xml", s.runID, s.tenantID.String())
		resp, _ := s.request(http.MethodGet, bad, s.tokenFor(s.operator), "", nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}
