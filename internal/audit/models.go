package audit

import (
	"time"

	id "gatehouse/pkg/domain"
)

// Decision is the recorded outcome of one evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Machine-readable decision reasons. These are the only values written to
// decision_reason; callers of a denied check see a generic forbidden outcome
// while audit and ops tooling see these.
const (
	ReasonGranted              = "granted"
	ReasonResourceGrant        = "resource_grant"
	ReasonNoEffectivePrincipal = "no_effective_principal"
	ReasonUnknownCapability    = "unknown_capability"
	ReasonUnknownScope         = "unknown_scope"
	ReasonUnknownResourceTable = "unknown_resource_table"
	ReasonNoMatchingGrant      = "no_matching_grant"
	ReasonEvaluationError      = "evaluation_error"
)

// Audit actions.
const (
	ActionCapabilityCheck        = "capability_check"
	ActionResourceAccessCheck    = "resource_access_check"
	ActionCapabilitySnapshotOK   = "capability_snapshot_success"
	ActionCapabilitySnapshotFail = "capability_snapshot_failure"
	ActionImpersonationStarted   = "impersonation_started"
	ActionImpersonationStopped   = "impersonation_stopped"
	ActionProofExportBuilt       = "proof_export_built"
)

// Entry is one append-only ledger row. Written exactly once per evaluation,
// independent of outcome; never updated or deleted by application code.
type Entry struct {
	ID                   id.EntryID
	PrincipalID          id.PrincipalID
	EffectivePrincipalID id.PrincipalID
	Action               string
	CapabilityCode       string
	ScopeID              *id.ScopeID
	Decision             Decision
	Reason               string
	Route                string
	Method               string
	ResourceTable        string
	ResourceID           string
	TenantID             *id.TenantID
	OrgID                *id.OrgID
	RequestIP            string
	UserAgent            string
	SessionID            string
	Metadata             map[string]string
	CreatedAt            time.Time
}
