package proof

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/policy"
	id "gatehouse/pkg/domain"
)

// SchemaVersion identifies the export document shape. Consumers pin on it;
// bump only with a new top-level shape.
const SchemaVersion = "1"

// PolicyAuditEvent records that a given policy hash governed an actor's
// participation in a negotiation run. The fingerprint makes recording
// idempotent: re-recording the same (run, actor, hash) triple is a no-op
// conflict, not a second row.
type PolicyAuditEvent struct {
	Fingerprint string            `json:"fingerprint"`
	RunID       string            `json:"run_id"`
	ActorType   string            `json:"actor_type"`
	PolicyHash  string            `json:"policy_hash"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FingerprintFor derives the unique key for a policy audit event.
func FingerprintFor(runID, actorType, policyHash string) string {
	return fmt.Sprintf("%s:%s:%s", runID, actorType, policyHash)
}

// Run identifies a negotiation run. The export builder uses it to find the
// owning tenant and the negotiation type whose policy governed the run.
type Run struct {
	ID              string      `json:"id"`
	TenantID        id.TenantID `json:"tenant_id"`
	NegotiationType string      `json:"negotiation_type"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NegotiationEvent is one turn of a negotiation run as it appears in a proof
// export. ProposalContext is the only redactable field.
type NegotiationEvent struct {
	ID              uuid.UUID `json:"id"`
	RunID           string    `json:"run_id"`
	Kind            string    `json:"kind"`
	ProposedStart   time.Time `json:"proposed_start"`
	ProposedEnd     time.Time `json:"proposed_end"`
	ProposalContext *string   `json:"proposal_context"`
	CreatedAt       time.Time `json:"created_at"`
}

// NegotiationSection groups the run's events under the export document.
type NegotiationSection struct {
	Events []NegotiationEvent `json:"events"`
}

// Bundle is the proof export document. Field order here is the JSON field
// order of the serialized document.
type Bundle struct {
	SchemaVersion string                   `json:"schema_version"`
	ExportedAt    time.Time                `json:"exported_at"`
	RunID         string                   `json:"run_id"`
	PolicyTrace   policy.Trace             `json:"policy_trace"`
	Policy        policy.NegotiationPolicy `json:"policy"`
	AuditEvents   []PolicyAuditEvent       `json:"audit_events"`
	Negotiation   NegotiationSection       `json:"negotiation"`

	tenantID id.TenantID
	format   Format
}

// TenantID returns the tenant the bundle was exported for. It is carried for
// the transport layer's logging and deliberately kept out of the document.
func (b *Bundle) TenantID() id.TenantID {
	return b.tenantID
}
