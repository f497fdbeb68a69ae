package proof

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"gatehouse/internal/audit"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/policy"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a caller-supplied format string.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", derrors.New(derrors.CodeValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// PolicyResolver is the slice of the policy resolver the exporter needs.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID, negotiationType string) (policy.NegotiationPolicy, policy.Trace, error)
}

// Exporter builds deterministic proof bundles for negotiation runs and
// records policy audit events as runs progress.
type Exporter struct {
	store    Store
	policies PolicyResolver
	ledger   audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type ExporterOption func(*Exporter)

func WithLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

func NewExporter(store Store, policies PolicyResolver, ledger audit.Recorder, opts ...ExporterOption) *Exporter {
	e := &Exporter{store: store, policies: policies, ledger: ledger}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// RecordPolicyAudit records that policyHash governed actorType's side of the
// run. Retries and replays collapse onto the fingerprint: the second insert
// of the same triple is reported as sentinel.ErrAlreadyUsed and nothing is
// written.
func (e *Exporter) RecordPolicyAudit(ctx context.Context, runID, actorType, policyHash string) error {
	if runID == "" || actorType == "" || policyHash == "" {
		return derrors.New(derrors.CodeValidation, "run id, actor type and policy hash are all required")
	}
	event := PolicyAuditEvent{
		Fingerprint: FingerprintFor(runID, actorType, policyHash),
		RunID:       runID,
		ActorType:   actorType,
		PolicyHash:  policyHash,
		CreatedAt:   requestcontext.Now(ctx),
	}
	err := e.store.AppendPolicyAudit(ctx, event)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "failed to record policy audit event")
	}
	return nil
}

// BuildProofExport assembles the proof bundle for one run. The document is
// deterministic: rows are read in one snapshot, sorted by created_at with a
// stable tiebreak, redacted while building, and stamped with the caller's
// exportedAtOverride when reproducibility matters (tests, re-issued proofs).
func (e *Exporter) BuildProofExport(ctx context.Context, tenantID id.TenantID, runID string, format Format, exportedAtOverride *time.Time) (*Bundle, error) {
	if runID == "" {
		return nil, derrors.New(derrors.CodeValidation, "run id is required")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	run, err := e.store.FindRun(ctx, runID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "negotiation run not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load negotiation run")
	}
	if run.TenantID != tenantID {
		// Cross-tenant reads are indistinguishable from absent runs.
		return nil, derrors.New(derrors.CodeNotFound, "negotiation run not found")
	}

	effective, trace, err := e.policies.Resolve(ctx, tenantID, run.NegotiationType)
	if err != nil {
		return nil, err
	}

	audits, events, err := e.store.RunRows(ctx, runID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to read run rows")
	}

	sort.SliceStable(audits, func(i, j int) bool {
		if audits[i].CreatedAt.Equal(audits[j].CreatedAt) {
			return audits[i].Fingerprint < audits[j].Fingerprint
		}
		return audits[i].CreatedAt.Before(audits[j].CreatedAt)
	})
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID.String() < events[j].ID.String()
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	if !effective.AllowProposalContext {
		for i := range events {
			events[i].ProposalContext = nil
		}
	}

	exportedAt := requestcontext.Now(ctx)
	if exportedAtOverride != nil {
		exportedAt = *exportedAtOverride
	}

	if audits == nil {
		audits = []PolicyAuditEvent{}
	}
	if events == nil {
		events = []NegotiationEvent{}
	}
	bundle := &Bundle{
		SchemaVersion: SchemaVersion,
		ExportedAt:    exportedAt.UTC(),
		RunID:         runID,
		PolicyTrace:   trace,
		Policy:        effective,
		AuditEvents:   audits,
		Negotiation:   NegotiationSection{Events: events},
		tenantID:      tenantID,
		format:        format,
	}

	e.recordExport(ctx, bundle)
	if e.metrics != nil {
		e.metrics.ProofExports.WithLabelValues(string(format)).Inc()
	}
	return bundle, nil
}

// Filename derives the attachment name from the run and the export date.
func Filename(runID string, exportedAt time.Time, format Format) string {
	return fmt.Sprintf("proof-%s-%s.%s", runID, exportedAt.UTC().Format("20060102"), format)
}

// Filename returns the bundle's deterministic attachment name.
func (b *Bundle) Filename() string {
	return Filename(b.RunID, b.ExportedAt, b.format)
}

// ContentType returns the media type matching the bundle's format.
func (b *Bundle) ContentType() string {
	if b.format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Encode serializes the bundle. JSON is indented with a fixed layout; CSV is
// a flat event table prefixed by document-level columns on every row.
func (b *Bundle) Encode() ([]byte, error) {
	if b.format == FormatCSV {
		return b.encodeCSV()
	}
	return json.MarshalIndent(b, "", "  ")
}

var csvHeader = []string{
	"schema_version", "exported_at", "run_id", "policy_hash",
	"record_type", "created_at", "actor_type", "fingerprint",
	"event_id", "kind", "proposed_start", "proposed_end", "proposal_context",
}

func (b *Bundle) encodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	base := []string{
		b.SchemaVersion,
		b.ExportedAt.Format(time.RFC3339),
		b.RunID,
		b.PolicyTrace.EffectiveHash,
	}
	for _, a := range b.AuditEvents {
		row := append(append([]string{}, base...),
			"policy_audit",
			a.CreatedAt.UTC().Format(time.RFC3339Nano),
			a.ActorType,
			a.Fingerprint,
			"", "", "", "", "",
		)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	for _, ev := range b.Negotiation.Events {
		proposalContext := ""
		if ev.ProposalContext != nil {
			proposalContext = *ev.ProposalContext
		}
		row := append(append([]string{}, base...),
			"negotiation_event",
			ev.CreatedAt.UTC().Format(time.RFC3339Nano),
			"", "",
			ev.ID.String(),
			ev.Kind,
			ev.ProposedStart.UTC().Format(time.RFC3339Nano),
			ev.ProposedEnd.UTC().Format(time.RFC3339Nano),
			proposalContext,
		)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) recordExport(ctx context.Context, bundle *Bundle) {
	entry := audit.Entry{
		Action:    audit.ActionProofExportBuilt,
		Decision:  audit.DecisionAllow,
		Reason:    audit.ActionProofExportBuilt,
		Route:     requestcontext.Route(ctx),
		RequestIP: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		TenantID:  &bundle.tenantID,
		Metadata: map[string]string{
			"run_id":      bundle.RunID,
			"format":      string(bundle.format),
			"policy_hash": bundle.PolicyTrace.EffectiveHash,
			"event_count": strconv.Itoa(len(bundle.AuditEvents) + len(bundle.Negotiation.Events)),
		},
	}
	if ep, ok := requestcontext.Principal(ctx); ok {
		entry.PrincipalID = ep.AuthenticatedID
		entry.EffectivePrincipalID = ep.PrincipalID
		if ep.ImpersonationActive {
			entry.SessionID = ep.SessionID.String()
		}
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "failed to record proof export",
			"run_id", bundle.RunID,
			"error", err,
		)
	}
	e.logger.InfoContext(ctx, "proof export built",
		"log_type", "audit",
		"run_id", bundle.RunID,
		"format", string(bundle.format),
		"policy_hash", bundle.PolicyTrace.EffectiveHash,
	)
}
