package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	txcontext "gatehouse/pkg/platform/tx"
	"gatehouse/pkg/requestcontext"
)

// Postgres implements Store with a transactional outbox: the ledger row and
// an outbox row are written in one statement batch, and the Kafka publisher
// drains the outbox asynchronously. The ledger table is the queryable record;
// the outbox feeds downstream compliance consumers. Broker lag never delays
// or suppresses a decision row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID                   string            `json:"id"`
	PrincipalID          string            `json:"principal_id,omitempty"`
	EffectivePrincipalID string            `json:"effective_principal_id,omitempty"`
	Action               string            `json:"action"`
	CapabilityCode       string            `json:"capability_code,omitempty"`
	ScopeID              string            `json:"scope_id,omitempty"`
	Decision             string            `json:"decision"`
	Reason               string            `json:"reason"`
	Route                string            `json:"route,omitempty"`
	Method               string            `json:"method,omitempty"`
	ResourceTable        string            `json:"resource_table,omitempty"`
	ResourceID           string            `json:"resource_id,omitempty"`
	TenantID             string            `json:"tenant_id,omitempty"`
	RequestIP            string            `json:"request_ip,omitempty"`
	UserAgent            string            `json:"user_agent,omitempty"`
	SessionID            string            `json:"session_id,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            string            `json:"created_at"`
}

func (s *Postgres) Append(ctx context.Context, entry Entry) (id.EntryID, error) {
	if entry.ID.IsNil() {
		entry.ID = id.EntryID(uuid.New())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return id.EntryID{}, fmt.Errorf("marshal audit metadata: %w", err)
	}

	var scopeID, tenantID, orgID any
	if entry.ScopeID != nil {
		scopeID = uuid.UUID(*entry.ScopeID)
	}
	if entry.TenantID != nil {
		tenantID = uuid.UUID(*entry.TenantID)
	}
	if entry.OrgID != nil {
		orgID = uuid.UUID(*entry.OrgID)
	}

	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_log
			(id, principal_id, effective_principal_id, action, capability_code,
			 scope_id, decision, decision_reason, route, method,
			 resource_table, resource_id, tenant_id, org_id,
			 request_ip, user_agent, session_id, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.PrincipalID), uuid.UUID(entry.EffectivePrincipalID),
		entry.Action, entry.CapabilityCode, scopeID, string(entry.Decision), entry.Reason,
		entry.Route, entry.Method, entry.ResourceTable, entry.ResourceID, tenantID, orgID,
		entry.RequestIP, entry.UserAgent, entry.SessionID, metadata, entry.CreatedAt,
	)
	if err != nil {
		return id.EntryID{}, fmt.Errorf("insert audit entry: %w", err)
	}

	payload := outboxPayload{
		ID:             entry.ID.String(),
		Action:         entry.Action,
		CapabilityCode: entry.CapabilityCode,
		Decision:       string(entry.Decision),
		Reason:         entry.Reason,
		Route:          entry.Route,
		Method:         entry.Method,
		ResourceTable:  entry.ResourceTable,
		ResourceID:     entry.ResourceID,
		RequestIP:      entry.RequestIP,
		UserAgent:      entry.UserAgent,
		SessionID:      entry.SessionID,
		Metadata:       entry.Metadata,
		CreatedAt:      entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !entry.PrincipalID.IsNil() {
		payload.PrincipalID = entry.PrincipalID.String()
	}
	if !entry.EffectivePrincipalID.IsNil() {
		payload.EffectivePrincipalID = entry.EffectivePrincipalID.String()
	}
	if entry.ScopeID != nil {
		payload.ScopeID = entry.ScopeID.String()
	}
	if entry.TenantID != nil {
		payload.TenantID = entry.TenantID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return id.EntryID{}, fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, entry_id, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), uuid.UUID(entry.ID), payloadBytes, entry.CreatedAt,
	)
	if err != nil {
		return id.EntryID{}, fmt.Errorf("insert outbox entry: %w", err)
	}
	return entry.ID, nil
}

func (s *Postgres) ListByPrincipal(ctx context.Context, principalID id.PrincipalID, from, to time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, effective_principal_id, action, capability_code,
		       scope_id, decision, decision_reason, route, method,
		       resource_table, resource_id, tenant_id, org_id,
		       request_ip, user_agent, session_id, metadata, created_at
		FROM audit_log
		WHERE (principal_id = $1 OR effective_principal_id = $1)
		  AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		uuid.UUID(principalID), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			entryID, pID     uuid.UUID
			epID             uuid.UUID
			scopeID          uuid.NullUUID
			tenantID, orgID  uuid.NullUUID
			decision         string
			metadata         []byte
		)
		if err := rows.Scan(&entryID, &pID, &epID, &e.Action, &e.CapabilityCode,
			&scopeID, &decision, &e.Reason, &e.Route, &e.Method,
			&e.ResourceTable, &e.ResourceID, &tenantID, &orgID,
			&e.RequestIP, &e.UserAgent, &e.SessionID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.EntryID(entryID)
		e.PrincipalID = id.PrincipalID(pID)
		e.EffectivePrincipalID = id.PrincipalID(epID)
		e.Decision = Decision(decision)
		if scopeID.Valid {
			sc := id.ScopeID(scopeID.UUID)
			e.ScopeID = &sc
		}
		if tenantID.Valid {
			t := id.TenantID(tenantID.UUID)
			e.TenantID = &t
		}
		if orgID.Valid {
			o := id.OrgID(orgID.UUID)
			e.OrgID = &o
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
