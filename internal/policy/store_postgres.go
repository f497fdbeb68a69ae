package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

// Postgres implements Store over the negotiation_policies table. A unique
// index on (tenant_id, negotiation_type), with tenant_id null for platform
// defaults, enforces at most one row per slot.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const policyColumns = `
	id, tenant_id, negotiation_type, max_turns, allow_counter,
	allow_proposal_context, close_on_accept, close_on_decline,
	provider_can_initiate, stakeholder_can_initiate, updated_at`

func (s *Postgres) FindPlatform(ctx context.Context, negotiationType string) (*NegotiationPolicy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+policyColumns+`
		FROM negotiation_policies
		WHERE tenant_id IS NULL AND negotiation_type = $1`,
		negotiationType,
	)
	return scanPolicy(row)
}

func (s *Postgres) FindTenantOverride(ctx context.Context, tenantID id.TenantID, negotiationType string) (*NegotiationPolicy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+policyColumns+`
		FROM negotiation_policies
		WHERE tenant_id = $1 AND negotiation_type = $2`,
		uuid.UUID(tenantID), negotiationType,
	)
	return scanPolicy(row)
}

func (s *Postgres) Put(ctx context.Context, p *NegotiationPolicy) error {
	var tenantID any
	if p.TenantID != nil {
		tenantID = uuid.UUID(*p.TenantID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negotiation_policies (`+policyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid), negotiation_type)
		DO UPDATE SET
			max_turns = EXCLUDED.max_turns,
			allow_counter = EXCLUDED.allow_counter,
			allow_proposal_context = EXCLUDED.allow_proposal_context,
			close_on_accept = EXCLUDED.close_on_accept,
			close_on_decline = EXCLUDED.close_on_decline,
			provider_can_initiate = EXCLUDED.provider_can_initiate,
			stakeholder_can_initiate = EXCLUDED.stakeholder_can_initiate,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(p.ID), tenantID, p.NegotiationType, p.MaxTurns, p.AllowCounter,
		p.AllowProposalContext, p.CloseOnAccept, p.CloseOnDecline,
		p.ProviderCanInitiate, p.StakeholderCanInitiate, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert negotiation policy: %w", err)
	}
	return nil
}

func scanPolicy(row *sql.Row) (*NegotiationPolicy, error) {
	var (
		p        NegotiationPolicy
		policyID uuid.UUID
		tenantID uuid.NullUUID
	)
	err := row.Scan(&policyID, &tenantID, &p.NegotiationType, &p.MaxTurns, &p.AllowCounter,
		&p.AllowProposalContext, &p.CloseOnAccept, &p.CloseOnDecline,
		&p.ProviderCanInitiate, &p.StakeholderCanInitiate, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan negotiation policy: %w", err)
	}
	p.ID = id.PolicyID(policyID)
	if tenantID.Valid {
		t := id.TenantID(tenantID.UUID)
		p.TenantID = &t
	}
	return &p, nil
}
