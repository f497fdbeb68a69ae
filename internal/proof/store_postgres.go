package proof

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

const uniqueViolation = "23505"

// Postgres implements Store over policy_audit_events and negotiation_events.
// RunRows reads both tables inside a RepeatableRead read-only transaction so
// an export sees one snapshot even while a run is still appending.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) AppendPolicyAudit(ctx context.Context, event PolicyAuditEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO policy_audit_events
			(fingerprint, run_id, actor_type, policy_hash, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Fingerprint, event.RunID, event.ActorType, event.PolicyHash,
		event.CreatedAt, event.Metadata,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert policy audit event: %w", err)
	}
	return nil
}

func (s *Postgres) PolicyAuditsByRun(ctx context.Context, runID string) ([]PolicyAuditEvent, error) {
	return s.policyAudits(ctx, s.pool, runID)
}

func (s *Postgres) NegotiationEventsByRun(ctx context.Context, runID string) ([]NegotiationEvent, error) {
	return s.negotiationEvents(ctx, s.pool, runID)
}

func (s *Postgres) RunRows(ctx context.Context, runID string) ([]PolicyAuditEvent, []NegotiationEvent, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot read: %w", err)
	}
	defer tx.Rollback(ctx)

	audits, err := s.policyAudits(ctx, tx, runID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.negotiationEvents(ctx, tx, runID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit snapshot read: %w", err)
	}
	return audits, events, nil
}

func (s *Postgres) PutNegotiationEvent(ctx context.Context, event NegotiationEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO negotiation_events
			(id, run_id, kind, proposed_start, proposed_end, proposal_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.RunID, event.Kind, event.ProposedStart, event.ProposedEnd,
		event.ProposalContext, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert negotiation event: %w", err)
	}
	return nil
}

func (s *Postgres) PutRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO negotiation_runs (id, tenant_id, negotiation_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			negotiation_type = EXCLUDED.negotiation_type`,
		run.ID, uuid.UUID(run.TenantID), run.NegotiationType, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert negotiation run: %w", err)
	}
	return nil
}

func (s *Postgres) FindRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run      Run
		tenantID uuid.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, negotiation_type, created_at
		FROM negotiation_runs
		WHERE id = $1`,
		runID,
	).Scan(&run.ID, &tenantID, &run.NegotiationType, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find negotiation run: %w", err)
	}
	run.TenantID = id.TenantID(tenantID)
	return &run, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Postgres) policyAudits(ctx context.Context, q querier, runID string) ([]PolicyAuditEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT fingerprint, run_id, actor_type, policy_hash, created_at, metadata
		FROM policy_audit_events
		WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query policy audit events: %w", err)
	}
	defer rows.Close()

	var out []PolicyAuditEvent
	for rows.Next() {
		var e PolicyAuditEvent
		if err := rows.Scan(&e.Fingerprint, &e.RunID, &e.ActorType, &e.PolicyHash, &e.CreatedAt, &e.Metadata); err != nil {
			return nil, fmt.Errorf("scan policy audit event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy audit events: %w", err)
	}
	return out, nil
}

func (s *Postgres) negotiationEvents(ctx context.Context, q querier, runID string) ([]NegotiationEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT id, run_id, kind, proposed_start, proposed_end, proposal_context, created_at
		FROM negotiation_events
		WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query negotiation events: %w", err)
	}
	defer rows.Close()

	var out []NegotiationEvent
	for rows.Next() {
		var e NegotiationEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.ProposedStart, &e.ProposedEnd, &e.ProposalContext, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan negotiation event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate negotiation events: %w", err)
	}
	return out, nil
}
