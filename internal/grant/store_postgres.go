package grant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	txcontext "gatehouse/pkg/platform/tx"
	"gatehouse/pkg/sentinel"
)

// Postgres implements Store over the grants and resource_grants tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const grantColumns = `principal_id, role_code, scope_id, valid_from, valid_until`

func (s *Postgres) GrantsFor(ctx context.Context, principalID id.PrincipalID, asOf time.Time) ([]Grant, error) {
	return s.queryGrants(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE principal_id = $1
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY valid_from`,
		uuid.UUID(principalID), asOf,
	)
}

func (s *Postgres) GrantsForAll(ctx context.Context, principalID id.PrincipalID) ([]Grant, error) {
	return s.queryGrants(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE principal_id = $1
		ORDER BY valid_from`,
		uuid.UUID(principalID),
	)
}

func (s *Postgres) queryGrants(ctx context.Context, query string, args ...any) ([]Grant, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var (
			g          Grant
			pID, scID  uuid.UUID
			validUntil sql.NullTime
		)
		if err := rows.Scan(&pID, &g.RoleCode, &scID, &g.ValidFrom, &validUntil); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.PrincipalID = id.PrincipalID(pID)
		g.ScopeID = id.ScopeID(scID)
		if validUntil.Valid {
			t := validUntil.Time
			g.ValidUntil = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Postgres) ResourceGrantsFor(ctx context.Context, principalID id.PrincipalID, table, resourceID string, asOf time.Time) ([]ResourceGrant, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, principal_id, scope_id, resource_table, resource_id,
		       capability_code, valid_from, valid_until, created_by
		FROM resource_grants
		WHERE principal_id = $1
		  AND resource_table = $2
		  AND resource_id = $3
		  AND valid_from <= $4
		  AND (valid_until IS NULL OR valid_until > $4)
		ORDER BY valid_from`,
		uuid.UUID(principalID), table, resourceID, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("query resource grants: %w", err)
	}
	defer rows.Close()

	var out []ResourceGrant
	for rows.Next() {
		var (
			g          ResourceGrant
			pID, scID  uuid.UUID
			createdBy  uuid.UUID
			validUntil sql.NullTime
		)
		if err := rows.Scan(&g.ID, &pID, &scID, &g.ResourceTable, &g.ResourceID,
			&g.CapabilityCode, &g.ValidFrom, &validUntil, &createdBy); err != nil {
			return nil, fmt.Errorf("scan resource grant: %w", err)
		}
		g.PrincipalID = id.PrincipalID(pID)
		g.ScopeID = id.ScopeID(scID)
		g.CreatedBy = id.PrincipalID(createdBy)
		if validUntil.Valid {
			t := validUntil.Time
			g.ValidUntil = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Postgres) ResourceGrantTablesFor(ctx context.Context, principalID id.PrincipalID, asOf time.Time) (map[string][]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT DISTINCT resource_table, capability_code
		FROM resource_grants
		WHERE principal_id = $1
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY resource_table, capability_code`,
		uuid.UUID(principalID), asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("query resource grant tables: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var table, capability string
		if err := rows.Scan(&table, &capability); err != nil {
			return nil, fmt.Errorf("scan resource grant table: %w", err)
		}
		out[table] = append(out[table], capability)
	}
	return out, rows.Err()
}

func (s *Postgres) Put(ctx context.Context, g Grant) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO grants (principal_id, role_code, scope_id, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(g.PrincipalID), g.RoleCode, uuid.UUID(g.ScopeID), g.ValidFrom, nullTime(g.ValidUntil),
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (s *Postgres) PutResourceGrant(ctx context.Context, g ResourceGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO resource_grants
			(id, principal_id, scope_id, resource_table, resource_id,
			 capability_code, valid_from, valid_until, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, uuid.UUID(g.PrincipalID), uuid.UUID(g.ScopeID), g.ResourceTable, g.ResourceID,
		g.CapabilityCode, g.ValidFrom, nullTime(g.ValidUntil), uuid.UUID(g.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert resource grant: %w", err)
	}
	return nil
}

// Revoke closes matching active grant windows. The row lock (FOR UPDATE via
// UPDATE) guarantees evaluations started after commit see the revocation.
func (s *Postgres) Revoke(ctx context.Context, principalID id.PrincipalID, roleCode string, scopeID id.ScopeID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE grants SET valid_until = $4
		WHERE principal_id = $1
		  AND role_code = $2
		  AND scope_id = $3
		  AND valid_from <= $4
		  AND (valid_until IS NULL OR valid_until > $4)`,
		uuid.UUID(principalID), roleCode, uuid.UUID(scopeID), at,
	)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke grant rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) RevokeResourceGrant(ctx context.Context, grantID uuid.UUID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE resource_grants SET valid_until = $2 WHERE id = $1`,
		grantID, at,
	)
	if err != nil {
		return fmt.Errorf("revoke resource grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke resource grant rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
