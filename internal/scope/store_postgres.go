package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	txcontext "gatehouse/pkg/platform/tx"
	"gatehouse/pkg/sentinel"
)

// Postgres implements Store over an adjacency table. The ancestor closure is
// computed with a bounded recursive CTE instead of an in-memory object graph
// so no parent pointers survive across request boundaries.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Put(ctx context.Context, sc *Scope) error {
	var parent, tenant any
	if sc.ParentID != nil {
		parent = uuid.UUID(*sc.ParentID)
	}
	if sc.TenantID != nil {
		tenant = uuid.UUID(*sc.TenantID)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO scopes (id, scope_type, scope_path, parent_id, tenant_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET scope_type = EXCLUDED.scope_type,
		    scope_path = EXCLUDED.scope_path,
		    parent_id  = EXCLUDED.parent_id,
		    tenant_id  = EXCLUDED.tenant_id`,
		uuid.UUID(sc.ID), string(sc.Type), sc.Path, parent, tenant,
	)
	if err != nil {
		return fmt.Errorf("upsert scope: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, scopeID id.ScopeID) (*Scope, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, scope_type, scope_path, parent_id, tenant_id
		FROM scopes WHERE id = $1`,
		uuid.UUID(scopeID),
	)
	sc, err := scanScope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return sc, err
}

func (s *Postgres) AncestorChain(ctx context.Context, scopeID id.ScopeID) ([]id.ScopeID, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, 0 AS depth
			FROM scopes WHERE id = $1
			UNION ALL
			SELECT s.id, s.parent_id, c.depth + 1
			FROM scopes s
			JOIN chain c ON s.id = c.parent_id
			WHERE c.depth < $2
		)
		SELECT id FROM chain ORDER BY depth`,
		uuid.UUID(scopeID), maxDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("ancestor chain: %w", err)
	}
	defer rows.Close()

	chain := make([]id.ScopeID, 0, 4)
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		chain = append(chain, id.ScopeID(u))
	}
	// Unknown scope id yields zero rows and an empty chain, by contract.
	return chain, rows.Err()
}

func (s *Postgres) IsAncestor(ctx context.Context, candidate, target id.ScopeID) (bool, error) {
	chain, err := s.AncestorChain(ctx, target)
	if err != nil {
		return false, err
	}
	return chainContains(chain, candidate), nil
}

func (s *Postgres) ListByType(ctx context.Context, scopeType Type) ([]*Scope, error) {
	return s.list(ctx, `
		SELECT id, scope_type, scope_path, parent_id, tenant_id
		FROM scopes WHERE scope_type = $1 ORDER BY scope_path`,
		string(scopeType),
	)
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*Scope, error) {
	return s.list(ctx, `
		SELECT id, scope_type, scope_path, parent_id, tenant_id
		FROM scopes WHERE tenant_id = $1 ORDER BY scope_path`,
		uuid.UUID(tenantID),
	)
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*Scope, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var out []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScope(r rowScanner) (*Scope, error) {
	var (
		scopeID   uuid.UUID
		scopeType string
		path      string
		parentID  uuid.NullUUID
		tenantID  uuid.NullUUID
	)
	if err := r.Scan(&scopeID, &scopeType, &path, &parentID, &tenantID); err != nil {
		return nil, err
	}
	sc := &Scope{
		ID:   id.ScopeID(scopeID),
		Type: Type(scopeType),
		Path: path,
	}
	if parentID.Valid {
		p := id.ScopeID(parentID.UUID)
		sc.ParentID = &p
	}
	if tenantID.Valid {
		t := id.TenantID(tenantID.UUID)
		sc.TenantID = &t
	}
	return sc, nil
}
